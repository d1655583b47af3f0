// Package couponerrors contains the errors returned by the seeding and bulk-issue components.
// Callers inspect them with errors.As rather than comparing messages, and the orchestrator
// uses KindFromError to label failures in logs, metrics and the execution log.
//
// If multiple errors occur in some function (e.g., several invalid test cases in one plan),
// that function should return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package couponerrors

import (
	"fmt"
	"reflect"
	"time"

	"github.com/pkg/errors"
)

// Kind names a class of failure.
type Kind string

const (
	KindInvalidInput         Kind = "InvalidInput"
	KindOracleUnavailable    Kind = "OracleUnavailable"
	KindGenerationFailure    Kind = "GenerationFailure"
	KindUploadFailure        Kind = "UploadFailure"
	KindWorkflowStartFailure Kind = "WorkflowStartFailure"
	KindPollFailure          Kind = "PollFailure"
	KindTimeout              Kind = "Timeout"
	KindNotFound             Kind = "NotFound"
	KindUnknown              Kind = "Unknown"
)

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "family"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	// Only strings are quoted; %q would print integers as runes.
	value := fmt.Sprintf("%v", err.Value)
	if err.Value != nil && reflect.TypeOf(err.Value).Kind() == reflect.String {
		value = fmt.Sprintf("%q", err.Value)
	}
	if err.Message == "" {
		return fmt.Sprintf("value %s is invalid for field %q", value, err.Name)
	} else {
		return fmt.Sprintf("value %s is invalid for field %q; %s", value, err.Name, err.Message)
	}
}

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// ErrOracleUnavailable is returned when the inventory counts could not be read.
type ErrOracleUnavailable struct {
	Source string // e.g. the lambda function name or redis address
	Err    error
}

func (err *ErrOracleUnavailable) Error() string {
	return fmt.Sprintf("inventory oracle %s unavailable: %s", err.Source, err.Err)
}

func (err *ErrOracleUnavailable) Unwrap() error { return err.Err }

// ErrGenerationFailure is returned when a batch of codes could not be produced or written.
type ErrGenerationFailure struct {
	Family string
	Count  int
	Err    error
}

func (err *ErrGenerationFailure) Error() string {
	return fmt.Sprintf("failed to generate %d %s codes: %s", err.Count, err.Family, err.Err)
}

func (err *ErrGenerationFailure) Unwrap() error { return err.Err }

// ErrUploadFailure is returned when a batch could not be archived or uploaded.
type ErrUploadFailure struct {
	Path string
	Key  string
	Err  error
}

func (err *ErrUploadFailure) Error() string {
	return fmt.Sprintf("failed to upload %s as %s: %s", err.Path, err.Key, err.Err)
}

func (err *ErrUploadFailure) Unwrap() error { return err.Err }

// ErrWorkflowStartFailure is returned when a bulk-issue execution could not be started.
type ErrWorkflowStartFailure struct {
	Name string // execution name
	Err  error
}

func (err *ErrWorkflowStartFailure) Error() string {
	return fmt.Sprintf("failed to start execution %s: %s", err.Name, err.Err)
}

func (err *ErrWorkflowStartFailure) Unwrap() error { return err.Err }

// ErrPollFailure is returned when the status of an execution could not be read.
// It is transient; pollers retry it.
type ErrPollFailure struct {
	Handle string
	Err    error
}

func (err *ErrPollFailure) Error() string {
	return fmt.Sprintf("failed to poll %s: %s", err.Handle, err.Err)
}

func (err *ErrPollFailure) Unwrap() error { return err.Err }

// ErrTimeout is returned by bounded waits whose readiness condition did not hold before the limit.
type ErrTimeout struct {
	Operation string
	Elapsed   time.Duration
	Limit     time.Duration
}

func (err *ErrTimeout) Error() string {
	return fmt.Sprintf("%s timed out after %s (limit %s)", err.Operation, err.Elapsed, err.Limit)
}

// KindFromError maps error types to a Kind.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func KindFromError(err error) Kind {
	if err == nil {
		return ""
	}

	// Using {} scopes just to re-use the "e" variable name for each case.
	{
		var e *ErrTimeout
		if errors.As(err, &e) {
			return KindTimeout
		}
	}
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return KindInvalidInput
		}
	}
	{
		var e *ErrOracleUnavailable
		if errors.As(err, &e) {
			return KindOracleUnavailable
		}
	}
	{
		var e *ErrGenerationFailure
		if errors.As(err, &e) {
			return KindGenerationFailure
		}
	}
	{
		var e *ErrUploadFailure
		if errors.As(err, &e) {
			return KindUploadFailure
		}
	}
	{
		var e *ErrWorkflowStartFailure
		if errors.As(err, &e) {
			return KindWorkflowStartFailure
		}
	}
	{
		var e *ErrPollFailure
		if errors.As(err, &e) {
			return KindPollFailure
		}
	}
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return KindNotFound
		}
	}
	return KindUnknown
}

// IsTimeout reports whether err, or any error it wraps, is an *ErrTimeout.
func IsTimeout(err error) bool {
	var e *ErrTimeout
	return errors.As(err, &e)
}

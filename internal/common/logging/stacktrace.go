package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const Stacktrace = "stacktrace"

// Unexported but considered part of the stable interface of pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

type causer interface {
	Cause() error
}

type wrapper interface {
	Unwrap() error
}

// WithStacktrace adds err to the entry, together with the first stack trace recorded along its chain.
func WithStacktrace(logger *logrus.Entry, err error) *logrus.Entry {
	logger = logger.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		logger = logger.WithField(Stacktrace, stack)
	}
	return logger
}

// ExtractStack follows both pkg/errors causes and standard wrapping, so stacks recorded beneath a
// typed error such as *couponerrors.ErrUploadFailure are still found. It returns nil if there is none.
func ExtractStack(err error) errors.StackTrace {
	for err != nil {
		if s, ok := err.(stackTracer); ok {
			return s.StackTrace()
		}
		switch e := err.(type) {
		case causer:
			err = e.Cause()
		case wrapper:
			err = e.Unwrap()
		default:
			return nil
		}
	}
	return nil
}

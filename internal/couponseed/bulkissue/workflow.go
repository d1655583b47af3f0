// Package bulkissue starts bulk coupon issuance executions and reports their status.
package bulkissue

import (
	"context"
	"fmt"
	"time"

	"github.com/renstrom/shortuuid"

	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

// ExecutionHandle identifies a started execution. For Step Functions it is the execution ARN.
type ExecutionHandle string

func (h ExecutionHandle) String() string {
	return string(h)
}

// Terminal and non-terminal execution statuses, as reported by Step Functions.
const (
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusTimedOut  = "TIMED_OUT"
	StatusAborted   = "ABORTED"
)

type StartRequest struct {
	// Execution name. Starting twice with the same name and input yields the same execution.
	Name    string
	Family  barcode.Family
	SubCode string
	Count   int
}

type WorkflowClient interface {
	// Start returns the handle of the execution named req.Name.
	// Failures are wrapped in *couponerrors.ErrWorkflowStartFailure.
	Start(ctx context.Context, req StartRequest) (ExecutionHandle, error)
	// Status returns the current status of h. Failures are wrapped in *couponerrors.ErrPollFailure.
	Status(ctx context.Context, h ExecutionHandle) (string, error)
}

// NewRunID returns a short random id that distinguishes one run of a test case from another.
func NewRunID() string {
	return shortuuid.New()
}

// ExecutionName names the execution of process index of test case no within run runID.
// The name is deterministic so that a resumed run can start the same execution again.
func ExecutionName(no, index int, runID string) string {
	return fmt.Sprintf("bulk-issue-tc%d-p%d-%s", no, index, runID)
}

// AdhocExecutionName names an execution started by hand rather than by a test case.
func AdhocExecutionName(now time.Time) string {
	return fmt.Sprintf("bulk-issue-%d-%s", now.UnixMilli(), NewRunID())
}

// IsTerminal reports whether status will no longer change.
func IsTerminal(status string) bool {
	return status != StatusRunning && status != ""
}

// Package executionlog records what the orchestrator has asked for and what it has observed,
// so that a rerun can tell finished test cases from interrupted ones.
//
// The log is append-only. A test case is done once any entry for it has status "finished".
// Intent entries written before each external call ("requested") and after it ("confirmed")
// let an interrupted case resume without repeating completed side effects.
package executionlog

import (
	"context"
	"time"

	"github.com/armadaproject/couponseed/internal/common/util"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

type Phase string

const (
	PhaseRequested Phase = "requested"
	PhaseConfirmed Phase = "confirmed"
	PhaseFinished  Phase = "finished"
	PhaseFailed    Phase = "failed"
)

// StatusFinished marks a completed test case. Older logs only carry this status.
const StatusFinished = "finished"

type DetailKind string

const (
	KindReplenish DetailKind = "replenish"
	// Inventory checks are complete; records the sub-code of each process
	KindAllocate DetailKind = "allocate"
	KindIssue    DetailKind = "issue"
)

// Detail describes the step an entry is about. Which fields are set depends on Kind and Phase.
type Detail struct {
	Kind  DetailKind `json:"kind,omitempty"`
	RunID string     `json:"runId,omitempty"`
	// Process the step belongs to; replenishment of a single-pool family uses 0
	ProcessIndex int            `json:"processIndex"`
	Family       barcode.Family `json:"family,omitempty"`
	SubCode      string         `json:"subCode,omitempty"`
	Count        int            `json:"count,omitempty"`
	// Object URL of an uploaded batch
	URL string `json:"url,omitempty"`
	// Sub-code by process index, for an allocation of the mos family
	SubCodes      []string `json:"subCodes,omitempty"`
	ExecutionName string   `json:"executionName,omitempty"`
	// Terminal status by execution handle
	Statuses map[string]string `json:"statuses,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type Entry struct {
	ID         string `json:"id,omitempty"`
	TestCaseNo int    `json:"testCaseNo"`
	Phase      Phase  `json:"phase,omitempty"`
	// Serialized under the name older logs used
	ExecutionHandles []string  `json:"stateMachineArns"`
	Status           string    `json:"status"`
	Detail           *Detail   `json:"detail,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Done reports whether e marks its test case as completed.
func (e *Entry) Done() bool {
	return e.Status == StatusFinished
}

// NewEntry returns an entry for phase with a fresh id. Its status is the phase name.
func NewEntry(no int, phase Phase, handles []string, detail *Detail, now time.Time) *Entry {
	if handles == nil {
		handles = []string{}
	}
	return &Entry{
		ID:               util.NewULID(),
		TestCaseNo:       no,
		Phase:            phase,
		ExecutionHandles: handles,
		Status:           string(phase),
		Detail:           detail,
		Timestamp:        now.UTC(),
	}
}

type Store interface {
	// Append durably records e. Appending an entry whose id is already stored is a no-op.
	Append(ctx context.Context, e *Entry) error
	// Load returns every entry in append order.
	Load(ctx context.Context) ([]*Entry, error)
}

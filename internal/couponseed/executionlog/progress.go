package executionlog

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// IssuedExecution is an execution whose start was confirmed.
type IssuedExecution struct {
	Handle  string
	Name    string
	SubCode string
}

// Progress is the state of one test case as derived from its entries. A finished entry closes
// a run: the per-run fields below only describe entries appended after the last finish.
type Progress struct {
	TestCaseNo int
	// Run id of the first attempt since the last finish; resumed attempts keep using it so
	// execution names repeat
	RunID    string
	Finished bool
	// Run id and handles of the most recent finished run
	FinishedRunID   string
	FinishedHandles []string
	Failures        int
	// Error of the most recent failure
	LastError string
	// Uploads that completed, by process index
	Replenished map[int]*Detail
	// Uploads that were requested but never confirmed, by process index
	PendingReplenishments map[int]*Detail
	// Set once the inventory checks of the case completed
	Allocation *Detail
	// Confirmed executions by process index
	Issued map[int]IssuedExecution
	// Starts that were requested but never confirmed, by process index
	PendingIssues map[int]*Detail
	// Terminal statuses recorded when the case finished
	Statuses map[string]string
}

func newProgress(no int) *Progress {
	p := &Progress{TestCaseNo: no}
	p.resetRun()
	return p
}

func (p *Progress) resetRun() {
	p.RunID = ""
	p.Replenished = map[int]*Detail{}
	p.PendingReplenishments = map[int]*Detail{}
	p.Allocation = nil
	p.Issued = map[int]IssuedExecution{}
	p.PendingIssues = map[int]*Detail{}
}

// HasIssued reports whether any execution of the case was confirmed as started.
func (p *Progress) HasIssued() bool {
	return len(p.Issued) > 0
}

// InFlight reports whether a run of the case was started and has not finished.
func (p *Progress) InFlight() bool {
	return p.Allocation != nil || len(p.Issued) > 0 || len(p.PendingIssues) > 0 ||
		len(p.Replenished) > 0 || len(p.PendingReplenishments) > 0
}

// State is a one-word summary for display.
func (p *Progress) State() string {
	switch {
	case p.Finished && !p.InFlight():
		return "finished"
	case p.Failures > 0:
		return "failed"
	case p.InFlight():
		return "in-flight"
	default:
		return "new"
	}
}

// Handles returns the confirmed execution handles ordered by process index.
func (p *Progress) Handles() []string {
	indices := maps.Keys(p.Issued)
	slices.Sort(indices)
	handles := make([]string, 0, len(indices))
	for _, i := range indices {
		handles = append(handles, p.Issued[i].Handle)
	}
	return handles
}

// Reconstruct replays entries, in append order, into the progress of each test case.
func Reconstruct(entries []*Entry) map[int]*Progress {
	progress := map[int]*Progress{}
	for _, e := range entries {
		p, ok := progress[e.TestCaseNo]
		if !ok {
			p = newProgress(e.TestCaseNo)
			progress[e.TestCaseNo] = p
		}
		d := e.Detail
		if d != nil && d.RunID != "" && p.RunID == "" {
			p.RunID = d.RunID
		}
		if e.Done() {
			p.Finished = true
			p.FinishedRunID = p.RunID
			p.FinishedHandles = e.ExecutionHandles
			if d != nil && d.Statuses != nil {
				p.Statuses = d.Statuses
			}
			p.resetRun()
			continue
		}

		switch e.Phase {
		case PhaseFailed:
			p.Failures++
			if d != nil {
				p.LastError = d.Error
			}
		case PhaseRequested:
			if d == nil {
				continue
			}
			switch d.Kind {
			case KindReplenish:
				p.PendingReplenishments[d.ProcessIndex] = d
			case KindIssue:
				if _, issued := p.Issued[d.ProcessIndex]; !issued {
					p.PendingIssues[d.ProcessIndex] = d
				}
			}
		case PhaseConfirmed:
			if d == nil {
				continue
			}
			switch d.Kind {
			case KindReplenish:
				delete(p.PendingReplenishments, d.ProcessIndex)
				p.Replenished[d.ProcessIndex] = d
			case KindAllocate:
				p.Allocation = d
			case KindIssue:
				delete(p.PendingIssues, d.ProcessIndex)
				handle := ""
				if len(e.ExecutionHandles) > 0 {
					handle = e.ExecutionHandles[0]
				}
				p.Issued[d.ProcessIndex] = IssuedExecution{Handle: handle, Name: d.ExecutionName, SubCode: d.SubCode}
			}
		}
	}
	return progress
}

// FinishedSet returns the numbers of the test cases that have a finished entry.
func FinishedSet(entries []*Entry) map[int]bool {
	finished := map[int]bool{}
	for _, e := range entries {
		if e.Done() {
			finished[e.TestCaseNo] = true
		}
	}
	return finished
}

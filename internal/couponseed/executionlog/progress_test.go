package executionlog

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

func TestReconstruct(t *testing.T) {
	at := func(m int) time.Time { return baseTime.Add(time.Duration(m) * time.Minute) }
	replenish := &Detail{Kind: KindReplenish, RunID: "r1", ProcessIndex: 1, Family: barcode.Mos, SubCode: "123456", Count: 1000}
	confirmedReplenish := &Detail{Kind: KindReplenish, RunID: "r1", ProcessIndex: 1, Family: barcode.Mos, SubCode: "123456", Count: 1000, URL: "u"}
	entries := []*Entry{
		NewEntry(5, PhaseRequested, nil, &Detail{Kind: KindReplenish, RunID: "r1", ProcessIndex: 0, Family: barcode.Mos, SubCode: "777777", Count: 1000}, at(0)),
		NewEntry(5, PhaseRequested, nil, replenish, at(1)),
		NewEntry(5, PhaseConfirmed, nil, confirmedReplenish, at(2)),
		NewEntry(5, PhaseConfirmed, nil, &Detail{Kind: KindAllocate, RunID: "r1", Family: barcode.Mos, SubCodes: []string{"777777", "123456"}}, at(3)),
		NewEntry(5, PhaseRequested, nil, &Detail{Kind: KindIssue, RunID: "r1", ProcessIndex: 0, SubCode: "777777", ExecutionName: "bulk-issue-tc5-p0-r1"}, at(3)),
		NewEntry(5, PhaseConfirmed, []string{"arn:0"}, &Detail{Kind: KindIssue, RunID: "r1", ProcessIndex: 0, SubCode: "777777", ExecutionName: "bulk-issue-tc5-p0-r1"}, at(4)),
		NewEntry(5, PhaseRequested, nil, &Detail{Kind: KindIssue, RunID: "r1", ProcessIndex: 1, SubCode: "123456", ExecutionName: "bulk-issue-tc5-p1-r1"}, at(5)),
		NewEntry(5, PhaseFailed, nil, &Detail{Error: "connection reset"}, at(6)),
		NewEntry(6, PhaseFinished, []string{"arn:x"}, &Detail{RunID: "r2", Statuses: map[string]string{"arn:x": "FAILED"}}, at(7)),
		NewEntry(7, PhaseRequested, nil, &Detail{Kind: KindReplenish, RunID: "r3", Family: barcode.Pos12, Count: 10}, at(8)),
	}

	progress := Reconstruct(entries)

	p := progress[5]
	assert.Equal(t, "r1", p.RunID)
	assert.False(t, p.Finished)
	assert.Equal(t, 1, p.Failures)
	assert.Equal(t, "connection reset", p.LastError)
	assert.Equal(t, map[int]*Detail{1: confirmedReplenish}, p.Replenished)
	assert.Len(t, p.PendingReplenishments, 1)
	assert.Equal(t, "777777", p.PendingReplenishments[0].SubCode)
	assert.Equal(t, map[int]IssuedExecution{0: {Handle: "arn:0", Name: "bulk-issue-tc5-p0-r1", SubCode: "777777"}}, p.Issued)
	assert.Equal(t, "bulk-issue-tc5-p1-r1", p.PendingIssues[1].ExecutionName)
	assert.NotContains(t, p.PendingIssues, 0)
	assert.Equal(t, []string{"777777", "123456"}, p.Allocation.SubCodes)
	assert.True(t, p.HasIssued())
	assert.Equal(t, []string{"arn:0"}, p.Handles())
	assert.Equal(t, "failed", p.State())

	assert.True(t, progress[6].Finished)
	assert.Equal(t, map[string]string{"arn:x": "FAILED"}, progress[6].Statuses)
	assert.Equal(t, "finished", progress[6].State())
	assert.Equal(t, "r2", progress[6].FinishedRunID)
	assert.Equal(t, []string{"arn:x"}, progress[6].FinishedHandles)
	assert.Empty(t, progress[6].RunID)

	assert.Equal(t, "in-flight", progress[7].State())
	assert.False(t, progress[7].HasIssued())
}

func TestReconstruct_FinishClosesTheRun(t *testing.T) {
	at := func(m int) time.Time { return baseTime.Add(time.Duration(m) * time.Minute) }
	issue := func(run string, i int) *Detail {
		return &Detail{Kind: KindIssue, RunID: run, ProcessIndex: i, ExecutionName: fmt.Sprintf("bulk-issue-tc1-p%d-%s", i, run)}
	}
	entries := []*Entry{
		NewEntry(1, PhaseConfirmed, nil, &Detail{Kind: KindAllocate, RunID: "first", Family: barcode.Gen16}, at(0)),
		NewEntry(1, PhaseConfirmed, []string{"h-first-0"}, issue("first", 0), at(1)),
		NewEntry(1, PhaseConfirmed, []string{"h-first-1"}, issue("first", 1), at(2)),
		NewEntry(1, PhaseFinished, []string{"h-first-0", "h-first-1"}, &Detail{RunID: "first"}, at(3)),
		NewEntry(1, PhaseConfirmed, nil, &Detail{Kind: KindAllocate, RunID: "second", Family: barcode.Gen16}, at(4)),
		NewEntry(1, PhaseConfirmed, []string{"h-second-0"}, issue("second", 0), at(5)),
		NewEntry(1, PhaseRequested, nil, issue("second", 1), at(6)),
	}

	p := Reconstruct(entries)[1]
	assert.True(t, p.Finished)
	assert.Equal(t, "first", p.FinishedRunID)
	assert.Equal(t, []string{"h-first-0", "h-first-1"}, p.FinishedHandles)
	assert.Equal(t, "second", p.RunID)
	assert.Equal(t, []string{"h-second-0"}, p.Handles())
	assert.Equal(t, "bulk-issue-tc1-p1-second", p.PendingIssues[1].ExecutionName)
	assert.NotNil(t, p.Allocation)
	assert.Equal(t, "in-flight", p.State())

	p = Reconstruct(entries[:4])[1]
	assert.Empty(t, p.RunID)
	assert.Nil(t, p.Allocation)
	assert.Empty(t, p.Issued)
	assert.False(t, p.InFlight())
	assert.Equal(t, "finished", p.State())
}

func TestFinishedSet_FailedIsNotDone(t *testing.T) {
	entries := []*Entry{
		NewEntry(1, PhaseFailed, nil, &Detail{Error: "x"}, baseTime),
		NewEntry(2, PhaseConfirmed, []string{"arn"}, &Detail{Kind: KindIssue}, baseTime),
		{TestCaseNo: 3, ExecutionHandles: []string{"arn"}, Status: StatusFinished},
	}
	assert.Equal(t, map[int]bool{3: true}, FinishedSet(entries))
}

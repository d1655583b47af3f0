package orchestrator

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/common/util"
	"github.com/armadaproject/couponseed/internal/couponseed/bulkissue"
	"github.com/armadaproject/couponseed/internal/couponseed/configuration"
	"github.com/armadaproject/couponseed/internal/couponseed/executionlog"
)

// issue starts one execution per process in index order and returns their handles in the same order.
// Executions confirmed by an earlier run are not started again.
func (o *Orchestrator) issue(ctx context.Context, c *caseRun, subCodes []string) ([]bulkissue.ExecutionHandle, error) {
	handles := make([]bulkissue.ExecutionHandle, 0, c.pattern.NumberOfProcesses)
	for i := 0; i < c.pattern.NumberOfProcesses; i++ {
		subCode := ""
		if c.family.IsMulti() {
			subCode = subCodes[i]
		}

		if c.progress != nil {
			if issued, ok := c.progress.Issued[i]; ok {
				c.logger.Infof("process %d already started as %s", i, issued.Handle)
				handles = append(handles, bulkissue.ExecutionHandle(issued.Handle))
				continue
			}
			if pending, ok := c.progress.PendingIssues[i]; ok {
				if o.config.ResumePolicy == configuration.ResumeStrict {
					return nil, errors.WithStack(&couponerrors.ErrInvalidArgument{
						Name:  "ResumePolicy",
						Value: o.config.ResumePolicy,
						Message: fmt.Sprintf("execution %s of test case %d may have started; reconcile it before resuming",
							pending.ExecutionName, c.testCase.No),
					})
				}
				c.logger.Warnf("start of %s was not confirmed; starting it again under the same name", pending.ExecutionName)
			}
		}

		h, err := o.start(ctx, c, i, subCode)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (o *Orchestrator) start(ctx context.Context, c *caseRun, process int, subCode string) (bulkissue.ExecutionHandle, error) {
	name := bulkissue.ExecutionName(c.testCase.No, process, c.runID)
	detail := func() *executionlog.Detail {
		return &executionlog.Detail{
			Kind:          executionlog.KindIssue,
			ProcessIndex:  process,
			Family:        c.family,
			SubCode:       subCode,
			Count:         c.pattern.CouponsPerProcess,
			ExecutionName: name,
		}
	}
	if err := o.appendEntry(ctx, c, executionlog.PhaseRequested, nil, detail()); err != nil {
		return "", err
	}

	h, err := o.workflow.Start(ctx, bulkissue.StartRequest{
		Name:    name,
		Family:  c.family,
		SubCode: subCode,
		Count:   c.pattern.CouponsPerProcess,
	})
	if err != nil {
		return "", err
	}
	o.metrics.RecordExecutionStarted(c.family)
	c.logger.Infof("started %s", h)

	if err := o.appendEntry(ctx, c, executionlog.PhaseConfirmed, []string{h.String()}, detail()); err != nil {
		return "", err
	}
	return h, nil
}

// awaitCompletion waits the completion floor and then polls each handle, in order, until it is terminal.
// The whole wait, floor included, is bounded by the completion timeout.
func (o *Orchestrator) awaitCompletion(ctx context.Context, c *caseRun, handles []bulkissue.ExecutionHandle) (map[string]string, error) {
	start := o.clock.Now()
	limit := o.config.CompletionTimeout
	timedOut := func() error {
		return errors.WithStack(&couponerrors.ErrTimeout{
			Operation: fmt.Sprintf("completion wait of test case %d", c.testCase.No),
			Elapsed:   o.clock.Since(start),
			Limit:     limit,
		})
	}

	c.logger.Infof("waiting %s before polling %d executions", o.config.CompletionFloor, len(handles))
	if err := util.Sleep(ctx, o.clock, o.config.CompletionFloor); err != nil {
		return nil, err
	}

	statuses := make(map[string]string, len(handles))
	for _, h := range handles {
		remaining := limit - o.clock.Since(start)
		if limit > 0 && remaining <= 0 {
			o.metrics.RecordWait("completion", "timeout", o.clock.Since(start))
			return nil, timedOut()
		}
		if limit <= 0 {
			remaining = 0
		}

		h := h
		err := util.PollUntil(ctx, o.clock, "completion wait of "+h.String(), util.WaitPolicy{
			Interval: o.config.ExecutionPollInterval,
			Timeout:  remaining,
		}, func(ctx context.Context) (bool, error) {
			status, err := o.workflow.Status(ctx, h)
			if err != nil {
				var pollErr *couponerrors.ErrPollFailure
				if errors.As(err, &pollErr) {
					c.logger.WithError(err).Warnf("could not read status of %s; retrying", h)
					return false, nil
				}
				return false, err
			}
			c.logger.Debugf("%s is %s", h, status)
			statuses[h.String()] = status
			return bulkissue.IsTerminal(status), nil
		})
		if couponerrors.IsTimeout(err) {
			o.metrics.RecordWait("completion", "timeout", o.clock.Since(start))
			return nil, timedOut()
		}
		if err != nil {
			o.metrics.RecordWait("completion", "error", o.clock.Since(start))
			return nil, err
		}

		status := statuses[h.String()]
		o.metrics.RecordExecutionOutcome(status)
		if status != bulkissue.StatusSucceeded {
			c.logger.Warnf("%s ended with status %s", h, status)
		} else {
			c.logger.Infof("%s succeeded", h)
		}
	}
	o.metrics.RecordWait("completion", "ready", o.clock.Since(start))
	return statuses, nil
}

// Package orchestrator runs test cases end to end: it makes sure enough codes are available,
// starts the bulk-issue executions, waits for them and records the outcome.
package orchestrator

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/common/logging"
	"github.com/armadaproject/couponseed/internal/couponseed/archive"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
	"github.com/armadaproject/couponseed/internal/couponseed/bulkissue"
	"github.com/armadaproject/couponseed/internal/couponseed/configuration"
	"github.com/armadaproject/couponseed/internal/couponseed/executionlog"
	"github.com/armadaproject/couponseed/internal/couponseed/generator"
	"github.com/armadaproject/couponseed/internal/couponseed/inventory"
	"github.com/armadaproject/couponseed/internal/couponseed/testplan"
)

const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
)

// Summary counts what one ExecuteTestCases call did.
type Summary struct {
	Ran       int
	Succeeded int
	Failed    int
	// Cases not marked new or already finished
	Skipped int
}

type Orchestrator struct {
	plan            *testplan.Plan
	oracle          inventory.Oracle
	generator       generator.Generator
	uploader        archive.Uploader
	workflow        bulkissue.WorkflowClient
	store           executionlog.Store
	clock           clock.Clock
	config          configuration.OrchestrationConfig
	allowedSubCodes []string
	metrics         *Metrics
	newRunID        func() string
}

func New(
	plan *testplan.Plan,
	oracle inventory.Oracle,
	generator generator.Generator,
	uploader archive.Uploader,
	workflow bulkissue.WorkflowClient,
	store executionlog.Store,
	clk clock.Clock,
	config configuration.OrchestrationConfig,
	allowedSubCodes []string,
	metrics *Metrics,
) *Orchestrator {
	return &Orchestrator{
		plan:            plan,
		oracle:          oracle,
		generator:       generator,
		uploader:        uploader,
		workflow:        workflow,
		store:           store,
		clock:           clk,
		config:          config,
		allowedSubCodes: allowedSubCodes,
		metrics:         metrics,
		newRunID:        bulkissue.NewRunID,
	}
}

// ExecuteTestCases runs, one after the other and in table order, every case marked new that has
// no finished entry in the execution log. Interrupted cases resume from their log entries.
func (o *Orchestrator) ExecuteTestCases(ctx context.Context) (*Summary, error) {
	entries, err := o.store.Load(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "loading execution log")
	}
	progress := executionlog.Reconstruct(entries)
	pending := o.plan.Pending(executionlog.FinishedSet(entries))

	summary := &Summary{Skipped: len(o.plan.Cases) - len(pending)}
	log.Infof("%d test cases pending, %d skipped", len(pending), summary.Skipped)

	var result *multierror.Error
	for _, tc := range pending {
		summary.Ran++
		err := o.execute(ctx, tc, progress[tc.No])
		if err == nil {
			summary.Succeeded++
			continue
		}

		summary.Failed++
		if ctx.Err() != nil {
			return summary, err
		}
		if !o.config.FailFast {
			result = multierror.Append(result, errors.WithMessagef(err, "test case %d", tc.No))
			continue
		}
		return summary, err
	}
	return summary, result.ErrorOrNil()
}

// ExecuteTestCase runs one case regardless of its status. A run interrupted since the case
// last finished is resumed; otherwise the case runs again from the start.
func (o *Orchestrator) ExecuteTestCase(ctx context.Context, tc testplan.TestCase) error {
	entries, err := o.store.Load(ctx)
	if err != nil {
		return errors.WithMessage(err, "loading execution log")
	}
	return o.execute(ctx, tc, executionlog.Reconstruct(entries)[tc.No])
}

func (o *Orchestrator) execute(ctx context.Context, tc testplan.TestCase, p *executionlog.Progress) error {
	logger := log.WithFields(log.Fields{"testCase": tc.No, "family": tc.Family, "pattern": tc.PatternID})
	start := o.clock.Now()

	var runID string
	if p != nil && p.RunID != "" {
		runID = p.RunID
		logger.Infof("resuming run %s", runID)
	} else {
		runID = o.newRunID()
	}
	logger = logger.WithField("run", runID)

	err := o.run(ctx, tc, p, runID, logger)
	if err != nil {
		o.metrics.RecordTestCase(resultFailed)
		logging.WithStacktrace(logger.WithField("kind", couponerrors.KindFromError(err)), err).Error("test case failed")
		o.recordFailure(tc, runID, err)
		return err
	}
	o.metrics.RecordTestCase(resultSucceeded)
	logger.Infof("test case finished in %s", o.clock.Since(start))
	return nil
}

func (o *Orchestrator) run(ctx context.Context, tc testplan.TestCase, p *executionlog.Progress, runID string, logger *log.Entry) error {
	pattern, err := o.plan.Pattern(tc.PatternID)
	if err != nil {
		return err
	}
	family, err := barcode.ParseFamily(tc.Family.String())
	if err != nil {
		return err
	}
	if family.IsMulti() && len(o.allowedSubCodes) < pattern.NumberOfProcesses {
		return errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "Mos.AllowedSubCodes",
			Value:   o.allowedSubCodes,
			Message: "pattern " + pattern.ID + " needs more distinct sub-codes than are allowed",
		})
	}

	c := &caseRun{
		testCase: tc,
		family:   family,
		pattern:  pattern,
		progress: p,
		runID:    runID,
		logger:   logger,
	}

	// Stage 1
	var subCodes []string
	switch {
	case p != nil && p.Allocation != nil:
		c.logger.Info("inventory checks already completed; skipping")
		subCodes = p.Allocation.SubCodes
	case p != nil && p.HasIssued():
		c.logger.Info("executions already started; skipping inventory checks")
		subCodes = issuedSubCodes(p, pattern.NumberOfProcesses)
	default:
		if family.IsMulti() {
			subCodes, err = o.replenishMulti(ctx, c)
		} else {
			err = o.replenishSingle(ctx, c)
		}
		if err != nil {
			return err
		}
		if err := o.appendEntry(ctx, c, executionlog.PhaseConfirmed, nil, &executionlog.Detail{
			Kind:     executionlog.KindAllocate,
			Family:   family,
			SubCodes: subCodes,
		}); err != nil {
			return err
		}
	}
	if family.IsMulti() && len(subCodes) != pattern.NumberOfProcesses {
		return errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "SubCodes",
			Value:   subCodes,
			Message: "the logged allocation does not cover every process; reconcile the execution log before resuming",
		})
	}

	// Stage 2
	handles, err := o.issue(ctx, c, subCodes)
	if err != nil {
		return err
	}
	statuses, err := o.awaitCompletion(ctx, c, handles)
	if err != nil {
		return err
	}

	arns := make([]string, len(handles))
	for i, h := range handles {
		arns[i] = h.String()
	}
	return o.appendEntry(ctx, c, executionlog.PhaseFinished, arns, &executionlog.Detail{Statuses: statuses})
}

// caseRun is the state of one execution of a test case.
type caseRun struct {
	testCase testplan.TestCase
	family   barcode.Family
	pattern  testplan.TestPattern
	// Progress of earlier runs; nil when starting fresh
	progress *executionlog.Progress
	runID    string
	logger   *log.Entry
}

func (o *Orchestrator) appendEntry(ctx context.Context, c *caseRun, phase executionlog.Phase, handles []string, detail *executionlog.Detail) error {
	detail.RunID = c.runID
	e := executionlog.NewEntry(c.testCase.No, phase, handles, detail, o.clock.Now())
	if err := o.store.Append(ctx, e); err != nil {
		return errors.WithMessagef(err, "appending %s entry", phase)
	}
	return nil
}

// recordFailure appends a failed entry. It uses its own context so that a cancelled run is still recorded.
func (o *Orchestrator) recordFailure(tc testplan.TestCase, runID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e := executionlog.NewEntry(tc.No, executionlog.PhaseFailed, nil, &executionlog.Detail{RunID: runID, Error: cause.Error()}, o.clock.Now())
	if err := o.store.Append(ctx, e); err != nil {
		log.WithError(err).WithField("testCase", tc.No).Error("could not record failure")
	}
}

func issuedSubCodes(p *executionlog.Progress, processes int) []string {
	subCodes := make([]string, 0, processes)
	for i := 0; i < processes; i++ {
		issued, ok := p.Issued[i]
		if !ok || issued.SubCode == "" {
			return nil
		}
		subCodes = append(subCodes, issued.SubCode)
	}
	return subCodes
}

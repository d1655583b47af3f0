package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/common/util"
	"github.com/armadaproject/couponseed/internal/couponseed/archive"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
	"github.com/armadaproject/couponseed/internal/couponseed/executionlog"
	"github.com/armadaproject/couponseed/internal/couponseed/generator"
	"github.com/armadaproject/couponseed/internal/couponseed/inventory"
)

// replenishSingle makes sure the case's family holds at least the pattern's total.
func (o *Orchestrator) replenishSingle(ctx context.Context, c *caseRun) error {
	needed := c.pattern.Needed()

	if c.progress != nil {
		if done, ok := c.progress.Replenished[0]; ok {
			c.logger.Infof("batch %s already uploaded; waiting for %d %s codes", done.URL, needed, c.family)
			return o.awaitInventory(ctx, c, c.family, "", needed, 0)
		}
	}

	snapshot, err := o.snapshot(ctx)
	if err != nil {
		return err
	}
	available := snapshot.Available(c.family, "")
	if available >= needed {
		c.logger.Infof("%d %s codes available, %d needed", available, c.family, needed)
		return nil
	}

	deficit := needed - available
	count := deficit + o.config.SafetyMargin
	c.logger.Infof("%d %s codes available, %d needed; generating %d", available, c.family, needed, count)
	if err := o.topUp(ctx, c, 0, "", count); err != nil {
		return err
	}
	return o.awaitInventory(ctx, c, c.family, "", needed, o.ingestEstimate(deficit))
}

// replenishMulti assigns one distinct sub-code to every process, most available first, and
// tops up any assigned sub-code that cannot cover a process. The ranking is recomputed from a
// fresh snapshot for every process so that top-ups and concurrent consumption are seen.
func (o *Orchestrator) replenishMulti(ctx context.Context, c *caseRun) ([]string, error) {
	perProcess := c.pattern.CouponsPerProcess
	subCodes := make([]string, c.pattern.NumberOfProcesses)
	assigned := map[string]bool{}

	// Sub-codes whose upload completed before an interruption stay with their process.
	if c.progress != nil {
		for i, done := range c.progress.Replenished {
			if i >= len(subCodes) || done.SubCode == "" {
				continue
			}
			subCodes[i] = done.SubCode
			assigned[done.SubCode] = true
		}
	}

	for i := range subCodes {
		if subCode := subCodes[i]; subCode != "" {
			c.logger.Infof("process %d keeps sub-code %s", i, subCode)
			if err := o.awaitInventory(ctx, c, c.family, subCode, perProcess, 0); err != nil {
				return nil, err
			}
			continue
		}

		snapshot, err := o.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		ranked := rankSubCodes(snapshot, o.allowedSubCodes, assigned)
		if len(ranked) == 0 {
			return nil, errors.WithStack(&couponerrors.ErrInvalidArgument{
				Name:    "Mos.AllowedSubCodes",
				Value:   o.allowedSubCodes,
				Message: fmt.Sprintf("no unassigned sub-code left for process %d", i),
			})
		}
		subCode := ranked[0]
		subCodes[i] = subCode
		assigned[subCode] = true

		available := snapshot.Available(c.family, subCode)
		if available >= perProcess {
			c.logger.Infof("process %d uses sub-code %s with %d codes available", i, subCode, available)
			continue
		}
		c.logger.Infof("process %d uses sub-code %s with %d codes available, %d needed; generating %d",
			i, subCode, available, perProcess, perProcess)
		if err := o.topUp(ctx, c, i, subCode, perProcess); err != nil {
			return nil, err
		}
		if err := o.awaitInventory(ctx, c, c.family, subCode, perProcess, o.ingestEstimate(perProcess)); err != nil {
			return nil, err
		}
	}
	return subCodes, nil
}

// rankSubCodes orders the allowed sub-codes that are not yet assigned by availability, descending.
// Equal counts keep allow-list order.
func rankSubCodes(snapshot *inventory.Snapshot, allowed []string, assigned map[string]bool) []string {
	ranked := make([]string, 0, len(allowed))
	for _, subCode := range allowed {
		if !assigned[subCode] {
			ranked = append(ranked, subCode)
		}
	}
	slices.SortStableFunc(ranked, func(a, b string) bool {
		return snapshot.Available(barcode.Mos, a) > snapshot.Available(barcode.Mos, b)
	})
	return ranked
}

// topUp generates count codes, uploads them, and brackets both with intent entries.
func (o *Orchestrator) topUp(ctx context.Context, c *caseRun, process int, subCode string, count int) error {
	detail := func() *executionlog.Detail {
		return &executionlog.Detail{
			Kind:         executionlog.KindReplenish,
			ProcessIndex: process,
			Family:       c.family,
			SubCode:      subCode,
			Count:        count,
		}
	}
	if err := o.appendEntry(ctx, c, executionlog.PhaseRequested, nil, detail()); err != nil {
		return err
	}

	batch, err := o.generator.Generate(ctx, generator.Request{Family: c.family, Count: count, SubCode: subCode})
	if err != nil {
		return err
	}
	o.metrics.RecordCodesGenerated(c.family, subCode, count)

	url, err := o.uploader.ArchiveAndUpload(ctx, batch.Dir, archive.DefaultKey(batch.Dir, o.clock.Now()))
	if err != nil {
		return err
	}
	c.logger.Infof("uploaded %d %s codes to %s", count, c.family, url)

	confirmed := detail()
	confirmed.URL = url
	return o.appendEntry(ctx, c, executionlog.PhaseConfirmed, nil, confirmed)
}

// awaitInventory waits, after floor, until the oracle reports at least needed codes.
func (o *Orchestrator) awaitInventory(ctx context.Context, c *caseRun, family barcode.Family, subCode string, needed int, floor time.Duration) error {
	operation := fmt.Sprintf("inventory wait for %d %s codes", needed, family)
	if subCode != "" {
		operation = fmt.Sprintf("inventory wait for %d %s codes of sub-code %s", needed, family, subCode)
	}
	c.logger.Infof("waiting at least %s for %d %s codes to be ingested", floor, needed, family)

	start := o.clock.Now()
	err := util.PollUntil(ctx, o.clock, operation, util.WaitPolicy{
		Floor:    floor,
		Interval: o.config.InventoryPollInterval,
		Timeout:  o.config.InventoryWaitTimeout,
	}, func(ctx context.Context) (bool, error) {
		snapshot, err := o.snapshot(ctx)
		if err != nil {
			return false, err
		}
		available := snapshot.Available(family, subCode)
		c.logger.Debugf("%d of %d codes available", available, needed)
		return available >= needed, nil
	})
	o.metrics.RecordWait("inventory", outcome(err), o.clock.Since(start))
	return err
}

func (o *Orchestrator) snapshot(ctx context.Context) (*inventory.Snapshot, error) {
	snapshot, err := o.oracle.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	o.metrics.RecordInventory(snapshot)
	return snapshot, nil
}

// ingestEstimate is the time the ingestion pipeline needs for count codes, rounded up to the second.
func (o *Orchestrator) ingestEstimate(count int) time.Duration {
	rate := o.config.IngestRatePerSecond
	if rate <= 0 {
		return 0
	}
	seconds := (count + rate - 1) / rate
	return time.Duration(seconds) * time.Second
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ready"
	case couponerrors.IsTimeout(err):
		return "timeout"
	default:
		return "error"
	}
}

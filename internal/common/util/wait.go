package util

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
)

// WaitPolicy bounds a readiness wait.
type WaitPolicy struct {
	// Minimum time before readiness is first evaluated.
	Floor time.Duration
	// Time between evaluations.
	Interval time.Duration
	// Maximum total time, floor included. Zero means no limit.
	Timeout time.Duration
}

// Sleep blocks for d on clk, returning early with ctx.Err() if ctx is cancelled.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	timer := clk.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// PollUntil waits policy.Floor and then evaluates ready every policy.Interval until it reports true.
// An error from ready ends the wait immediately and is returned as-is.
// If the policy's timeout is reached first, an *couponerrors.ErrTimeout naming operation is returned.
// The last evaluation happens exactly at the timeout, so a condition that becomes true at the limit is still seen.
func PollUntil(ctx context.Context, clk clock.Clock, operation string, policy WaitPolicy, ready func(ctx context.Context) (bool, error)) error {
	start := clk.Now()
	if err := Sleep(ctx, clk, policy.Floor); err != nil {
		return err
	}
	for {
		ok, err := ready(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		elapsed := clk.Since(start)
		if policy.Timeout > 0 && elapsed >= policy.Timeout {
			return errors.WithStack(&couponerrors.ErrTimeout{
				Operation: operation,
				Elapsed:   elapsed,
				Limit:     policy.Timeout,
			})
		}

		wait := policy.Interval
		if policy.Timeout > 0 && elapsed+wait > policy.Timeout {
			wait = policy.Timeout - elapsed
		}
		if err := Sleep(ctx, clk, wait); err != nil {
			return err
		}
	}
}

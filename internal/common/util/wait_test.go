package util

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/common/testutil"
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestPollUntil_ReadyAfterFloor(t *testing.T) {
	clk := testutil.NewAutoStepClock(testStart)
	var checkedAt []time.Duration
	calls := 0
	err := PollUntil(context.Background(), clk, "inventory wait", WaitPolicy{Floor: 5 * time.Minute, Interval: 20 * time.Second, Timeout: time.Hour},
		func(ctx context.Context) (bool, error) {
			checkedAt = append(checkedAt, clk.Since(testStart))
			calls++
			return calls == 3, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Minute, 5*time.Minute + 20*time.Second, 5*time.Minute + 40*time.Second}, checkedAt)
}

func TestPollUntil_NeverEvaluatesBeforeFloor(t *testing.T) {
	clk := testutil.NewAutoStepClock(testStart)
	err := PollUntil(context.Background(), clk, "completion wait", WaitPolicy{Floor: 33 * time.Minute, Interval: 30 * time.Second},
		func(ctx context.Context) (bool, error) {
			assert.GreaterOrEqual(t, clk.Since(testStart), 33*time.Minute)
			return true, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{33 * time.Minute}, clk.Waits())
}

func TestPollUntil_Timeout(t *testing.T) {
	clk := testutil.NewAutoStepClock(testStart)
	calls := 0
	err := PollUntil(context.Background(), clk, "inventory wait", WaitPolicy{Floor: time.Minute, Interval: 20 * time.Second, Timeout: 2 * time.Minute},
		func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		})
	require.Error(t, err)

	var timeoutErr *couponerrors.ErrTimeout
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "inventory wait", timeoutErr.Operation)
	assert.Equal(t, 2*time.Minute, timeoutErr.Elapsed)
	assert.Equal(t, 2*time.Minute, timeoutErr.Limit)
	// Evaluated at 1m, 1m20s, 1m40s and 2m.
	assert.Equal(t, 4, calls)
}

func TestPollUntil_LastIntervalIsClippedToTimeout(t *testing.T) {
	clk := testutil.NewAutoStepClock(testStart)
	err := PollUntil(context.Background(), clk, "wait", WaitPolicy{Interval: 40 * time.Second, Timeout: time.Minute},
		func(ctx context.Context) (bool, error) { return false, nil })
	assert.True(t, couponerrors.IsTimeout(err))
	assert.Equal(t, []time.Duration{40 * time.Second, 20 * time.Second}, clk.Waits())
}

func TestPollUntil_PredicateErrorEndsWait(t *testing.T) {
	clk := testutil.NewAutoStepClock(testStart)
	oracleErr := errors.WithStack(&couponerrors.ErrOracleUnavailable{Source: "test", Err: errors.New("boom")})
	err := PollUntil(context.Background(), clk, "wait", WaitPolicy{Interval: time.Second, Timeout: time.Hour},
		func(ctx context.Context) (bool, error) { return false, oracleErr })
	assert.Equal(t, oracleErr, err)
}

func TestPollUntil_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clk := testutil.NewAutoStepClock(testStart)
	err := PollUntil(ctx, clk, "wait", WaitPolicy{Floor: time.Minute, Interval: time.Second},
		func(ctx context.Context) (bool, error) {
			t.Fatal("readiness evaluated after cancellation")
			return false, nil
		})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, clk.Waits())
}

func TestNewULIDIsSortable(t *testing.T) {
	a := NewULID()
	b := NewULID()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

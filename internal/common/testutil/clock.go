package testutil

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
	testclock "k8s.io/utils/clock/testing"
)

// AutoStepClock is a fake clock on which every timer fires immediately, advancing fake time by the
// timer's duration. Code under test that sleeps on it runs synchronously while still observing the
// passage of time through Now and Since. Every requested wait is recorded.
type AutoStepClock struct {
	*testclock.FakeClock

	mu    sync.Mutex
	waits []time.Duration
}

func NewAutoStepClock(start time.Time) *AutoStepClock {
	return &AutoStepClock{FakeClock: testclock.NewFakeClock(start)}
}

func (c *AutoStepClock) NewTimer(d time.Duration) clock.Timer {
	c.record(d)
	timer := c.FakeClock.NewTimer(d)
	c.FakeClock.Step(d)
	return timer
}

func (c *AutoStepClock) After(d time.Duration) <-chan time.Time {
	c.record(d)
	ch := c.FakeClock.After(d)
	c.FakeClock.Step(d)
	return ch
}

func (c *AutoStepClock) Sleep(d time.Duration) {
	c.record(d)
	c.FakeClock.Step(d)
}

// Waits returns every duration waited so far, in order.
func (c *AutoStepClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// TotalWaited is the sum of Waits.
func (c *AutoStepClock) TotalWaited() time.Duration {
	var total time.Duration
	for _, d := range c.Waits() {
		total += d
	}
	return total
}

func (c *AutoStepClock) record(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
}

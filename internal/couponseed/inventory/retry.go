package inventory

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"
)

type retryingOracle struct {
	oracle   Oracle
	attempts uint
	delay    time.Duration
}

// WithRetry retries failed snapshot reads a fixed number of times. The app wraps every oracle
// with it, so an error that reaches the orchestrator has already been retried and is fatal there.
func WithRetry(oracle Oracle, attempts uint, delay time.Duration) Oracle {
	return &retryingOracle{oracle: oracle, attempts: attempts, delay: delay}
}

func (r *retryingOracle) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snapshot *Snapshot
	err := retry.Do(
		func() error {
			var err error
			snapshot, err = r.oracle.Snapshot(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Warnf("inventory read failed (attempt %d/%d)", n+1, r.attempts)
		}),
	)
	return snapshot, err
}

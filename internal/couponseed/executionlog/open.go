package executionlog

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/couponseed/configuration"
)

// Open returns the store cfg selects, wrapped in a NatsNotifier when NATS is configured.
// The returned func releases the store's resources.
func Open(ctx context.Context, cfg configuration.ExecutionLogConfig) (Store, func(), error) {
	var (
		store   Store
		cleanup = func() {}
		err     error
	)
	switch cfg.Type {
	case configuration.ExecutionLogFile, "":
		store = NewFileStore(cfg.FilePath)
	case configuration.ExecutionLogSqlite:
		store, cleanup, err = NewSqliteStore(ctx, cfg.SqlitePath)
	case configuration.ExecutionLogPostgres:
		if cfg.Postgres == nil {
			return nil, func() {}, errors.WithStack(&couponerrors.ErrInvalidArgument{Name: "ExecutionLog.Postgres", Message: "not configured"})
		}
		store, cleanup, err = OpenPostgresStore(ctx, *cfg.Postgres)
	default:
		return nil, func() {}, errors.WithStack(&couponerrors.ErrInvalidArgument{Name: "ExecutionLog.Type", Value: cfg.Type})
	}
	if err != nil {
		return nil, func() {}, err
	}

	if cfg.Nats == nil {
		return store, cleanup, nil
	}
	conn, err := nats.Connect(cfg.Nats.Url, nats.Name("couponseed"))
	if err != nil {
		cleanup()
		return nil, func() {}, errors.Wrapf(err, "connecting to nats at %s", cfg.Nats.Url)
	}
	return NewNatsNotifier(store, conn, cfg.Nats.Subject), func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
		cleanup()
	}, nil
}

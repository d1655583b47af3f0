package inventory

import (
	"context"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

const (
	CountWithGet   = "get"
	CountWithScard = "scard"
)

// RedisOracle reads the availability counters straight from redis.
// Counters are either integers (read with GET) or sets of codes (read with SCARD). Missing keys count as zero.
type RedisOracle struct {
	db           redis.UniversalClient
	counterKeys  map[barcode.Family]string
	mosKeyPrefix string
	subCodes     []string
	command      string
}

func NewRedisOracle(db redis.UniversalClient, counterKeys map[barcode.Family]string, mosKeyPrefix string, subCodes []string, command string) *RedisOracle {
	if command == "" {
		command = CountWithGet
	}
	return &RedisOracle{
		db:           db,
		counterKeys:  counterKeys,
		mosKeyPrefix: mosKeyPrefix,
		subCodes:     subCodes,
		command:      command,
	}
}

func (o *RedisOracle) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pipe := o.db.Pipeline()
	familyCmds := map[barcode.Family]countCmd{}
	for family, key := range o.counterKeys {
		familyCmds[family] = o.count(pipe, key)
	}
	subCodeCmds := make(map[string]countCmd, len(o.subCodes))
	for _, subCode := range o.subCodes {
		subCodeCmds[subCode] = o.count(pipe, o.mosKeyPrefix+subCode)
	}
	if _, err := pipe.Exec(); err != nil && err != redis.Nil {
		return nil, o.unavailable(err)
	}

	snapshot := newSnapshot()
	for family, cmd := range familyCmds {
		n, err := readCount(cmd)
		if err != nil {
			return nil, o.unavailable(errors.Wrapf(err, "reading %s", o.counterKeys[family]))
		}
		snapshot.AvailableByFamily[family] = n
	}
	for subCode, cmd := range subCodeCmds {
		n, err := readCount(cmd)
		if err != nil {
			return nil, o.unavailable(errors.Wrapf(err, "reading %s%s", o.mosKeyPrefix, subCode))
		}
		snapshot.AvailableMultiByCode[subCode] = n
	}
	return snapshot, nil
}

// countCmd reads the result of a queued command once the pipeline has run.
type countCmd func() (int64, error)

func (o *RedisOracle) count(pipe redis.Pipeliner, key string) countCmd {
	if o.command == CountWithScard {
		return pipe.SCard(key).Result
	}
	return pipe.Get(key).Int64
}

func readCount(cmd countCmd) (int, error) {
	n, err := cmd()
	if err == redis.Nil {
		return 0, nil
	}
	return int(n), err
}

func (o *RedisOracle) unavailable(err error) error {
	return errors.WithStack(&couponerrors.ErrOracleUnavailable{Source: "redis", Err: err})
}

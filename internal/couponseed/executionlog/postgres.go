package executionlog

import (
	"context"
	"embed"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/armadaproject/couponseed/internal/common/config"
	"github.com/armadaproject/couponseed/internal/common/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var postgresDialect = goqu.Dialect("postgres")

// Migrations returns the schema of the Postgres store.
func Migrations() ([]database.Migration, error) {
	return database.ReadMigrations(migrationFiles, "migrations")
}

// PostgresStore keeps the log in Postgres, so several operators can share it.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgresStore connects to Postgres and brings the schema up to date.
func OpenPostgresStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, func(), error) {
	db, err := database.OpenPgxPool(ctx, cfg)
	if err != nil {
		return nil, func() {}, err
	}
	migrations, err := Migrations()
	if err != nil {
		db.Close()
		return nil, func() {}, err
	}
	if err := database.UpdateDatabase(ctx, db, migrations); err != nil {
		db.Close()
		return nil, func() {}, err
	}
	return NewPostgresStore(db), db.Close, nil
}

func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	r, err := toRow(e)
	if err != nil {
		return err
	}
	sql, args, err := postgresDialect.Insert(logTable).
		Rows(goqu.Record{
			"id":                r.ID,
			"test_case_no":      r.TestCaseNo,
			"phase":             r.Phase,
			"status":            r.Status,
			"execution_handles": r.ExecutionHandles,
			"detail":            r.Detail,
			"timestamp":         e.Timestamp.UTC(),
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = s.db.Exec(ctx, sql, args...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		// Already appended.
		return nil
	}
	return errors.WithStack(err)
}

func (s *PostgresStore) Load(ctx context.Context) ([]*Entry, error) {
	sql, args, err := postgresDialect.From(logTable).
		Select(col_id, col_testCaseNo, col_phase, col_status, col_executionHandles, col_detail, col_timestamp).
		Order(col_seq.Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			r         row
			timestamp time.Time
		)
		if err := rows.Scan(&r.ID, &r.TestCaseNo, &r.Phase, &r.Status, &r.ExecutionHandles, &r.Detail, &timestamp); err != nil {
			return nil, errors.WithStack(err)
		}
		r.Timestamp = timestamp.UnixMilli()
		e, err := r.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, errors.WithStack(rows.Err())
}

package executionlog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/armadaproject/couponseed/internal/common/util"
)

// SqliteStore keeps the log in a local SQLite database.
type SqliteStore struct {
	db   *sql.DB
	goqu *goqu.Database
	// SQLite allows one writer at a time
	lock sync.RWMutex
}

// NewSqliteStore opens (creating if needed) the database at path and its table.
func NewSqliteStore(ctx context.Context, path string) (*SqliteStore, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, func() {}, errors.Wrapf(err, "could not make directory for sqlite db %s", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, func() {}, errors.Wrapf(err, "error opening sqlite db %s", path)
	}
	store := &SqliteStore{db: db, goqu: goqu.New("sqlite3", db)}
	cleanup := func() { util.CloseResource("sqlite execution log "+path, db) }
	if err := store.Setup(ctx); err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return store, cleanup, nil
}

// Setup creates the table if it does not exist yet.
func (s *SqliteStore) Setup(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS execution_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			test_case_no INTEGER NOT NULL,
			phase TEXT NOT NULL,
			status TEXT NOT NULL,
			execution_handles TEXT NOT NULL,
			detail TEXT,
			timestamp INTEGER NOT NULL)`,
		`CREATE INDEX IF NOT EXISTS idx_execution_log_test_case_no ON execution_log (test_case_no)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (s *SqliteStore) Append(ctx context.Context, e *Entry) error {
	r, err := toRow(e)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	_, err = s.goqu.Insert(logTable).
		Rows(goqu.Record{
			"id":                r.ID,
			"test_case_no":      r.TestCaseNo,
			"phase":             r.Phase,
			"status":            r.Status,
			"execution_handles": r.ExecutionHandles,
			"detail":            r.Detail,
			"timestamp":         r.Timestamp,
		}).
		OnConflict(goqu.DoNothing()).
		Executor().
		ExecContext(ctx)
	return errors.WithStack(err)
}

func (s *SqliteStore) Load(ctx context.Context) ([]*Entry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var rows []*row
	err := s.goqu.From(logTable).
		Select(col_id, col_testCaseNo, col_phase, col_status, col_executionHandles, col_detail, col_timestamp).
		Order(col_seq.Asc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	entries := make([]*Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

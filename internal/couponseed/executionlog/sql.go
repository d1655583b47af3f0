package executionlog

import (
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/pkg/errors"
)

const tableName = "execution_log"

var (
	logTable = goqu.T(tableName)

	col_seq              = goqu.C("seq")
	col_id               = goqu.C("id")
	col_testCaseNo       = goqu.C("test_case_no")
	col_phase            = goqu.C("phase")
	col_status           = goqu.C("status")
	col_executionHandles = goqu.C("execution_handles")
	col_detail           = goqu.C("detail")
	col_timestamp        = goqu.C("timestamp")
)

// row is an entry as stored in SQL. Handles and detail are JSON so both dialects can share it.
type row struct {
	ID               string  `db:"id"`
	TestCaseNo       int     `db:"test_case_no"`
	Phase            string  `db:"phase"`
	Status           string  `db:"status"`
	ExecutionHandles string  `db:"execution_handles"`
	Detail           *string `db:"detail"`
	Timestamp        int64   `db:"timestamp"`
}

func encodeDetail(d *Detail) (*string, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s := string(data)
	return &s, nil
}

func decodeDetail(s *string) (*Detail, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d := &Detail{}
	if err := json.Unmarshal([]byte(*s), d); err != nil {
		return nil, errors.WithStack(err)
	}
	return d, nil
}

func toRow(e *Entry) (*row, error) {
	handles, err := json.Marshal(handlesOf(e))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	detail, err := encodeDetail(e.Detail)
	if err != nil {
		return nil, err
	}
	return &row{
		ID:               e.ID,
		TestCaseNo:       e.TestCaseNo,
		Phase:            string(e.Phase),
		Status:           e.Status,
		ExecutionHandles: string(handles),
		Detail:           detail,
		Timestamp:        e.Timestamp.UnixMilli(),
	}, nil
}

func (r *row) toEntry() (*Entry, error) {
	var handles []string
	if err := json.Unmarshal([]byte(r.ExecutionHandles), &handles); err != nil {
		return nil, errors.WithStack(err)
	}
	detail, err := decodeDetail(r.Detail)
	if err != nil {
		return nil, err
	}
	return &Entry{
		ID:               r.ID,
		TestCaseNo:       r.TestCaseNo,
		Phase:            Phase(r.Phase),
		ExecutionHandles: handles,
		Status:           r.Status,
		Detail:           detail,
		Timestamp:        time.UnixMilli(r.Timestamp).UTC(),
	}, nil
}

func handlesOf(e *Entry) []string {
	if e.ExecutionHandles == nil {
		return []string{}
	}
	return e.ExecutionHandles
}

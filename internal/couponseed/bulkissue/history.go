package bulkissue

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/armadaproject/couponseed/internal/common/util"
)

// HistoryRecord is one started execution.
type HistoryRecord struct {
	Id  string `json:"id"`
	Arn string `json:"arn"`
	// Milliseconds since the epoch
	Timestamp int64 `json:"timestamp"`
}

func (r HistoryRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// History is the append-only list of every execution this tool started, one JSON object per line.
type History struct {
	path string
	mu   sync.Mutex
}

func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) Record(handle ExecutionHandle, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return util.AppendJSONLine(h.path, HistoryRecord{
		Id:        uuid.NewString(),
		Arn:       handle.String(),
		Timestamp: at.UnixMilli(),
	})
}

// Load returns every record, oldest first.
func (h *History) Load() ([]HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var records []HistoryRecord
	err := util.ReadJSONLines(h.path, func(_ int, line []byte) error {
		var r HistoryRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return errors.WithStack(err)
		}
		records = append(records, r)
		return nil
	})
	return records, err
}

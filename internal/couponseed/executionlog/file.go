package executionlog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/armadaproject/couponseed/internal/common/util"
)

// LegacyFileName is the JSON array log written by earlier versions of the tool.
const LegacyFileName = "log.json"

// FileStore keeps the log as JSON lines. Entries of a legacy log.json next to it are loaded
// first but never written to.
type FileStore struct {
	path       string
	legacyPath string
	mu         sync.Mutex
	// Ids already in the file; nil until first needed
	ids map[string]bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:       path,
		legacyPath: filepath.Join(filepath.Dir(path), LegacyFileName),
	}
}

func (s *FileStore) Append(ctx context.Context, e *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids == nil {
		entries, err := s.readLines()
		if err != nil {
			return err
		}
		s.ids = map[string]bool{}
		for _, existing := range entries {
			s.ids[existing.ID] = true
		}
	}
	if e.ID != "" && s.ids[e.ID] {
		return nil
	}
	if err := util.AppendJSONLine(s.path, e); err != nil {
		return err
	}
	s.ids[e.ID] = true
	return nil
}

func (s *FileStore) Load(ctx context.Context) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	legacy, err := s.readLegacy()
	if err != nil {
		return nil, err
	}
	entries, err := s.readLines()
	if err != nil {
		return nil, err
	}
	return append(legacy, entries...), nil
}

func (s *FileStore) readLines() ([]*Entry, error) {
	var entries []*Entry
	err := util.ReadJSONLines(s.path, func(_ int, line []byte) error {
		e := &Entry{}
		if err := json.Unmarshal(line, e); err != nil {
			return errors.WithStack(err)
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func (s *FileStore) readLegacy() ([]*Entry, error) {
	data, err := os.ReadFile(s.legacyPath)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.WithStack(err)
	}
	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "reading %s", s.legacyPath)
	}
	for _, e := range entries {
		if e.Phase == "" && e.Done() {
			e.Phase = PhaseFinished
		}
	}
	return entries, nil
}

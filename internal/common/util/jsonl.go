package util

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// AppendJSONLine appends v as one JSON line to path, creating the file and its directory if needed.
// A trailing partial line left by an interrupted write is cut off first.
func AppendJSONLine(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errors.WithStack(err)
	}
	end, err := dropPartialLine(f, path)
	if err == nil {
		_, err = f.WriteAt(append(data, '\n'), end)
	}
	if err != nil {
		_ = f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}

// dropPartialLine truncates f after its last newline when it does not end with one, and
// returns the resulting size.
func dropPartialLine(f *os.File, path string) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return 0, err
	}
	if last[0] == '\n' {
		return size, nil
	}
	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil {
		return 0, err
	}
	end := int64(bytes.LastIndexByte(data, '\n') + 1)
	log.Warnf("dropping %d bytes of a partially written line at the end of %s", size-end, path)
	return end, f.Truncate(end)
}

// ReadJSONLines calls fn with every non-blank line of path. A missing file has no lines.
// An error from fn on the last line is logged and skipped, since that line may have been cut short
// by an interrupted write; errors on any other line are returned.
func ReadJSONLines(path string, fn func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	var pending error
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if pending != nil {
			return pending
		}
		if err := fn(lineNo, line); err != nil {
			pending = errors.WithMessagef(err, "%s line %d", path, lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return errors.WithStack(err)
	}
	if pending != nil {
		log.WithError(pending).Warn("skipping unreadable last line")
	}
	return nil
}

package generator

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Clean recursively deletes every .csv file below the given directories and returns how many were removed.
// Directories that do not exist are skipped.
func Clean(dirs ...string) (int, error) {
	deleted := map[string]bool{}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		matches, err := zglob.Glob(filepath.Join(dir, "**", "*.csv"))
		if err != nil {
			return len(deleted), errors.WithStack(err)
		}
		for _, match := range matches {
			abs, err := filepath.Abs(match)
			if err != nil {
				return len(deleted), errors.WithStack(err)
			}
			if deleted[abs] {
				continue
			}
			if err := os.Remove(abs); err != nil {
				return len(deleted), errors.WithStack(err)
			}
			log.Debugf("deleted %s", match)
			deleted[abs] = true
		}
	}
	return len(deleted), nil
}

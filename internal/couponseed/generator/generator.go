// Package generator synthesizes unique codes for each family and writes them to batches of CSV files
// ready for archiving.
package generator

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/common/util"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

const DefaultCodesPerFile = 1000

// Request describes one batch. SubCode is required for barcode.Mos and must be empty otherwise.
type Request struct {
	Family  barcode.Family
	Count   int
	SubCode string
}

// Batch is a directory of CSV files, one code per line.
type Batch struct {
	Dir     string
	Family  barcode.Family
	SubCode string
	// Count is the number of codes written. It can be lower than requested for barcode.Mos.
	Count   int
	Files   []string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (*Batch, error)
}

// FileGenerator writes batches under OutputDir.
type FileGenerator struct {
	OutputDir    string
	CodesPerFile int

	mu     sync.Mutex
	random *rand.Rand
}

// NewFileGenerator returns a generator drawing random digits from source.
func NewFileGenerator(outputDir string, source rand.Source) *FileGenerator {
	return &FileGenerator{
		OutputDir:    outputDir,
		CodesPerFile: DefaultCodesPerFile,
		random:       rand.New(source),
	}
}

func (g *FileGenerator) Generate(ctx context.Context, req Request) (*Batch, error) {
	if req.Count <= 0 {
		return nil, errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "Count",
			Value:   req.Count,
			Message: "must be positive",
		})
	}
	if req.Family.IsMulti() == (req.SubCode == "") {
		return nil, errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "SubCode",
			Value:   req.SubCode,
			Message: fmt.Sprintf("a sub-code is required for %s and only for %s", barcode.Mos, barcode.Mos),
		})
	}

	var layout batchLayout
	var codes []string
	switch req.Family {
	case barcode.Pos12:
		layout = pos12Layout(req.Count)
		codes = g.uniqueRandom(req.Count, pos12Code)
	case barcode.Gen16:
		layout = gen16Layout(req.Count)
		codes = g.uniqueRandom(req.Count, gen16Code)
	case barcode.Mos:
		layout = mosLayout(req.SubCode, req.Count)
		codes = mosCodes(req.SubCode, req.Count)
		if len(codes) < req.Count {
			log.WithFields(log.Fields{"subCode": req.SubCode, "requested": req.Count, "generated": len(codes)}).
				Warn("sub-code has fewer distinct codes than requested")
		}
	default:
		_, err := barcode.ParseFamily(string(req.Family))
		return nil, err
	}

	batch, err := g.write(ctx, layout, codes)
	if err != nil {
		return nil, errors.WithStack(&couponerrors.ErrGenerationFailure{Family: string(req.Family), Count: req.Count, Err: err})
	}
	batch.Family = req.Family
	batch.SubCode = req.SubCode
	log.WithFields(log.Fields{"family": req.Family, "codes": batch.Count, "files": len(batch.Files)}).
		Infof("generated codes in %s", batch.Dir)
	return batch, nil
}

// uniqueRandom draws codes until count distinct ones exist.
func (g *FileGenerator) uniqueRandom(count int, next func(*rand.Rand) string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := make(map[string]struct{}, count)
	codes := make([]string, 0, count)
	for len(codes) < count {
		code := next(g.random)
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

func (g *FileGenerator) write(ctx context.Context, layout batchLayout, codes []string) (*Batch, error) {
	dir := filepath.Join(g.OutputDir, layout.dir)
	// Stale files from an earlier batch of the same size would otherwise be uploaded again.
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	perFile := g.CodesPerFile
	if perFile <= 0 {
		perFile = DefaultCodesPerFile
	}
	batch := &Batch{Dir: dir, Count: len(codes)}
	for i, chunk := range util.Batch(codes, perFile) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, layout.fileName(i+1))
		if err := writeCodes(path, chunk); err != nil {
			return nil, err
		}
		batch.Files = append(batch.Files, path)
	}
	return batch, nil
}

func writeCodes(path string, codes []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, code := range codes {
		if _, err := w.WriteString(code + "\n"); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

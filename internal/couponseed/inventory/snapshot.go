// Package inventory reads how many pre-generated codes are currently available for issuance.
package inventory

import (
	"context"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/couponseed/internal/common/util"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

// Snapshot is a point-in-time view of available inventory. Callers read a fresh one for every
// decision; nothing holds on to a snapshot across polls.
type Snapshot struct {
	// Available codes of the single-pool families
	AvailableByFamily map[barcode.Family]int
	// Available mos codes by sub-code
	AvailableMultiByCode map[string]int
}

// Oracle returns the current inventory. Implementations wrap failures in *couponerrors.ErrOracleUnavailable.
type Oracle interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Available is the count for family, or for subCode when family is mos. Missing entries count as zero.
func (s *Snapshot) Available(family barcode.Family, subCode string) int {
	if family.IsMulti() {
		return s.AvailableMultiByCode[subCode]
	}
	return s.AvailableByFamily[family]
}

func (s *Snapshot) String() string {
	w := util.NewTabbedStringBuilder(1, 1, 2, ' ', 0)
	w.Row("FAMILY", "SUB-CODE", "AVAILABLE")
	for _, family := range barcode.Families {
		if family.IsMulti() {
			continue
		}
		w.Row(family, "-", s.AvailableByFamily[family])
	}
	subCodes := maps.Keys(s.AvailableMultiByCode)
	slices.Sort(subCodes)
	for _, subCode := range subCodes {
		w.Row(barcode.Mos, subCode, s.AvailableMultiByCode[subCode])
	}
	return w.String()
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		AvailableByFamily:    map[barcode.Family]int{},
		AvailableMultiByCode: map[string]int{},
	}
}

// Package barcode defines the three supported code families and their formats.
package barcode

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
)

// Family is one of the supported code shapes.
type Family string

const (
	// Pos12 codes are "A", 13 digits, then "C".
	Pos12 Family = "pos12"
	// Gen16 codes are 16 digits.
	Gen16 Family = "gen16"
	// Mos codes are "B", a 6-digit sub-code, "2", a 6-digit sequence number, then "B".
	// Inventory for this family is partitioned by sub-code.
	Mos Family = "mos"
)

// Families lists every supported family in a stable order.
var Families = []Family{Pos12, Gen16, Mos}

var formats = map[Family]*regexp.Regexp{
	Pos12: regexp.MustCompile(`^A[0-9]{13}C$`),
	Gen16: regexp.MustCompile(`^[0-9]{16}$`),
	Mos:   regexp.MustCompile(`^B[0-9]{6}2[0-9]{6}B$`),
}

var subCodeFormat = regexp.MustCompile(`^[0-9]{6}$`)

// ParseFamily accepts a family name case-insensitively. Legacy names used by the admin tooling
// ("Pos12", "Gen16", "Mos") are accepted too.
func ParseFamily(s string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Families, f) {
		return "", errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "Family",
			Value:   s,
			Message: "expected one of pos12, gen16, mos",
		})
	}
	return f, nil
}

func (f Family) String() string {
	return string(f)
}

// IsMulti reports whether inventory for f is counted per sub-code.
func (f Family) IsMulti() bool {
	return f == Mos
}

// UnmarshalText lets config and plan files name families as plain strings.
func (f *Family) UnmarshalText(text []byte) error {
	parsed, err := ParseFamily(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f Family) MarshalText() ([]byte, error) {
	return []byte(f), nil
}

// Valid reports whether code matches the format of f.
func (f Family) Valid(code string) bool {
	format, ok := formats[f]
	return ok && format.MatchString(code)
}

// ValidateSubCode checks that subCode is a 6-digit code on the allow-list.
func ValidateSubCode(subCode string, allowed []string) error {
	if !subCodeFormat.MatchString(subCode) {
		return errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "SubCode",
			Value:   subCode,
			Message: "sub-codes are exactly 6 digits",
		})
	}
	if !slices.Contains(allowed, subCode) {
		return errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "SubCode",
			Value:   subCode,
			Message: "not in the allowed sub-codes " + strings.Join(allowed, ","),
		})
	}
	return nil
}

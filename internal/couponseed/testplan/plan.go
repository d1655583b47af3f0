// Package testplan holds the static test-pattern and test-case tables.
package testplan

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

//go:embed default_plan.yaml
var defaultPlan []byte

// Status is curated by whoever maintains the plan. The orchestrator never changes it.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusPass       Status = "pass"
	StatusFail       Status = "fail"
)

func (s *Status) UnmarshalText(text []byte) error {
	switch v := Status(strings.ToLower(string(text))); v {
	case StatusNew, StatusProcessing, StatusPass, StatusFail:
		*s = v
		return nil
	default:
		return errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "Status",
			Value:   string(text),
			Message: "expected one of new, processing, pass, fail",
		})
	}
}

// TestPattern is a fan-out shape: how many executions a case starts and how many coupons each issues.
type TestPattern struct {
	ID                string `json:"-"`
	NumberOfProcesses int    `json:"numberOfProcesses"`
	CouponsPerProcess int    `json:"couponsPerProcess"`
}

// Needed is the total number of codes a case with this pattern consumes.
func (p TestPattern) Needed() int {
	return p.NumberOfProcesses * p.CouponsPerProcess
}

type TestCase struct {
	No        int            `json:"no"`
	Family    barcode.Family `json:"family"`
	PatternID string         `json:"pattern"`
	Status    Status         `json:"status"`
}

func (tc TestCase) String() string {
	return fmt.Sprintf("test case %d (%s, %s)", tc.No, tc.Family, tc.PatternID)
}

type Plan struct {
	Patterns map[string]TestPattern `json:"patterns"`
	Cases    []TestCase             `json:"cases"`
}

// Default returns the built-in plan.
func Default() *Plan {
	plan, err := Parse(defaultPlan)
	if err != nil {
		panic(err)
	}
	return plan
}

// Load reads a plan from a YAML or JSON file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	plan, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid plan %s", path)
	}
	return plan, nil
}

// Parse decodes and validates a plan.
func Parse(data []byte) (*Plan, error) {
	plan := &Plan{}
	if err := yaml.UnmarshalStrict(data, plan); err != nil {
		return nil, errors.WithStack(err)
	}
	for id, pattern := range plan.Patterns {
		pattern.ID = id
		plan.Patterns[id] = pattern
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate checks every pattern and case, returning all problems at once.
func (p *Plan) Validate() error {
	var result *multierror.Error
	for id, pattern := range p.Patterns {
		if pattern.NumberOfProcesses <= 0 {
			result = multierror.Append(result, errors.WithStack(&couponerrors.ErrInvalidArgument{
				Name:    "NumberOfProcesses",
				Value:   pattern.NumberOfProcesses,
				Message: fmt.Sprintf("pattern %s must start at least one process", id),
			}))
		}
		if pattern.CouponsPerProcess <= 0 {
			result = multierror.Append(result, errors.WithStack(&couponerrors.ErrInvalidArgument{
				Name:    "CouponsPerProcess",
				Value:   pattern.CouponsPerProcess,
				Message: fmt.Sprintf("pattern %s must issue at least one coupon per process", id),
			}))
		}
	}

	seen := make(map[int]bool, len(p.Cases))
	for _, tc := range p.Cases {
		if seen[tc.No] {
			result = multierror.Append(result, errors.WithStack(&couponerrors.ErrInvalidArgument{
				Name:    "No",
				Value:   tc.No,
				Message: "test case numbers must be unique",
			}))
		}
		seen[tc.No] = true
		if _, err := barcode.ParseFamily(string(tc.Family)); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "test case %d", tc.No))
		}
		if _, ok := p.Patterns[tc.PatternID]; !ok {
			result = multierror.Append(result, errors.WithStack(&couponerrors.ErrInvalidArgument{
				Name:    "Pattern",
				Value:   tc.PatternID,
				Message: fmt.Sprintf("test case %d refers to an unknown pattern", tc.No),
			}))
		}
		if tc.Status == "" {
			result = multierror.Append(result, errors.WithStack(&couponerrors.ErrInvalidArgument{
				Name:    "Status",
				Value:   tc.Status,
				Message: fmt.Sprintf("test case %d has no status", tc.No),
			}))
		}
	}
	return result.ErrorOrNil()
}

// Pattern looks up the pattern of a case.
func (p *Plan) Pattern(id string) (TestPattern, error) {
	pattern, ok := p.Patterns[id]
	if !ok {
		return TestPattern{}, errors.WithStack(&couponerrors.ErrNotFound{Type: "TestPattern", Value: id})
	}
	return pattern, nil
}

// Case looks up a case by number.
func (p *Plan) Case(no int) (TestCase, error) {
	for _, tc := range p.Cases {
		if tc.No == no {
			return tc, nil
		}
	}
	return TestCase{}, errors.WithStack(&couponerrors.ErrNotFound{Type: "TestCase", Value: fmt.Sprint(no)})
}

// Pending returns, in table order, the cases marked new whose number is not in finished.
func (p *Plan) Pending(finished map[int]bool) []TestCase {
	var pending []TestCase
	for _, tc := range p.Cases {
		if tc.Status == StatusNew && !finished[tc.No] {
			pending = append(pending, tc)
		}
	}
	return pending
}

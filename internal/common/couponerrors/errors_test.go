package couponerrors

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindFromError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want Kind
	}{
		"ErrInvalidArgument":                 {&ErrInvalidArgument{}, KindInvalidInput},
		"ErrNotFound":                        {&ErrNotFound{}, KindNotFound},
		"ErrOracleUnavailable":               {&ErrOracleUnavailable{}, KindOracleUnavailable},
		"ErrGenerationFailure":               {&ErrGenerationFailure{}, KindGenerationFailure},
		"ErrUploadFailure":                   {&ErrUploadFailure{}, KindUploadFailure},
		"ErrWorkflowStartFailure":            {&ErrWorkflowStartFailure{}, KindWorkflowStartFailure},
		"ErrPollFailure":                     {&ErrPollFailure{}, KindPollFailure},
		"ErrTimeout":                         {&ErrTimeout{}, KindTimeout},
		"pkg.Error => ErrTimeout":            {errors.WithMessage(&ErrTimeout{}, "foo"), KindTimeout},
		"pkg.Error => ErrUploadFailure":      {errors.WithStack(&ErrUploadFailure{Err: errors.New("bar")}), KindUploadFailure},
		"multierror => ErrOracleUnavailable": {multierror.Append(nil, &ErrOracleUnavailable{}), KindOracleUnavailable},
		"pkg.Error":                          {errors.New("foo"), KindUnknown},
		"context.Canceled":                   {context.Canceled, KindUnknown},
		"nil":                                {nil, ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindFromError(tc.err))
		})
	}
}

func TestWrappedCauseIsReachable(t *testing.T) {
	cause := errors.New("connection refused")
	err := errors.WithStack(&ErrOracleUnavailable{Source: "redis", Err: cause})
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsTimeout(t *testing.T) {
	err := errors.Wrap(&ErrTimeout{Operation: "inventory wait", Elapsed: time.Hour, Limit: time.Hour}, "test case 3")
	assert.True(t, IsTimeout(err))
	assert.False(t, IsTimeout(errors.New("foo")))
	assert.Equal(t, "test case 3: inventory wait timed out after 1h0m0s (limit 1h0m0s)", err.Error())
}

type policy string

func TestErrInvalidArgumentMessage(t *testing.T) {
	tests := map[string]struct {
		err  *ErrInvalidArgument
		want string
	}{
		"string":       {&ErrInvalidArgument{Name: "Family", Value: "pos13", Message: "unknown family"}, `value "pos13" is invalid for field "Family"; unknown family`},
		"int":          {&ErrInvalidArgument{Name: "Count", Value: 1000}, `value 1000 is invalid for field "Count"`},
		"zero":         {&ErrInvalidArgument{Name: "Count", Value: 0, Message: "must be positive"}, `value 0 is invalid for field "Count"; must be positive`},
		"named string": {&ErrInvalidArgument{Name: "ResumePolicy", Value: policy("lenient")}, `value "lenient" is invalid for field "ResumePolicy"`},
		"string slice": {&ErrInvalidArgument{Name: "SubCodes", Value: []string{"777777"}}, `value [777777] is invalid for field "SubCodes"`},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

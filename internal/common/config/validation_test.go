package config

import (
	"bytes"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
)

type validated struct {
	Bucket string `validate:"required"`
	Port   int    `validate:"gte=0"`
}

func captureLog(t *testing.T) *bytes.Buffer {
	buf := &bytes.Buffer{}
	out, formatter := log.StandardLogger().Out, log.StandardLogger().Formatter
	log.SetOutput(buf)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true, DisableQuote: true})
	t.Cleanup(func() {
		log.SetOutput(out)
		log.SetFormatter(formatter)
	})
	return buf
}

func TestLogValidationErrors(t *testing.T) {
	tests := map[string]struct {
		err  error
		want []string
	}{
		"validator": {
			err: validator.New().Struct(validated{Port: -1}),
			want: []string{
				"ConfigError: Field Bucket is required but was not found",
				"ConfigError: Field Port has invalid value -1: gte",
			},
		},
		"invalid arguments": {
			err: multierror.Append(nil,
				errors.WithStack(&couponerrors.ErrInvalidArgument{Name: "Mos.AllowedSubCodes", Value: "999999", Message: "no coupon master"}),
				errors.New("something else")),
			want: []string{
				"ConfigError: Field Mos.AllowedSubCodes has invalid value 999999: no coupon master",
				"ConfigError: something else",
			},
		},
		"plain": {
			err:  errors.New("broken"),
			want: []string{"ConfigError: broken"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			buf := captureLog(t)
			LogValidationErrors(tc.err)
			for _, want := range tc.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

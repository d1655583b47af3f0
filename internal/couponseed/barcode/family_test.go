package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
)

func TestParseFamily(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    Family
		wantErr bool
	}{
		"lower case":       {input: "pos12", want: Pos12},
		"legacy name":      {input: "Gen16", want: Gen16},
		"surrounding text": {input: " Mos ", want: Mos},
		"unknown":          {input: "pos13", wantErr: true},
		"empty":            {input: "", wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseFamily(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, couponerrors.KindInvalidInput, couponerrors.KindFromError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFamilyValid(t *testing.T) {
	tests := map[string]struct {
		family Family
		code   string
		want   bool
	}{
		"pos12":               {Pos12, "A0123456789012C", true},
		"pos12 wrong suffix":  {Pos12, "A0123456789012B", false},
		"pos12 short":         {Pos12, "A012345678901C", false},
		"gen16":               {Gen16, "0000000000000001", true},
		"gen16 letters":       {Gen16, "000000000000000A", false},
		"mos":                 {Mos, "B7777772000123B", true},
		"mos missing marker":  {Mos, "B7777773000123B", false},
		"unknown family":      {Family("x"), "B7777772000123B", false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.family.Valid(tc.code))
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var f Family
	require.NoError(t, f.UnmarshalText([]byte("MOS")))
	assert.Equal(t, Mos, f)
	assert.True(t, f.IsMulti())
	assert.Error(t, f.UnmarshalText([]byte("qr")))
}

func TestValidateSubCode(t *testing.T) {
	allowed := []string{"777777", "123456"}
	assert.NoError(t, ValidateSubCode("123456", allowed))

	err := ValidateSubCode("999999", allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the allowed sub-codes")

	err = ValidateSubCode("12345", allowed)
	require.Error(t, err)
	assert.Equal(t, couponerrors.KindInvalidInput, couponerrors.KindFromError(err))
}

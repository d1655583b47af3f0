package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

type fakeLambda struct {
	lambdaiface.LambdaAPI
	outputs []*lambda.InvokeOutput
	errs    []error
	inputs  []*lambda.InvokeInput
}

func (f *fakeLambda) InvokeWithContext(ctx aws.Context, input *lambda.InvokeInput, opts ...request.Option) (*lambda.InvokeOutput, error) {
	i := len(f.inputs)
	f.inputs = append(f.inputs, input)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return f.outputs[i], nil
}

const overviewPayload = `{
  "availablePos12": 500000,
  "availableGen16": 2000000,
  "availableMosDetail": {
    "dev-coupon-BarcodeMos-table:available:777777": 2000,
    "dev-coupon-BarcodeMos-table:available:123456": 900,
    "dev-coupon-BarcodeMos-table:used:123456": 5
  },
  "usedPos12": 10
}`

func TestLambdaOracle(t *testing.T) {
	fake := &fakeLambda{outputs: []*lambda.InvokeOutput{{StatusCode: aws.Int64(200), Payload: []byte(overviewPayload)}}}
	oracle := NewLambdaOracleWithAPI(fake, "dev-coupon-DebugRedisFn-function", mosPrefix)

	snapshot, err := oracle.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[barcode.Family]int{barcode.Pos12: 500000, barcode.Gen16: 2000000}, snapshot.AvailableByFamily)
	assert.Equal(t, map[string]int{"777777": 2000, "123456": 900}, snapshot.AvailableMultiByCode)
	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "dev-coupon-DebugRedisFn-function", aws.StringValue(fake.inputs[0].FunctionName))
	assert.JSONEq(t, `{"code":"overview"}`, string(fake.inputs[0].Payload))
}

func TestLambdaOracle_Failures(t *testing.T) {
	tests := map[string]struct {
		output *lambda.InvokeOutput
		err    error
	}{
		"invoke error":   {err: errors.New("throttled")},
		"function error": {output: &lambda.InvokeOutput{FunctionError: aws.String("Unhandled"), Payload: []byte(`{"errorMessage":"boom"}`)}},
		"empty payload":  {output: &lambda.InvokeOutput{}},
		"malformed":      {output: &lambda.InvokeOutput{Payload: []byte(`{"availablePos12": "many"}`)}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			fake := &fakeLambda{outputs: []*lambda.InvokeOutput{tc.output}, errs: []error{tc.err}}
			_, err := NewLambdaOracleWithAPI(fake, "fn", mosPrefix).Snapshot(context.Background())
			require.Error(t, err)
			assert.Equal(t, couponerrors.KindOracleUnavailable, couponerrors.KindFromError(err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	fake := &fakeLambda{
		outputs: []*lambda.InvokeOutput{nil, {Payload: []byte(overviewPayload)}},
		errs:    []error{errors.New("throttled"), nil},
	}
	snapshot, err := WithRetry(NewLambdaOracleWithAPI(fake, "fn", mosPrefix), 3, time.Millisecond).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500000, snapshot.Available(barcode.Pos12, ""))
	assert.Len(t, fake.inputs, 2)

	fake = &fakeLambda{errs: []error{errors.New("a"), errors.New("b")}}
	_, err = WithRetry(NewLambdaOracleWithAPI(fake, "fn", mosPrefix), 2, time.Millisecond).Snapshot(context.Background())
	require.Error(t, err)
	assert.Equal(t, couponerrors.KindOracleUnavailable, couponerrors.KindFromError(err))
	assert.Len(t, fake.inputs, 2)
}

func TestSnapshotString(t *testing.T) {
	s := &Snapshot{
		AvailableByFamily:    map[barcode.Family]int{barcode.Pos12: 1, barcode.Gen16: 2},
		AvailableMultiByCode: map[string]int{"777777": 4, "123456": 3},
	}
	assert.Equal(t, "FAMILY  SUB-CODE  AVAILABLE\n"+
		"pos12   -         1\n"+
		"gen16   -         2\n"+
		"mos     123456    3\n"+
		"mos     777777    4\n", s.String())
}

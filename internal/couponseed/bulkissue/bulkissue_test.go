package bulkissue

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sfn"
	"github.com/aws/aws-sdk-go/service/sfn/sfniface"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
	"github.com/armadaproject/couponseed/internal/couponseed/configuration"
)

const stateMachineArn = "arn:aws:states:ap-northeast-1:123456789012:stateMachine:dev-coupon-bulkIssuedCoupon-machine"

var workflow = configuration.WorkflowConfig{
	StateMachineArn: stateMachineArn,
	BatchSize:       10000,
	PublishedFrom:   "admin",
	Description:     "e2e test",
	Masters: map[string]configuration.IssueMaster{
		"gen16":  {CouponMasterId: "gen16-master", PublishedOrganizationId: "org-1", PublishedOrganizationName: "e2e organization"},
		"123456": {CouponMasterId: "mos-master", PublishedOrganizationId: "org-2", PublishedOrganizationName: "e2e", Description: "e2e"},
	},
}

type fakeSFN struct {
	sfniface.SFNAPI
	starts       []*sfn.StartExecutionInput
	startErr     error
	statuses     []string
	describeErrs []error
	describes    int
}

func (f *fakeSFN) StartExecutionWithContext(ctx aws.Context, input *sfn.StartExecutionInput, opts ...request.Option) (*sfn.StartExecutionOutput, error) {
	f.starts = append(f.starts, input)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &sfn.StartExecutionOutput{ExecutionArn: aws.String(ExecutionArn(aws.StringValue(input.StateMachineArn), aws.StringValue(input.Name)))}, nil
}

func (f *fakeSFN) DescribeExecutionWithContext(ctx aws.Context, input *sfn.DescribeExecutionInput, opts ...request.Option) (*sfn.DescribeExecutionOutput, error) {
	i := f.describes
	f.describes++
	if i < len(f.describeErrs) && f.describeErrs[i] != nil {
		return nil, f.describeErrs[i]
	}
	return &sfn.DescribeExecutionOutput{ExecutionArn: input.ExecutionArn, Status: aws.String(f.statuses[i])}, nil
}

func TestExecutionName(t *testing.T) {
	assert.Equal(t, "bulk-issue-tc7-p1-abc", ExecutionName(7, 1, "abc"))
	assert.NotEqual(t, NewRunID(), NewRunID())
	assert.True(t, strings.HasPrefix(AdhocExecutionName(time.UnixMilli(1700000000000)), "bulk-issue-1700000000000-"))
}

func TestExecutionArn(t *testing.T) {
	assert.Equal(t,
		"arn:aws:states:ap-northeast-1:123456789012:execution:dev-coupon-bulkIssuedCoupon-machine:bulk-issue-tc1-p0-x",
		ExecutionArn(stateMachineArn, "bulk-issue-tc1-p0-x"))
}

func TestBuildPayload(t *testing.T) {
	tests := map[string]struct {
		req      StartRequest
		expected *Payload
	}{
		"gen16": {
			req: StartRequest{Family: barcode.Gen16, Count: 1000000},
			expected: &Payload{
				CouponMasterId:            "gen16-master",
				IssuedNumber:              1000000,
				BarcodeSource:             "CouponGeneral16Barcode",
				BatchSize:                 10000,
				PublishedFrom:             "admin",
				PublishedOrganizationId:   "org-1",
				PublishedOrganizationName: "e2e organization",
				Description:               "e2e test",
			},
		},
		"mos": {
			req: StartRequest{Family: barcode.Mos, SubCode: "123456", Count: 1000},
			expected: &Payload{
				CouponMasterId:            "mos-master",
				CouponCode:                "123456",
				IssuedNumber:              1000,
				BarcodeSource:             "CouponMosBarcode",
				BatchSize:                 10000,
				PublishedFrom:             "admin",
				PublishedOrganizationId:   "org-2",
				PublishedOrganizationName: "e2e",
				Description:               "e2e",
			},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			payload, err := BuildPayload(workflow, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, payload)
		})
	}
}

func TestBuildPayload_Invalid(t *testing.T) {
	tests := map[string]StartRequest{
		"no master":      {Family: barcode.Pos12, Count: 1},
		"unknown mos":    {Family: barcode.Mos, SubCode: "999999", Count: 1},
		"zero count":     {Family: barcode.Gen16},
		"unknown family": {Family: "pos13", Count: 1},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := BuildPayload(workflow, req)
			assert.Equal(t, couponerrors.KindInvalidInput, couponerrors.KindFromError(err))
		})
	}
}

func TestStart(t *testing.T) {
	api := &fakeSFN{}
	history := NewHistory(filepath.Join(t.TempDir(), "sfn", "process.jsonl"))
	client := NewStepFunctionsClientWithAPI(api, workflow, history, 3, time.Millisecond)

	handle, err := client.Start(context.Background(), StartRequest{Name: "bulk-issue-tc1-p0-x", Family: barcode.Gen16, Count: 1000000})
	require.NoError(t, err)

	assert.Equal(t, ExecutionHandle(ExecutionArn(stateMachineArn, "bulk-issue-tc1-p0-x")), handle)
	require.Len(t, api.starts, 1)
	assert.Equal(t, "bulk-issue-tc1-p0-x", aws.StringValue(api.starts[0].Name))
	var input map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.StringValue(api.starts[0].Input)), &input))
	assert.Equal(t, "gen16-master", input["couponMasterId"])
	assert.Equal(t, float64(1000000), input["issuedNumber"])
	assert.Equal(t, false, input["fifo"])
	assert.NotContains(t, input, "couponCode")

	records, err := history.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, handle.String(), records[0].Arn)
	assert.NotEmpty(t, records[0].Id)
}

func TestStart_AlreadyExists(t *testing.T) {
	api := &fakeSFN{startErr: awserr.New(sfn.ErrCodeExecutionAlreadyExists, "Execution Already Exists", nil)}
	client := NewStepFunctionsClientWithAPI(api, workflow, nil, 1, 0)

	handle, err := client.Start(context.Background(), StartRequest{Name: "bulk-issue-tc1-p0-x", Family: barcode.Gen16, Count: 10})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(handle.String(), ":execution:dev-coupon-bulkIssuedCoupon-machine:bulk-issue-tc1-p0-x"))
}

func TestStart_Failure(t *testing.T) {
	api := &fakeSFN{startErr: awserr.New(sfn.ErrCodeStateMachineDoesNotExist, "no such machine", nil)}
	client := NewStepFunctionsClientWithAPI(api, workflow, nil, 1, 0)

	_, err := client.Start(context.Background(), StartRequest{Name: "n", Family: barcode.Gen16, Count: 10})
	assert.Equal(t, couponerrors.KindWorkflowStartFailure, couponerrors.KindFromError(err))
}

func TestStatus(t *testing.T) {
	tests := map[string]struct {
		api      *fakeSFN
		expected string
		kind     couponerrors.Kind
		calls    int
	}{
		"first read": {
			api:      &fakeSFN{statuses: []string{StatusRunning}},
			expected: StatusRunning,
			calls:    1,
		},
		"transient failure is retried": {
			api:      &fakeSFN{statuses: []string{"", StatusSucceeded}, describeErrs: []error{errors.New("throttled")}},
			expected: StatusSucceeded,
			calls:    2,
		},
		"attempts exhausted": {
			api:   &fakeSFN{describeErrs: []error{errors.New("a"), errors.New("b"), errors.New("c")}},
			kind:  couponerrors.KindPollFailure,
			calls: 3,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			client := NewStepFunctionsClientWithAPI(tc.api, workflow, nil, 3, time.Millisecond)
			status, err := client.Status(context.Background(), "arn")
			if tc.kind != "" {
				assert.Equal(t, tc.kind, couponerrors.KindFromError(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, status)
			}
			assert.Equal(t, tc.calls, tc.api.describes)
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(StatusRunning))
	assert.False(t, IsTerminal(""))
	for _, s := range []string{StatusSucceeded, StatusFailed, StatusTimedOut, StatusAborted} {
		assert.True(t, IsTerminal(s), s)
	}
}

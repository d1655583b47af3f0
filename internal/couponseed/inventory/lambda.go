package inventory

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/pkg/errors"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

var overviewRequest = []byte(`{"code":"overview"}`)

// overviewResponse is the part of the debug function's overview we use.
type overviewResponse struct {
	AvailablePos12     int            `json:"availablePos12"`
	AvailableGen16     int            `json:"availableGen16"`
	AvailableMosDetail map[string]int `json:"availableMosDetail"`
}

// LambdaOracle reads inventory through the debug function that reports the redis counters.
type LambdaOracle struct {
	client       lambdaiface.LambdaAPI
	functionName string
	mosKeyPrefix string
}

func NewLambdaOracle(sess *session.Session, functionName, mosKeyPrefix string) *LambdaOracle {
	return NewLambdaOracleWithAPI(lambda.New(sess), functionName, mosKeyPrefix)
}

func NewLambdaOracleWithAPI(client lambdaiface.LambdaAPI, functionName, mosKeyPrefix string) *LambdaOracle {
	return &LambdaOracle{client: client, functionName: functionName, mosKeyPrefix: mosKeyPrefix}
}

func (o *LambdaOracle) Snapshot(ctx context.Context) (*Snapshot, error) {
	out, err := o.client.InvokeWithContext(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(o.functionName),
		InvocationType: aws.String(lambda.InvocationTypeRequestResponse),
		Payload:        overviewRequest,
	})
	if err != nil {
		return nil, o.unavailable(err)
	}
	if out.FunctionError != nil {
		return nil, o.unavailable(errors.Errorf("function error %s: %s", aws.StringValue(out.FunctionError), out.Payload))
	}
	if len(out.Payload) == 0 {
		return nil, o.unavailable(errors.New("empty payload"))
	}

	var resp overviewResponse
	if err := json.Unmarshal(out.Payload, &resp); err != nil {
		return nil, o.unavailable(errors.Wrap(err, "malformed overview"))
	}

	snapshot := newSnapshot()
	snapshot.AvailableByFamily[barcode.Pos12] = resp.AvailablePos12
	snapshot.AvailableByFamily[barcode.Gen16] = resp.AvailableGen16
	for key, count := range resp.AvailableMosDetail {
		if subCode := strings.TrimPrefix(key, o.mosKeyPrefix); subCode != key {
			snapshot.AvailableMultiByCode[subCode] = count
		}
	}
	return snapshot, nil
}

func (o *LambdaOracle) unavailable(err error) error {
	return errors.WithStack(&couponerrors.ErrOracleUnavailable{Source: o.functionName, Err: err})
}

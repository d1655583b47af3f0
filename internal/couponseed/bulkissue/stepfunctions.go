package bulkissue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sfn"
	"github.com/aws/aws-sdk-go/service/sfn/sfniface"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/couponseed/configuration"
)

// StepFunctionsClient runs bulk issuance on the bulk-issue state machine.
type StepFunctionsClient struct {
	api      sfniface.SFNAPI
	workflow configuration.WorkflowConfig
	// Every started execution is recorded here, if set
	history *History
	// Attempts and fixed delay for one status read
	retryAttempts uint
	retryDelay    time.Duration
}

func NewStepFunctionsClient(sess *session.Session, workflow configuration.WorkflowConfig, history *History, retryAttempts uint, retryDelay time.Duration) *StepFunctionsClient {
	return NewStepFunctionsClientWithAPI(sfn.New(sess), workflow, history, retryAttempts, retryDelay)
}

func NewStepFunctionsClientWithAPI(api sfniface.SFNAPI, workflow configuration.WorkflowConfig, history *History, retryAttempts uint, retryDelay time.Duration) *StepFunctionsClient {
	if retryAttempts == 0 {
		retryAttempts = 1
	}
	return &StepFunctionsClient{
		api:           api,
		workflow:      workflow,
		history:       history,
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
	}
}

func (c *StepFunctionsClient) Start(ctx context.Context, req StartRequest) (ExecutionHandle, error) {
	payload, err := BuildPayload(c.workflow, req)
	if err != nil {
		return "", err
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", errors.WithStack(err)
	}

	logger := log.WithFields(log.Fields{"execution": req.Name, "family": req.Family, "count": req.Count})
	if req.SubCode != "" {
		logger = logger.WithField("subCode", req.SubCode)
	}

	var handle ExecutionHandle
	out, err := c.api.StartExecutionWithContext(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(c.workflow.StateMachineArn),
		Name:            aws.String(req.Name),
		Input:           aws.String(string(input)),
	})
	var awsErr awserr.Error
	switch {
	case err == nil:
		handle = ExecutionHandle(aws.StringValue(out.ExecutionArn))
	case errors.As(err, &awsErr) && awsErr.Code() == sfn.ErrCodeExecutionAlreadyExists:
		// A closed execution with this name exists already, so this is a resumed start.
		handle = ExecutionHandle(ExecutionArn(c.workflow.StateMachineArn, req.Name))
		logger.Warnf("execution already exists; reusing %s", handle)
	default:
		return "", errors.WithStack(&couponerrors.ErrWorkflowStartFailure{Name: req.Name, Err: err})
	}
	logger.Infof("started execution %s", handle)

	if c.history != nil {
		if err := c.history.Record(handle, time.Now()); err != nil {
			logger.WithError(err).Warn("could not record execution history")
		}
	}
	return handle, nil
}

func (c *StepFunctionsClient) Status(ctx context.Context, h ExecutionHandle) (string, error) {
	var status string
	err := retry.Do(
		func() error {
			out, err := c.api.DescribeExecutionWithContext(ctx, &sfn.DescribeExecutionInput{
				ExecutionArn: aws.String(h.String()),
			})
			if err != nil {
				return err
			}
			status = aws.StringValue(out.Status)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Debugf("describe %s failed (attempt %d/%d)", h, n+1, c.retryAttempts)
		}),
	)
	if err != nil {
		return "", errors.WithStack(&couponerrors.ErrPollFailure{Handle: h.String(), Err: err})
	}
	return status, nil
}

// ExecutionArn is the ARN of the execution called name of stateMachineArn.
func ExecutionArn(stateMachineArn, name string) string {
	return strings.Replace(stateMachineArn, ":stateMachine:", ":execution:", 1) + ":" + name
}

package configuration

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
)

// Validate checks field constraints first and then the relations between sections.
func (c CouponSeedConfiguration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	var result *multierror.Error
	invalid := func(name string, value interface{}, format string, args ...interface{}) {
		result = multierror.Append(result, errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    name,
			Value:   value,
			Message: fmt.Sprintf(format, args...),
		}))
	}

	for _, family := range []barcode.Family{barcode.Pos12, barcode.Gen16} {
		if _, ok := c.Workflow.Masters[family.String()]; !ok {
			invalid("Workflow.Masters", family, "no coupon master configured for %s", family)
		}
	}
	for _, subCode := range c.Mos.AllowedSubCodes {
		if _, ok := c.Workflow.Masters[subCode]; !ok {
			invalid("Mos.AllowedSubCodes", subCode, "no coupon master configured for sub-code %s", subCode)
		}
	}

	switch c.Oracle.Type {
	case OracleLambda:
		if c.Oracle.LambdaFunction == "" {
			invalid("Oracle.LambdaFunction", "", "required when the oracle type is %s", OracleLambda)
		}
	case OracleRedis:
		if c.Oracle.Redis == nil {
			invalid("Oracle.Redis", nil, "required when the oracle type is %s", OracleRedis)
		}
		for _, family := range []barcode.Family{barcode.Pos12, barcode.Gen16} {
			if c.Oracle.CounterKeys[family.String()] == "" {
				invalid("Oracle.CounterKeys", family, "no counter key configured for %s", family)
			}
		}
	}

	switch c.ExecutionLog.Type {
	case ExecutionLogFile:
		if c.ExecutionLog.FilePath == "" {
			invalid("ExecutionLog.FilePath", "", "required when the execution log type is %s", ExecutionLogFile)
		}
	case ExecutionLogSqlite:
		if c.ExecutionLog.SqlitePath == "" {
			invalid("ExecutionLog.SqlitePath", "", "required when the execution log type is %s", ExecutionLogSqlite)
		}
	case ExecutionLogPostgres:
		if c.ExecutionLog.Postgres == nil || len(c.ExecutionLog.Postgres.Connection) == 0 {
			invalid("ExecutionLog.Postgres", nil, "connection required when the execution log type is %s", ExecutionLogPostgres)
		}
	}

	if c.Orchestration.CompletionFloor >= c.Orchestration.CompletionTimeout {
		invalid("Orchestration.CompletionFloor", c.Orchestration.CompletionFloor.String(),
			"must be shorter than CompletionTimeout %s", c.Orchestration.CompletionTimeout)
	}
	return result.ErrorOrNil()
}

// UploadRegion is the bucket region, falling back to the AWS region.
func (c CouponSeedConfiguration) UploadRegion() string {
	if c.Upload.Region != "" {
		return c.Upload.Region
	}
	return c.Aws.Region
}

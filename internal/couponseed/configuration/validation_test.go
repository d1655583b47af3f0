package configuration

import (
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/couponseed/internal/common/config"
)

func loadDefaultConfig(t *testing.T) CouponSeedConfiguration {
	var cfg CouponSeedConfiguration
	_, err := config.LoadConfig(&cfg, "../../../config/couponseed", nil)
	require.NoError(t, err)
	return cfg
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := loadDefaultConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, OracleLambda, cfg.Oracle.Type)
	assert.Equal(t, 33*time.Minute, cfg.Orchestration.CompletionFloor)
	assert.Equal(t, 3*time.Hour, cfg.Orchestration.CompletionTimeout)
	assert.Equal(t, ResumeReuseKey, cfg.Orchestration.ResumePolicy)
	assert.Equal(t, []string{"777777", "123456", "654321", "666666"}, cfg.Mos.AllowedSubCodes)
	assert.Equal(t, "8e9a189a-2f35-4ff0-952d-e7100f32aa2e", cfg.Workflow.Masters["777777"].CouponMasterId)
	assert.Equal(t, "ap-northeast-1", cfg.UploadRegion())
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate  func(c *CouponSeedConfiguration)
		numErrs int
	}{
		"sub-code without master": {
			mutate:  func(c *CouponSeedConfiguration) { c.Mos.AllowedSubCodes = append(c.Mos.AllowedSubCodes, "999999") },
			numErrs: 1,
		},
		"redis oracle without redis config": {
			mutate: func(c *CouponSeedConfiguration) {
				c.Oracle.Type = OracleRedis
				c.Oracle.CounterKeys = nil
			},
			numErrs: 3,
		},
		"postgres log without connection": {
			mutate:  func(c *CouponSeedConfiguration) { c.ExecutionLog.Type = ExecutionLogPostgres },
			numErrs: 1,
		},
		"floor longer than timeout": {
			mutate:  func(c *CouponSeedConfiguration) { c.Orchestration.CompletionFloor = 4 * time.Hour },
			numErrs: 1,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := loadDefaultConfig(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			merr, ok := err.(*multierror.Error)
			require.True(t, ok, "%T", err)
			assert.Len(t, merr.Errors, tc.numErrs)
		})
	}
}

func TestValidate_FieldConstraints(t *testing.T) {
	cfg := loadDefaultConfig(t)
	cfg.Orchestration.IngestRatePerSecond = 0
	cfg.Mos.AllowedSubCodes = []string{"12345"}

	err := cfg.Validate()
	require.Error(t, err)
	config.LogValidationErrors(err)
	assert.Contains(t, err.Error(), "IngestRatePerSecond")
	assert.Contains(t, err.Error(), "AllowedSubCodes[0]")
}

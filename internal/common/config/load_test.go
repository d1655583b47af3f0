package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Upload struct {
		Bucket string `validate:"required"`
	}
	PollInterval time.Duration
	SubCodes     []string
	Redis        RedisConfig
}

func writeFile(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfig_MergesOverridesAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
upload:
  bucket: base-bucket
pollInterval: 20s
subCodes: [123456, 654321]
redis:
  addr: localhost:6379
`)
	override := writeFile(t, dir, "override.yaml", `
pollInterval: 1m
`)
	t.Setenv("COUPONSEED_UPLOAD_BUCKET", "env-bucket")

	var cfg testConfig
	_, err := LoadConfig(&cfg, dir, []string{override})
	require.NoError(t, err)

	assert.Equal(t, "env-bucket", cfg.Upload.Bucket)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, []string{"123456", "654321"}, cfg.SubCodes)
	assert.Equal(t, "localhost:6379", cfg.Redis.AsOptions().Addr)
}

func TestLoadConfig_MissingOverrideFails(t *testing.T) {
	var cfg testConfig
	_, err := LoadConfig(&cfg, t.TempDir(), []string{"/does/not/exist.yaml"})
	assert.Error(t, err)
}

func TestValidationFailsOnMissingRequiredField(t *testing.T) {
	var cfg testConfig
	cfg.Redis.Addr = "localhost:6379"
	err := validator.New().Struct(cfg)
	require.Error(t, err)
	LogValidationErrors(err)
	assert.Len(t, err.(validator.ValidationErrors), 1)
}

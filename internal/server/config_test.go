package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, "formatted", cfg.FormattedDir)
	assert.Equal(t, int64(10<<20), cfg.MaxFileBytes)
	assert.Equal(t, StagingDisk, cfg.Staging)
	assert.False(t, cfg.TrustProxy)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Vercel(t *testing.T) {
	cfg, err := LoadConfig("", envMap(map[string]string{"VERCEL": "1"}))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/uploads", cfg.UploadDir)
	assert.Equal(t, "/tmp/formatted", cfg.FormattedDir)
}

func TestLoadConfig_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := strings.Join([]string{
		"addr: \":8080\"",
		"env: staging",
		"max_file_bytes: 2048",
		"rate_limit: 5",
		"sweep_interval: 30s",
		"log_format: json",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := LoadConfig(path, envMap(map[string]string{
		"CA_ADDR":          ":9090",
		"CA_SWEEP_MAX_AGE": "2h",
		"CA_CONCURRENCY":   "4",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr, "env overrides file")
	assert.Equal(t, EnvStaging, cfg.Env)
	assert.Equal(t, int64(2048), cfg.MaxFileBytes)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 2*time.Hour, cfg.SweepMaxAge)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Port(t *testing.T) {
	cfg, err := LoadConfig("", envMap(map[string]string{"PORT": "4000"}))
	require.NoError(t, err)
	assert.Equal(t, ":4000", cfg.Addr)

	cfg, err = LoadConfig("", envMap(map[string]string{"PORT": "4000", "CA_ADDR": "127.0.0.1:5000"}))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5000", cfg.Addr)
}

func TestLoadConfig_BadEnv(t *testing.T) {
	_, err := LoadConfig("", envMap(map[string]string{
		"CA_MAX_FILE_BYTES": "ten",
		"CA_SWEEP_INTERVAL": "often",
		"CA_TRUST_PROXY":    "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CA_MAX_FILE_BYTES")
	assert.Contains(t, err.Error(), "CA_SWEEP_INTERVAL")
	assert.Contains(t, err.Error(), "CA_TRUST_PROXY")
}

func TestLoadConfig_TrustProxy(t *testing.T) {
	cfg, err := LoadConfig("", envMap(map[string]string{"CA_TRUST_PROXY": "true"}))
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig(envMap(nil))

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad addr", func(c *Config) { c.Addr = "localhost" }, "CA_ADDR"},
		{"bad port", func(c *Config) { c.Addr = ":http" }, "CA_ADDR"},
		{"bad env", func(c *Config) { c.Env = "prod" }, "CA_ENV"},
		{"zero max bytes", func(c *Config) { c.MaxFileBytes = 0 }, "CA_MAX_FILE_BYTES"},
		{"concurrency too high", func(c *Config) { c.Concurrency = 11 }, "CA_CONCURRENCY"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "CA_RATE_LIMIT"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "CA_LOG_LEVEL"},
		{"bad staging", func(c *Config) { c.Staging = "s3" }, "CA_STAGING"},
		{"same dirs", func(c *Config) { c.FormattedDir = c.UploadDir }, "CA_FORMATTED_DIR"},
		{"minio without creds", func(c *Config) {
			c.Staging = StagingMinio
			c.S3Endpoint = "minio:9000"
		}, "CA_S3_ACCESS_KEY"},
		{"minio bad url", func(c *Config) {
			c.Staging = StagingMinio
			c.S3Endpoint = "ftp://minio:9000"
			c.S3AccessKey = "k"
			c.S3SecretKey = "s"
		}, "CA_S3_ENDPOINT"},
		{"bad database url", func(c *Config) { c.DatabaseURL = "mysql://x" }, "DATABASE_URL"},
		{"sweep without age", func(c *Config) { c.SweepMaxAge = 0 }, "CA_SWEEP_MAX_AGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfigValidate_ReportsAll(t *testing.T) {
	cfg := DefaultConfig(envMap(nil))
	cfg.Env = "nope"
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 error(s)")
}

func TestConfigValidate_Minio(t *testing.T) {
	cfg := DefaultConfig(envMap(nil))
	cfg.Staging = StagingMinio
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.S3AccessKey = "minio"
	cfg.S3SecretKey = "minio123"
	cfg.DatabaseURL = "postgres://u:p@localhost:5432/db?sslmode=disable"
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidator(t *testing.T) {
	v := NewConfigValidator()
	v.ValidateURL("A", "https://example.com")
	v.ValidateAddr("B", "0.0.0.0:3000")
	v.ValidateEnum("C", "x", []string{"x", "y"})
	v.ValidateRange("D", 5, 1, 10)
	assert.False(t, v.HasErrors())

	v.ValidateURL("A", "example.com")
	v.ValidateAddr("B", ":70000")
	v.ValidateRange("D", 0, 1, 10)
	assert.Len(t, v.Errors(), 3)
	assert.Contains(t, v.ErrorString(), "3 error(s)")
}

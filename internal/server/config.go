package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"common-addresses/internal/finder"
	"common-addresses/internal/logging"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvStaging     = "staging"
)

// Staging backends.
const (
	StagingDisk  = "disk"
	StagingMinio = "minio"
)

const (
	defaultAddr         = ":3000"
	defaultMaxFileBytes = 10 << 20
	maxMaxFileBytes     = 1 << 30
)

// Config is the complete service configuration.
type Config struct {
	Addr    string `yaml:"addr"`
	Env     string `yaml:"env"`
	Version string `yaml:"version"`

	UploadDir    string `yaml:"upload_dir"`
	FormattedDir string `yaml:"formatted_dir"`
	MaxFileBytes int64  `yaml:"max_file_bytes"`
	Concurrency  int    `yaml:"concurrency"`

	CORSOrigin string `yaml:"cors_origin"`
	// RateLimit is requests per minute per client IP on the find endpoint.
	// Zero disables limiting.
	RateLimit int `yaml:"rate_limit"`
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP. Only
	// enable it behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`

	Staging     string `yaml:"staging"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	Bucket      string `yaml:"bucket"`

	DatabaseURL string `yaml:"database_url"`

	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepMaxAge   time.Duration `yaml:"sweep_max_age"`

	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// DefaultConfig returns the configuration used when nothing is set. When
// running on Vercel only /tmp is writable.
func DefaultConfig(getenv func(string) string) Config {
	cfg := Config{
		Addr:          defaultAddr,
		Env:           EnvDevelopment,
		Version:       "dev",
		UploadDir:     "uploads",
		FormattedDir:  "formatted",
		MaxFileBytes:  defaultMaxFileBytes,
		CORSOrigin:    "*",
		RateLimit:     60,
		Staging:       StagingDisk,
		Bucket:        "common-addresses",
		SweepInterval: 10 * time.Minute,
		SweepMaxAge:   time.Hour,
		LogLevel:      "info",
		LogFormat:     "text",
	}
	if getenv("VERCEL") == "1" {
		cfg.UploadDir = "/tmp/uploads"
		cfg.FormattedDir = "/tmp/formatted"
	}
	return cfg
}

// LoadConfig layers defaults, an optional YAML file and CA_* environment
// variables, in that order.
func LoadConfig(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := DefaultConfig(getenv)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int64) {
		v := getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: must be an integer", key))
			return
		}
		*dst = n
	}
	boolean := func(key string, dst *bool) {
		v := getenv(key)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: must be true or false", key))
			return
		}
		*dst = b
	}
	duration := func(key string, dst *time.Duration) {
		v := getenv(key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: must be a duration (e.g. 10m)", key))
			return
		}
		*dst = d
	}

	if port := getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	str("CA_ADDR", &c.Addr)
	str("CA_ENV", &c.Env)
	str("CA_VERSION", &c.Version)
	str("CA_UPLOAD_DIR", &c.UploadDir)
	str("CA_FORMATTED_DIR", &c.FormattedDir)
	integer("CA_MAX_FILE_BYTES", &c.MaxFileBytes)

	concurrency := int64(c.Concurrency)
	integer("CA_CONCURRENCY", &concurrency)
	c.Concurrency = int(concurrency)

	str("CA_CORS_ORIGIN", &c.CORSOrigin)
	rate := int64(c.RateLimit)
	integer("CA_RATE_LIMIT", &rate)
	c.RateLimit = int(rate)
	boolean("CA_TRUST_PROXY", &c.TrustProxy)

	str("CA_STAGING", &c.Staging)
	str("CA_S3_ENDPOINT", &c.S3Endpoint)
	str("CA_S3_ACCESS_KEY", &c.S3AccessKey)
	str("CA_S3_SECRET_KEY", &c.S3SecretKey)
	str("CA_BUCKET", &c.Bucket)
	str("DATABASE_URL", &c.DatabaseURL)
	duration("CA_SWEEP_INTERVAL", &c.SweepInterval)
	duration("CA_SWEEP_MAX_AGE", &c.SweepMaxAge)
	str("CA_LOG_LEVEL", &c.LogLevel)
	str("CA_LOG_FORMAT", &c.LogFormat)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLPEndpoint)

	return errors.Join(errs...)
}

// Production reports whether internal error details must be hidden.
func (c Config) Production() bool { return c.Env == EnvProduction }

// Validate checks every setting and reports all problems together.
func (c Config) Validate() error {
	v := NewConfigValidator()

	v.ValidateAddr("CA_ADDR", c.Addr)
	v.ValidateEnum("CA_ENV", c.Env, []string{EnvDevelopment, EnvProduction, EnvStaging})
	v.ValidateRange("CA_MAX_FILE_BYTES", c.MaxFileBytes, 1, maxMaxFileBytes)
	v.ValidateRange("CA_CONCURRENCY", int64(c.Concurrency), 0, finder.MaxFiles)
	v.ValidateNonNegative("CA_RATE_LIMIT", int64(c.RateLimit))
	v.ValidateEnum("CA_LOG_LEVEL", c.LogLevel, []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("CA_LOG_FORMAT", c.LogFormat, []string{"json", "text"})
	v.ValidateEnum("CA_STAGING", c.Staging, []string{StagingDisk, StagingMinio})

	switch c.Staging {
	case StagingDisk:
		v.ValidateRequired("CA_UPLOAD_DIR", c.UploadDir)
		v.ValidateRequired("CA_FORMATTED_DIR", c.FormattedDir)
		if c.UploadDir != "" && c.UploadDir == c.FormattedDir {
			v.AddError("CA_FORMATTED_DIR", "must differ from CA_UPLOAD_DIR")
		}
	case StagingMinio:
		v.ValidateRequired("CA_S3_ENDPOINT", c.S3Endpoint)
		v.ValidateRequired("CA_S3_ACCESS_KEY", c.S3AccessKey)
		v.ValidateRequired("CA_S3_SECRET_KEY", c.S3SecretKey)
		v.ValidateRequired("CA_BUCKET", c.Bucket)
		if strings.Contains(c.S3Endpoint, "://") {
			v.ValidateURL("CA_S3_ENDPOINT", c.S3Endpoint)
		}
	}

	if c.DatabaseURL != "" &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		v.AddError("DATABASE_URL", "must be a valid PostgreSQL connection string")
	}

	if c.SweepInterval > 0 && c.SweepMaxAge <= 0 {
		v.AddError("CA_SWEEP_MAX_AGE", "must be positive when sweeping is enabled")
	}

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}

// WarnOnOptionalMissingConfig logs warnings for optional but recommended config.
func (c Config) WarnOnOptionalMissingConfig() {
	warnings := make([]string, 0)

	if c.DatabaseURL == "" {
		warnings = append(warnings, "DATABASE_URL not set - run history disabled")
	}
	if c.Production() && c.LogFormat != "json" {
		warnings = append(warnings, "CA_LOG_FORMAT is not 'json' in production")
	}
	if c.Production() && c.CORSOrigin == "*" {
		warnings = append(warnings, "CA_CORS_ORIGIN allows any origin in production")
	}
	if c.SweepInterval <= 0 {
		warnings = append(warnings, "CA_SWEEP_INTERVAL not positive - orphan sweeping disabled")
	}

	if len(warnings) > 0 {
		logging.Info("configuration warnings", logging.Fields{
			"count":    len(warnings),
			"warnings": warnings,
		})
	}
}

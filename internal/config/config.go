// Package config loads hlsfetch settings from an optional YAML file and
// HLSFETCH_* environment variables.
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agleyzer/hlsfetch/pkg/session"
	"github.com/agleyzer/hlsfetch/pkg/sink"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. HLSFETCH_RETRY_MAX_ATTEMPTS.
const EnvPrefix = "HLSFETCH"

// Config holds all configuration for the application
type Config struct {
	TimeoutMS   int               `mapstructure:"timeout_ms"`
	Headers     map[string]string `mapstructure:"headers"`
	MaxDuration time.Duration     `mapstructure:"max_duration"`

	Retry   RetryConfig   `mapstructure:"retry"`
	Log     LogConfig     `mapstructure:"log"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Storage StorageConfig `mapstructure:"storage"`
}

// RetryConfig holds the backoff applied to failed fetches
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig holds the local archive location
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// TracingConfig holds the Jaeger collector configuration
type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Load reads configuration from configPath, if set, and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timeout_ms", 10000)
	v.SetDefault("headers", map[string]string{})
	v.SetDefault("max_duration", "0s")

	defaults := session.DefaultRetryPolicy()
	v.SetDefault("retry.max_attempts", defaults.MaxAttempts)
	v.SetDefault("retry.initial_interval", defaults.InitialInterval.String())
	v.SetDefault("retry.max_interval", defaults.MaxInterval.String())
	v.SetDefault("retry.multiplier", defaults.Multiplier)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("output.dir", "")
	v.SetDefault("metrics.port", 0)
	v.SetDefault("tracing.endpoint", "")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", false)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMS)
	}

	if c.MaxDuration < 0 {
		return fmt.Errorf("max_duration must not be negative")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialInterval <= 0 {
		return fmt.Errorf("retry.initial_interval must be positive")
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry.max_interval %s is shorter than retry.initial_interval %s",
			c.Retry.MaxInterval, c.Retry.InitialInterval)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1, got %g", c.Retry.Multiplier)
	}

	if hclog.LevelFromString(c.Log.Level) == hclog.NoLevel {
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics.port %d", c.Metrics.Port)
	}

	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage.endpoint is set")
	}

	return nil
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// RetryPolicy returns the session retry policy.
func (c *Config) RetryPolicy() session.RetryPolicy {
	return session.RetryPolicy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		Multiplier:      c.Retry.Multiplier,
	}
}

// HTTPHeader returns the configured request headers.
func (c *Config) HTTPHeader() http.Header {
	h := http.Header{}
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

// ObjectConfig returns the object sink settings, or false if object storage
// is not configured.
func (c *Config) ObjectConfig() (sink.ObjectConfig, bool) {
	if c.Storage.Bucket == "" || c.Storage.Endpoint == "" {
		return sink.ObjectConfig{}, false
	}
	return sink.ObjectConfig{
		Endpoint:        c.Storage.Endpoint,
		AccessKeyID:     c.Storage.AccessKeyID,
		SecretAccessKey: c.Storage.SecretAccessKey,
		UseSSL:          c.Storage.UseSSL,
		Region:          c.Storage.Region,
		Bucket:          c.Storage.Bucket,
		Prefix:          c.Storage.Prefix,
	}, true
}

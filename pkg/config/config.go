package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/evalhub/pkg/export"
	"github.com/platinummonkey/evalhub/pkg/observability"
	"github.com/platinummonkey/evalhub/pkg/storage"
)

// ConfigFileEnv names the optional YAML file read before the environment
const ConfigFileEnv = "EVALHUB_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Admin server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Demo account limits and windows
	Demo DemoConfig `yaml:"demo"`

	// Lifecycle job configuration
	Lifecycle LifecycleConfig `yaml:"lifecycle"`

	// Snapshot sink configuration
	Export ExportConfig `yaml:"export"`

	// Warning delivery configuration
	Notify NotifyConfig `yaml:"notify"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the admin HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AdminToken      string        `yaml:"admin_token"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DemoConfig holds the demo account settings
type DemoConfig struct {
	ReportLimit            int `yaml:"report_limit"`
	UpgradePromptThreshold int `yaml:"upgrade_prompt_threshold"`
	RetentionDays          int `yaml:"retention_days"`
	WarningWindowDays      int `yaml:"warning_window_days"`
}

// LifecycleConfig holds the job settings
type LifecycleConfig struct {
	CleanupSchedule string        `yaml:"cleanup_schedule"`
	WarningSchedule string        `yaml:"warning_schedule"`
	Workers         int           `yaml:"workers"`
	LockBackend     string        `yaml:"lock_backend"` // "local" or "redis"
	LockTTL         time.Duration `yaml:"lock_ttl"`
}

// ExportConfig selects the snapshot sink
type ExportConfig struct {
	Sink string          `yaml:"sink"` // "file" or "s3"
	Dir  string          `yaml:"dir"`
	S3   export.S3Config `yaml:"s3"`
}

// NotifyConfig selects the warning notifier
type NotifyConfig struct {
	Type          string        `yaml:"type"` // "log" or "webhook"
	WebhookURL    string        `yaml:"webhook_url"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTel observability.OTelConfig `yaml:"otel"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	store := storage.DefaultConfig()
	store.Type = "memory"

	return &Config{
		Server: ServerConfig{
			Addr:            ":9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: store,
		Demo: DemoConfig{
			ReportLimit:            5,
			UpgradePromptThreshold: 4,
			RetentionDays:          30,
			WarningWindowDays:      7,
		},
		Lifecycle: LifecycleConfig{
			CleanupSchedule: "30 3 * * *",
			WarningSchedule: "0 9 * * *",
			Workers:         4,
			LockBackend:     "local",
			LockTTL:         30 * time.Minute,
		},
		Export: ExportConfig{
			Sink: "file",
			Dir:  "./exports",
		},
		Notify: NotifyConfig{
			Type:    "log",
			Timeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      observability.FormatText,
			MetricsEnabled: true,
			OTel: observability.OTelConfig{
				Endpoint:       "localhost:4317",
				ServiceName:    "evalhub-lifecycle",
				ServiceVersion: "1.0.0",
				Insecure:       true,
				SampleRatio:    1,
			},
		},
	}
}

// LoadConfig loads defaults, then the YAML file named by EVALHUB_CONFIG_FILE,
// then environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables. Malformed numbers are errors
// rather than silent defaults.
func (c *Config) applyEnv() error {
	e := &envReader{}

	// Server config
	c.Server.Addr = getEnv("EVALHUB_ADMIN_ADDR", c.Server.Addr)
	c.Server.AdminToken = getEnv("EVALHUB_ADMIN_TOKEN", c.Server.AdminToken)
	c.Server.ReadTimeout = e.duration("EVALHUB_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = e.duration("EVALHUB_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = e.duration("EVALHUB_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = e.duration("EVALHUB_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	// Storage config
	c.Storage.Type = getEnv("EVALHUB_STORAGE_TYPE", c.Storage.Type)
	c.Storage.PostgresURL = getEnv("EVALHUB_POSTGRES_URL", c.Storage.PostgresURL)
	c.Storage.PostgresMaxConns = e.int("EVALHUB_POSTGRES_MAX_CONNS", c.Storage.PostgresMaxConns)
	c.Storage.PostgresMinConns = e.int("EVALHUB_POSTGRES_MIN_CONNS", c.Storage.PostgresMinConns)
	c.Storage.PostgresTimeout = e.duration("EVALHUB_POSTGRES_TIMEOUT", c.Storage.PostgresTimeout)
	c.Storage.PostgresMaxLifetime = e.duration("EVALHUB_POSTGRES_MAX_LIFETIME", c.Storage.PostgresMaxLifetime)
	c.Storage.RedisURL = getEnv("EVALHUB_REDIS_URL", c.Storage.RedisURL)
	c.Storage.RedisPassword = getEnv("EVALHUB_REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Storage.RedisDB = e.int("EVALHUB_REDIS_DB", c.Storage.RedisDB)
	c.Storage.RedisMaxRetries = e.int("EVALHUB_REDIS_MAX_RETRIES", c.Storage.RedisMaxRetries)
	c.Storage.RedisPoolSize = e.int("EVALHUB_REDIS_POOL_SIZE", c.Storage.RedisPoolSize)
	c.Storage.OrgCacheSize = e.int("EVALHUB_ORG_CACHE_SIZE", c.Storage.OrgCacheSize)
	c.Storage.OrgCacheTTL = e.duration("EVALHUB_ORG_CACHE_TTL", c.Storage.OrgCacheTTL)

	// Demo config keeps the platform's historical variable names
	c.Demo.ReportLimit = e.int("DEMO_REPORT_LIMIT", c.Demo.ReportLimit)
	c.Demo.UpgradePromptThreshold = e.int("UPGRADE_PROMPT_THRESHOLD", c.Demo.UpgradePromptThreshold)
	c.Demo.RetentionDays = e.int("DEMO_RETENTION_DAYS", c.Demo.RetentionDays)
	c.Demo.WarningWindowDays = e.int("WARNING_WINDOW_DAYS", c.Demo.WarningWindowDays)

	// Lifecycle config
	c.Lifecycle.CleanupSchedule = getEnv("EVALHUB_CLEANUP_SCHEDULE", c.Lifecycle.CleanupSchedule)
	c.Lifecycle.WarningSchedule = getEnv("EVALHUB_WARNING_SCHEDULE", c.Lifecycle.WarningSchedule)
	c.Lifecycle.Workers = e.int("EVALHUB_LIFECYCLE_WORKERS", c.Lifecycle.Workers)
	c.Lifecycle.LockBackend = getEnv("EVALHUB_LOCK_BACKEND", c.Lifecycle.LockBackend)
	c.Lifecycle.LockTTL = e.duration("EVALHUB_LOCK_TTL", c.Lifecycle.LockTTL)

	// Export config
	c.Export.Sink = getEnv("EVALHUB_EXPORT_SINK", c.Export.Sink)
	c.Export.Dir = getEnv("EVALHUB_EXPORT_DIR", c.Export.Dir)
	c.Export.S3.Bucket = getEnv("EVALHUB_S3_BUCKET", c.Export.S3.Bucket)
	c.Export.S3.Prefix = getEnv("EVALHUB_S3_PREFIX", c.Export.S3.Prefix)
	c.Export.S3.Region = getEnv("EVALHUB_S3_REGION", c.Export.S3.Region)
	c.Export.S3.Endpoint = getEnv("EVALHUB_S3_ENDPOINT", c.Export.S3.Endpoint)
	c.Export.S3.AccessKey = getEnv("EVALHUB_S3_ACCESS_KEY", c.Export.S3.AccessKey)
	c.Export.S3.SecretKey = getEnv("EVALHUB_S3_SECRET_KEY", c.Export.S3.SecretKey)
	c.Export.S3.UsePathStyle = getEnvBool("EVALHUB_S3_USE_PATH_STYLE", c.Export.S3.UsePathStyle)

	// Notify config
	c.Notify.Type = getEnv("EVALHUB_NOTIFIER", c.Notify.Type)
	c.Notify.WebhookURL = getEnv("EVALHUB_NOTIFY_WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.WebhookSecret = getEnv("EVALHUB_NOTIFY_WEBHOOK_SECRET", c.Notify.WebhookSecret)
	c.Notify.Timeout = e.duration("EVALHUB_NOTIFY_TIMEOUT", c.Notify.Timeout)

	// Observability config
	c.Observability.LogLevel = getEnv("EVALHUB_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("EVALHUB_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsEnabled = getEnvBool("EVALHUB_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTel.Enabled = getEnvBool("EVALHUB_OTEL_ENABLED", c.Observability.OTel.Enabled)
	c.Observability.OTel.Endpoint = getEnv("EVALHUB_OTEL_ENDPOINT", c.Observability.OTel.Endpoint)
	c.Observability.OTel.ServiceName = getEnv("EVALHUB_OTEL_SERVICE_NAME", c.Observability.OTel.ServiceName)
	c.Observability.OTel.ServiceVersion = getEnv("EVALHUB_OTEL_SERVICE_VERSION", c.Observability.OTel.ServiceVersion)
	c.Observability.OTel.Insecure = getEnvBool("EVALHUB_OTEL_INSECURE", c.Observability.OTel.Insecure)
	c.Observability.OTel.SampleRatio = e.float("EVALHUB_OTEL_SAMPLE_RATIO", c.Observability.OTel.SampleRatio)

	return e.err
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate demo config
	d := c.Demo
	if d.ReportLimit < 1 {
		return fmt.Errorf("DEMO_REPORT_LIMIT must be at least 1, got %d", d.ReportLimit)
	}
	if d.UpgradePromptThreshold < 0 || d.UpgradePromptThreshold > d.ReportLimit {
		return fmt.Errorf("UPGRADE_PROMPT_THRESHOLD must be between 0 and DEMO_REPORT_LIMIT (%d), got %d",
			d.ReportLimit, d.UpgradePromptThreshold)
	}
	if d.RetentionDays < 1 {
		return fmt.Errorf("DEMO_RETENTION_DAYS must be at least 1, got %d", d.RetentionDays)
	}
	if d.WarningWindowDays < 0 || d.WarningWindowDays >= d.RetentionDays {
		return fmt.Errorf("WARNING_WINDOW_DAYS must be between 0 and DEMO_RETENTION_DAYS-1, got %d", d.WarningWindowDays)
	}

	// Validate server config
	if c.Server.Addr == "" {
		return fmt.Errorf("admin address is required")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Storage.Type)
	}

	// Validate lifecycle config
	if c.Lifecycle.Workers < 1 {
		return fmt.Errorf("lifecycle workers must be at least 1, got %d", c.Lifecycle.Workers)
	}
	switch c.Lifecycle.LockBackend {
	case "local":
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("invalid lock backend: %s (must be local or redis)", c.Lifecycle.LockBackend)
	}

	// Validate export config
	switch c.Export.Sink {
	case "file":
		if c.Export.Dir == "" {
			return fmt.Errorf("export directory is required for the file sink")
		}
	case "s3":
		if c.Export.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required for the s3 sink")
		}
	default:
		return fmt.Errorf("invalid export sink: %s (must be file or s3)", c.Export.Sink)
	}

	// Validate notify config
	switch c.Notify.Type {
	case "log":
	case "webhook":
		if c.Notify.WebhookURL == "" {
			return fmt.Errorf("webhook URL is required for the webhook notifier")
		}
	default:
		return fmt.Errorf("invalid notifier: %s (must be log or webhook)", c.Notify.Type)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// envReader parses typed variables and keeps the first failure
type envReader struct {
	err error
}

func (e *envReader) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		e.fail(fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return v
}

func (e *envReader) float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(fmt.Errorf("%s: invalid number %q", key, value))
		return defaultValue
	}
	return v
}

func (e *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		e.fail(fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return v
}

func (e *envReader) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

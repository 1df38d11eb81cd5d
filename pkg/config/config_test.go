package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{name: "true", envValue: "true", want: true},
		{name: "TRUE", envValue: "TRUE", want: true},
		{name: "1", envValue: "1", want: true},
		{name: "false", envValue: "false", defaultValue: true, want: false},
		{name: "garbage is false", envValue: "yes", defaultValue: true, want: false},
		{name: "unset returns default", envValue: "", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}

			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestEnvReader tests typed parsing and error capture
func TestEnvReader(t *testing.T) {
	t.Run("valid values", func(t *testing.T) {
		t.Setenv("TEST_INT", "42")
		t.Setenv("TEST_FLOAT", "0.25")
		t.Setenv("TEST_DURATION", "90s")

		e := &envReader{}
		if got := e.int("TEST_INT", 1); got != 42 {
			t.Errorf("int() = %d, want 42", got)
		}
		if got := e.float("TEST_FLOAT", 1); got != 0.25 {
			t.Errorf("float() = %v, want 0.25", got)
		}
		if got := e.duration("TEST_DURATION", time.Second); got != 90*time.Second {
			t.Errorf("duration() = %v, want 90s", got)
		}
		if e.err != nil {
			t.Errorf("unexpected error: %v", e.err)
		}
	})

	t.Run("unset returns default", func(t *testing.T) {
		e := &envReader{}
		if got := e.int("TEST_INT_UNSET", 7); got != 7 {
			t.Errorf("int() = %d, want 7", got)
		}
		if e.err != nil {
			t.Errorf("unexpected error: %v", e.err)
		}
	})

	t.Run("first failure is kept", func(t *testing.T) {
		t.Setenv("TEST_INT", "five")
		t.Setenv("TEST_DURATION", "soon")

		e := &envReader{}
		if got := e.int("TEST_INT", 3); got != 3 {
			t.Errorf("int() = %d, want default 3", got)
		}
		e.duration("TEST_DURATION", time.Second)
		if e.err == nil || !strings.Contains(e.err.Error(), "TEST_INT") {
			t.Errorf("err = %v, want TEST_INT failure", e.err)
		}
	})
}

// TestDefault tests that the defaults are valid on their own
func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Demo.ReportLimit != 5 {
		t.Errorf("ReportLimit = %d, want 5", cfg.Demo.ReportLimit)
	}
	if cfg.Demo.UpgradePromptThreshold != 4 {
		t.Errorf("UpgradePromptThreshold = %d, want 4", cfg.Demo.UpgradePromptThreshold)
	}
	if cfg.Demo.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.Demo.RetentionDays)
	}
	if cfg.Demo.WarningWindowDays != 7 {
		t.Errorf("WarningWindowDays = %d, want 7", cfg.Demo.WarningWindowDays)
	}
	if cfg.Lifecycle.CleanupSchedule != "30 3 * * *" {
		t.Errorf("CleanupSchedule = %q", cfg.Lifecycle.CleanupSchedule)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
}

// TestLoadConfig_Env tests environment overrides
func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("DEMO_REPORT_LIMIT", "10")
	t.Setenv("UPGRADE_PROMPT_THRESHOLD", "8")
	t.Setenv("DEMO_RETENTION_DAYS", "14")
	t.Setenv("WARNING_WINDOW_DAYS", "3")
	t.Setenv("EVALHUB_ADMIN_ADDR", ":8081")
	t.Setenv("EVALHUB_ADMIN_TOKEN", "s3cret")
	t.Setenv("EVALHUB_STORAGE_TYPE", "postgres")
	t.Setenv("EVALHUB_POSTGRES_URL", "postgres://localhost/evalhub")
	t.Setenv("EVALHUB_LIFECYCLE_WORKERS", "8")
	t.Setenv("EVALHUB_LOCK_TTL", "45m")
	t.Setenv("EVALHUB_EXPORT_SINK", "s3")
	t.Setenv("EVALHUB_S3_BUCKET", "exports")
	t.Setenv("EVALHUB_S3_USE_PATH_STYLE", "true")
	t.Setenv("EVALHUB_NOTIFIER", "webhook")
	t.Setenv("EVALHUB_NOTIFY_WEBHOOK_URL", "http://relay/send")
	t.Setenv("EVALHUB_LOG_FORMAT", "json")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Demo.ReportLimit != 10 || cfg.Demo.UpgradePromptThreshold != 8 {
		t.Errorf("demo limits = %d/%d, want 10/8", cfg.Demo.ReportLimit, cfg.Demo.UpgradePromptThreshold)
	}
	if cfg.Demo.RetentionDays != 14 || cfg.Demo.WarningWindowDays != 3 {
		t.Errorf("demo windows = %d/%d, want 14/3", cfg.Demo.RetentionDays, cfg.Demo.WarningWindowDays)
	}
	if cfg.Server.Addr != ":8081" || cfg.Server.AdminToken != "s3cret" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.Type != "postgres" || cfg.Storage.PostgresURL != "postgres://localhost/evalhub" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Lifecycle.Workers != 8 || cfg.Lifecycle.LockTTL != 45*time.Minute {
		t.Errorf("lifecycle = %+v", cfg.Lifecycle)
	}
	if cfg.Export.Sink != "s3" || cfg.Export.S3.Bucket != "exports" || !cfg.Export.S3.UsePathStyle {
		t.Errorf("export = %+v", cfg.Export)
	}
	if cfg.Notify.Type != "webhook" || cfg.Notify.WebhookURL != "http://relay/send" {
		t.Errorf("notify = %+v", cfg.Notify)
	}
	if cfg.Observability.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.Observability.LogFormat)
	}
}

// TestLoadConfig_File tests YAML loading and env precedence over it
func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evalhub.yaml")
	content := `
demo:
  report_limit: 3
  upgrade_prompt_threshold: 2
  retention_days: 60
  warning_window_days: 10
lifecycle:
  lock_ttl: 10m
  workers: 2
export:
  sink: file
  dir: /var/lib/evalhub/exports
observability:
  otel:
    service_name: from-file
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("DEMO_RETENTION_DAYS", "45")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Demo.ReportLimit != 3 || cfg.Demo.UpgradePromptThreshold != 2 {
		t.Errorf("demo limits = %d/%d, want 3/2", cfg.Demo.ReportLimit, cfg.Demo.UpgradePromptThreshold)
	}
	if cfg.Demo.RetentionDays != 45 {
		t.Errorf("RetentionDays = %d, want env value 45", cfg.Demo.RetentionDays)
	}
	if cfg.Demo.WarningWindowDays != 10 {
		t.Errorf("WarningWindowDays = %d, want 10", cfg.Demo.WarningWindowDays)
	}
	if cfg.Lifecycle.LockTTL != 10*time.Minute || cfg.Lifecycle.Workers != 2 {
		t.Errorf("lifecycle = %+v", cfg.Lifecycle)
	}
	if cfg.Export.Dir != "/var/lib/evalhub/exports" {
		t.Errorf("Export.Dir = %q", cfg.Export.Dir)
	}
	if cfg.Observability.OTel.ServiceName != "from-file" {
		t.Errorf("ServiceName = %q", cfg.Observability.OTel.ServiceName)
	}
	// untouched fields keep defaults
	if cfg.Lifecycle.WarningSchedule != "0 9 * * *" {
		t.Errorf("WarningSchedule = %q", cfg.Lifecycle.WarningSchedule)
	}
}

// TestLoadConfig_Errors tests failures surfaced by LoadConfig
func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "malformed integer",
			env:     map[string]string{"DEMO_REPORT_LIMIT": "lots"},
			wantErr: "DEMO_REPORT_LIMIT",
		},
		{
			name:    "malformed duration",
			env:     map[string]string{"EVALHUB_LOCK_TTL": "forever"},
			wantErr: "EVALHUB_LOCK_TTL",
		},
		{
			name:    "missing config file",
			env:     map[string]string{ConfigFileEnv: "/nonexistent/evalhub.yaml"},
			wantErr: "failed to read config file",
		},
		{
			name:    "validation failure",
			env:     map[string]string{"DEMO_RETENTION_DAYS": "0"},
			wantErr: "configuration validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			if err == nil {
				t.Fatal("LoadConfig() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadConfig_BadYAML tests a file that does not parse
func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("demo: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)

	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("error = %v, want parse failure", err)
	}
}

// TestConfigValidate tests the Validate method
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "limit of one", modify: func(c *Config) {
			c.Demo.ReportLimit = 1
			c.Demo.UpgradePromptThreshold = 0
		}},
		{name: "threshold equal to limit", modify: func(c *Config) { c.Demo.UpgradePromptThreshold = 5 }},
		{name: "zero warning window", modify: func(c *Config) { c.Demo.WarningWindowDays = 0 }},
		{name: "zero limit", modify: func(c *Config) { c.Demo.ReportLimit = 0 }, wantErr: true},
		{name: "negative threshold", modify: func(c *Config) { c.Demo.UpgradePromptThreshold = -1 }, wantErr: true},
		{name: "threshold above limit", modify: func(c *Config) { c.Demo.UpgradePromptThreshold = 6 }, wantErr: true},
		{name: "zero retention", modify: func(c *Config) { c.Demo.RetentionDays = 0 }, wantErr: true},
		{name: "negative warning window", modify: func(c *Config) { c.Demo.WarningWindowDays = -1 }, wantErr: true},
		{name: "warning window equal to retention", modify: func(c *Config) { c.Demo.WarningWindowDays = 30 }, wantErr: true},
		{name: "empty admin addr", modify: func(c *Config) { c.Server.Addr = "" }, wantErr: true},
		{name: "postgres without url", modify: func(c *Config) { c.Storage.Type = "postgres" }, wantErr: true},
		{name: "postgres with url", modify: func(c *Config) {
			c.Storage.Type = "postgres"
			c.Storage.PostgresURL = "postgres://localhost/evalhub"
		}},
		{name: "unknown storage", modify: func(c *Config) { c.Storage.Type = "mongo" }, wantErr: true},
		{name: "zero workers", modify: func(c *Config) { c.Lifecycle.Workers = 0 }, wantErr: true},
		{name: "redis lock without url", modify: func(c *Config) { c.Lifecycle.LockBackend = "redis" }, wantErr: true},
		{name: "redis lock with url", modify: func(c *Config) {
			c.Lifecycle.LockBackend = "redis"
			c.Storage.RedisURL = "redis://localhost:6379/0"
		}},
		{name: "unknown lock backend", modify: func(c *Config) { c.Lifecycle.LockBackend = "etcd" }, wantErr: true},
		{name: "file sink without dir", modify: func(c *Config) { c.Export.Dir = "" }, wantErr: true},
		{name: "s3 sink without bucket", modify: func(c *Config) { c.Export.Sink = "s3" }, wantErr: true},
		{name: "unknown sink", modify: func(c *Config) { c.Export.Sink = "ftp" }, wantErr: true},
		{name: "webhook without url", modify: func(c *Config) { c.Notify.Type = "webhook" }, wantErr: true},
		{name: "unknown notifier", modify: func(c *Config) { c.Notify.Type = "pager" }, wantErr: true},
		{name: "otel without endpoint", modify: func(c *Config) {
			c.Observability.OTel.Enabled = true
			c.Observability.OTel.Endpoint = ""
		}, wantErr: true},
		{name: "otel without service name", modify: func(c *Config) {
			c.Observability.OTel.Enabled = true
			c.Observability.OTel.ServiceName = ""
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

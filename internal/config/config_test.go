package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VS_CONFIG_PATH", "VS_LOG_LEVEL", "VS_LOG_FORMAT", "VS_SEED", "VS_OUTPUT_DIR",
		"VS_BURST_THRESHOLD", "VS_BURST_WINDOW",
		"VS_STORAGE_ENABLED", "CLICKHOUSE_HOST", "CLICKHOUSE_DATABASE", "CLICKHOUSE_USER", "CLICKHOUSE_PASSWORD",
		"VS_ARCHIVE_ENABLED", "VS_ARCHIVE_BUCKET", "AWS_REGION", "VS_ARCHIVE_ENDPOINT",
		"VS_ALERTING_ENABLED", "KAFKA_BROKERS", "VS_ALERTING_TOPIC", "KAFKA_SASL_PASSWORD",
		"VS_CACHE_ENABLED", "REDIS_ADDR", "REDIS_PASSWORD",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultsphere.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig should be valid, got error: %v", err)
	}
	if cfg.Detection.BurstThreshold != 10 {
		t.Errorf("BurstThreshold = %d, want 10", cfg.Detection.BurstThreshold)
	}
	if cfg.Detection.BurstWindow != time.Hour {
		t.Errorf("BurstWindow = %v, want 1h", cfg.Detection.BurstWindow)
	}
	if cfg.Generator.DaysBack != 30 {
		t.Errorf("DaysBack = %d, want 30", cfg.Generator.DaysBack)
	}
	if len(cfg.Generator.Tenants) != 2 {
		t.Errorf("Tenants = %v, want [food it]", cfg.Generator.Tenants)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
	if cfg.Storage.Enabled || cfg.Archive.Enabled || cfg.Alerting.Enabled || cfg.Cache.Enabled {
		t.Error("sinks should be disabled by default")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("VS_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Detection.BurstThreshold != DefaultConfig().Detection.BurstThreshold {
		t.Errorf("BurstThreshold = %d, want default", cfg.Detection.BurstThreshold)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
generator:
  seed: 1234
  output_dir: /tmp/datasets
  tenants: [it]
  days_back: 14
detection:
  burst_threshold: 7
  burst_window: 15m
logging:
  level: debug
  format: text
storage:
  enabled: true
  clickhouse:
    hosts: ["ch-1:9000", "ch-2:9000"]
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Generator.Seed != 1234 {
		t.Errorf("Seed = %d, want 1234", cfg.Generator.Seed)
	}
	if cfg.Generator.DaysBack != 14 {
		t.Errorf("DaysBack = %d, want 14", cfg.Generator.DaysBack)
	}
	if len(cfg.Generator.Tenants) != 1 || cfg.Generator.Tenants[0] != "it" {
		t.Errorf("Tenants = %v, want [it]", cfg.Generator.Tenants)
	}
	if cfg.Detection.BurstThreshold != 7 || cfg.Detection.BurstWindow != 15*time.Minute {
		t.Errorf("Detection = %d/%v, want 7/15m", cfg.Detection.BurstThreshold, cfg.Detection.BurstWindow)
	}
	// Unset keys keep their defaults.
	if cfg.Detection.MinUserEvents != DefaultConfig().Detection.MinUserEvents {
		t.Errorf("MinUserEvents = %d, want default", cfg.Detection.MinUserEvents)
	}
	if cfg.Generator.SuccessProbability != 0.90 {
		t.Errorf("SuccessProbability = %v, want 0.90", cfg.Generator.SuccessProbability)
	}
	if !cfg.Storage.Enabled || len(cfg.Storage.ClickHouse.Hosts) != 2 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Storage.ClickHouse.Database != "vaultsphere" {
		t.Errorf("Database = %q, want vaultsphere", cfg.Storage.ClickHouse.Database)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFileParseError(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "detection: [not, a, map")

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VS_LOG_LEVEL", "warn")
	t.Setenv("VS_SEED", "99")
	t.Setenv("VS_BURST_WINDOW", "2m")
	t.Setenv("VS_STORAGE_ENABLED", "true")
	t.Setenv("CLICKHOUSE_HOST", "ch-a:9000, ch-b:9000")
	t.Setenv("CLICKHOUSE_PASSWORD", "hunter2")
	t.Setenv("KAFKA_BROKERS", "k1:9092,,k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("VS_ARCHIVE_ENDPOINT", "http://minio:9000")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Generator.Seed != 99 {
		t.Errorf("Seed = %d, want 99", cfg.Generator.Seed)
	}
	if cfg.Detection.BurstWindow != 2*time.Minute {
		t.Errorf("BurstWindow = %v, want 2m", cfg.Detection.BurstWindow)
	}
	if !cfg.Storage.Enabled {
		t.Error("Storage.Enabled = false, want true")
	}
	hosts := cfg.Storage.ClickHouse.Hosts
	if len(hosts) != 2 || hosts[0] != "ch-a:9000" || hosts[1] != "ch-b:9000" {
		t.Errorf("Hosts = %v", hosts)
	}
	if cfg.Storage.ClickHouse.Password != "hunter2" {
		t.Errorf("Password not applied")
	}
	if len(cfg.Alerting.Brokers) != 2 {
		t.Errorf("Brokers = %v, want 2 entries", cfg.Alerting.Brokers)
	}
	if cfg.Cache.Addr != "redis:6379" {
		t.Errorf("Cache.Addr = %q", cfg.Cache.Addr)
	}
	if cfg.Archive.Endpoint != "http://minio:9000" || !cfg.Archive.UsePathStyle {
		t.Errorf("Archive endpoint override not applied: %+v", cfg.Archive)
	}
}

func TestEnvOverrideErrors(t *testing.T) {
	for _, tc := range []struct{ key, value string }{
		{"VS_SEED", "-1"},
		{"VS_BURST_THRESHOLD", "five"},
		{"VS_BURST_WINDOW", "10"},
	} {
		t.Run(tc.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
				t.Errorf("LoadFile() with %s=%q expected error", tc.key, tc.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no tenants", func(c *Config) { c.Generator.Tenants = nil }},
		{"no output dir", func(c *Config) { c.Generator.OutputDir = "" }},
		{"bad days back", func(c *Config) { c.Generator.DaysBack = 0 }},
		{"bad threshold", func(c *Config) { c.Detection.BurstThreshold = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"storage without hosts", func(c *Config) { c.Storage.Enabled = true; c.Storage.ClickHouse.Hosts = nil }},
		{"alerting without brokers", func(c *Config) { c.Alerting.Enabled = true; c.Alerting.Brokers = nil }},
		{"cache without addr", func(c *Config) { c.Cache.Enabled = true; c.Cache.Addr = "" }},
		{"archive without bucket", func(c *Config) { c.Archive.Enabled = true; c.Archive.Bucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

func TestGeneratorCatalog(t *testing.T) {
	g := DefaultConfig().Generator

	c, err := g.Catalog()
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	if len(c.Tenants) != 2 {
		t.Errorf("built-in catalog has %d tenants, want 2", len(c.Tenants))
	}

	g.TenantsFile = filepath.Join(t.TempDir(), "tenants.yaml")
	if _, err := g.Catalog(); err == nil {
		t.Error("Catalog() with a missing tenants file expected error")
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("VS_CONFIG_PATH", "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("ResolvePath(\"\") = %q, want %q", got, DefaultPath)
	}
	t.Setenv("VS_CONFIG_PATH", "/etc/vs.yaml")
	if got := ResolvePath(""); got != "/etc/vs.yaml" {
		t.Errorf("ResolvePath(\"\") = %q, want /etc/vs.yaml", got)
	}
	if got := ResolvePath("local.yaml"); got != "local.yaml" {
		t.Errorf("ResolvePath(local.yaml) = %q, want local.yaml", got)
	}
}

func TestShippedConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(filepath.Join("..", "..", DefaultPath))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	want := DefaultConfig()
	if cfg.Detection.BurstThreshold != want.Detection.BurstThreshold {
		t.Errorf("BurstThreshold = %d, want %d", cfg.Detection.BurstThreshold, want.Detection.BurstThreshold)
	}
	if cfg.Detection.BurstWindow != want.Detection.BurstWindow {
		t.Errorf("BurstWindow = %v, want %v", cfg.Detection.BurstWindow, want.Detection.BurstWindow)
	}
	if cfg.Storage.Enabled || cfg.Archive.Enabled || cfg.Alerting.Enabled || cfg.Cache.Enabled {
		t.Error("shipped config enables a sink")
	}
}

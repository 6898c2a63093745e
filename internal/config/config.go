// Package config handles configuration loading for vaultsphere.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vaultsphere/internal/alerting"
	"vaultsphere/internal/archive"
	"vaultsphere/internal/cache"
	"vaultsphere/internal/detection"
	"vaultsphere/internal/generator"
	"vaultsphere/internal/logging"
	"vaultsphere/internal/storage"
	"vaultsphere/internal/tenant"
)

// DefaultPath is read when VS_CONFIG_PATH is unset.
const DefaultPath = "configs/vaultsphere.yaml"

// Config holds the complete application configuration.
type Config struct {
	Generator GeneratorConfig  `yaml:"generator"`
	Detection detection.Config `yaml:"detection"`
	Logging   logging.Config   `yaml:"logging"`
	Storage   storage.Config   `yaml:"storage"`
	Archive   archive.Config   `yaml:"archive"`
	Alerting  alerting.Config  `yaml:"alerting"`
	Cache     cache.Config     `yaml:"cache"`
}

// GeneratorConfig holds dataset generation settings.
type GeneratorConfig struct {
	// Seed 0 draws a random seed for each run.
	Seed        uint64   `yaml:"seed"`
	OutputDir   string   `yaml:"output_dir"`
	Tenants     []string `yaml:"tenants"`
	TenantsFile string   `yaml:"tenants_file"`
	Compress    bool     `yaml:"compress"`
	// Combined names an extra file holding every tenant's events.
	Combined string `yaml:"combined"`

	generator.Options `yaml:",inline"`
}

// Catalog returns the tenant table from TenantsFile, or the built-in one.
func (g *GeneratorConfig) Catalog() (*tenant.Catalog, error) {
	if g.TenantsFile == "" {
		return tenant.DefaultCatalog(), nil
	}
	return tenant.LoadCatalog(g.TenantsFile)
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Generator: GeneratorConfig{
			OutputDir: ".",
			Tenants:   []string{"food", "it"},
			Options:   generator.DefaultOptions(),
		},
		Detection: detection.DefaultConfig(),
		Logging:   logging.DefaultConfig(),
		Storage:   storage.DefaultConfig(),
		Archive:   archive.DefaultConfig(),
		Alerting:  alerting.DefaultConfig(),
		Cache:     cache.DefaultConfig(),
	}
}

// Load loads configuration from the file named by VS_CONFIG_PATH, or
// DefaultPath. A missing file yields the defaults. Environment overrides
// apply in both cases.
func Load() (*Config, error) {
	return LoadFile(ResolvePath(""))
}

// LoadPath loads path when it is set and falls back to Load otherwise.
func LoadPath(path string) (*Config, error) {
	return LoadFile(ResolvePath(path))
}

// ResolvePath returns the file LoadPath reads for path.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("VS_CONFIG_PATH"); env != "" {
		return env
	}
	return DefaultPath
}

// LoadFile loads configuration from path.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if level := os.Getenv("VS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("VS_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if seed := os.Getenv("VS_SEED"); seed != "" {
		n, err := strconv.ParseUint(seed, 10, 64)
		if err != nil {
			return fmt.Errorf("VS_SEED: %w", err)
		}
		c.Generator.Seed = n
	}
	if dir := os.Getenv("VS_OUTPUT_DIR"); dir != "" {
		c.Generator.OutputDir = dir
	}

	if threshold := os.Getenv("VS_BURST_THRESHOLD"); threshold != "" {
		n, err := strconv.Atoi(threshold)
		if err != nil {
			return fmt.Errorf("VS_BURST_THRESHOLD: %w", err)
		}
		c.Detection.BurstThreshold = n
	}
	if window := os.Getenv("VS_BURST_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return fmt.Errorf("VS_BURST_WINDOW: %w", err)
		}
		c.Detection.BurstWindow = d
	}

	// Storage settings
	if enabled := os.Getenv("VS_STORAGE_ENABLED"); enabled == "true" {
		c.Storage.Enabled = true
	}
	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		c.Storage.ClickHouse.Hosts = splitAndTrim(host, ",")
	}
	if db := os.Getenv("CLICKHOUSE_DATABASE"); db != "" {
		c.Storage.ClickHouse.Database = db
	}
	if user := os.Getenv("CLICKHOUSE_USER"); user != "" {
		c.Storage.ClickHouse.Username = user
	}
	if pass := os.Getenv("CLICKHOUSE_PASSWORD"); pass != "" {
		c.Storage.ClickHouse.Password = pass
	}

	// Archive settings
	if enabled := os.Getenv("VS_ARCHIVE_ENABLED"); enabled == "true" {
		c.Archive.Enabled = true
	}
	if bucket := os.Getenv("VS_ARCHIVE_BUCKET"); bucket != "" {
		c.Archive.Bucket = bucket
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		c.Archive.Region = region
	}
	if endpoint := os.Getenv("VS_ARCHIVE_ENDPOINT"); endpoint != "" {
		c.Archive.Endpoint = endpoint
		c.Archive.UsePathStyle = true
	}

	// Alerting settings
	if enabled := os.Getenv("VS_ALERTING_ENABLED"); enabled == "true" {
		c.Alerting.Enabled = true
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Alerting.Brokers = splitAndTrim(brokers, ",")
	}
	if topic := os.Getenv("VS_ALERTING_TOPIC"); topic != "" {
		c.Alerting.Topic = topic
	}
	if pass := os.Getenv("KAFKA_SASL_PASSWORD"); pass != "" {
		c.Alerting.SASLPassword = pass
	}

	// Cache settings
	if enabled := os.Getenv("VS_CACHE_ENABLED"); enabled == "true" {
		c.Cache.Enabled = true
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Cache.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		c.Cache.Password = pass
	}
	return nil
}

// splitAndTrim splits a string by separator and drops empty parts.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Generator.Tenants) == 0 {
		return errors.New("generator: at least one tenant is required")
	}
	if c.Generator.OutputDir == "" {
		return errors.New("generator: output_dir is required")
	}
	if err := c.Generator.Options.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if err := c.Alerting.Validate(); err != nil {
		return err
	}
	return c.Cache.Validate()
}

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionConfig holds TTL settings for the storage tables. Zero keeps
// rows forever.
type RetentionConfig struct {
	EventsTTL   time.Duration `yaml:"events_ttl"`
	FindingsTTL time.Duration `yaml:"findings_ttl"`
	RejectedTTL time.Duration `yaml:"rejected_ttl"`
}

// RetentionManager applies data retention policies.
type RetentionManager struct {
	client *ClickHouseClient
	config RetentionConfig
	logger *slog.Logger
}

// NewRetentionManager creates a new retention manager.
func NewRetentionManager(client *ClickHouseClient, config RetentionConfig, logger *slog.Logger) *RetentionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionManager{client: client, config: config, logger: logger}
}

type ttlPolicy struct {
	table  string
	column string
	ttl    time.Duration
}

func (r *RetentionManager) policies() []ttlPolicy {
	return []ttlPolicy{
		{"events", "timestamp", r.config.EventsTTL},
		{"findings", "detected_at", r.config.FindingsTTL},
		{"rejected_records", "rejected_at", r.config.RejectedTTL},
	}
}

// ttlStatement builds the ALTER for one policy, rounding up to whole days.
func ttlStatement(p ttlPolicy) string {
	days := int((p.ttl + 24*time.Hour - 1) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf(
		"ALTER TABLE %s MODIFY TTL toDateTime(%s) + INTERVAL %d DAY DELETE",
		sanitizeTableName(p.table), sanitizeTableName(p.column), days,
	)
}

// ApplyTTLs updates TTL settings on every table. Run it after migrations.
// A failing table is logged and skipped.
func (r *RetentionManager) ApplyTTLs(ctx context.Context) error {
	for _, p := range r.policies() {
		if p.ttl <= 0 {
			continue
		}
		if err := r.client.Exec(ctx, ttlStatement(p)); err != nil {
			r.logger.Warn("failed to apply TTL policy", "table", p.table, "error", err)
			continue
		}
		r.logger.Info("applied retention policy", "table", p.table, "ttl", p.ttl)
	}
	return nil
}

// sanitizeTableName ensures table name contains only safe characters.
func sanitizeTableName(name string) string {
	var result []byte
	for _, b := range []byte(name) {
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') ||
			(b >= '0' && b <= '9') || b == '_' {
			result = append(result, b)
		}
	}
	return string(result)
}

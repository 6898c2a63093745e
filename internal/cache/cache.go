// Package cache keeps analysis reports in Redis, keyed by the dataset
// fingerprint and the settings that produced them.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"vaultsphere/internal/detection"
	"vaultsphere/internal/tenant"
)

// ErrMiss is returned by a Store when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Config holds Redis connection and cache settings.
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"`
	TTL          time.Duration `yaml:"ttl"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
	MaxRetries   int           `yaml:"max_retries"`
	TLSEnabled   bool          `yaml:"tls_enabled"`
}

// DefaultConfig returns caching disabled with a one-day TTL.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		KeyPrefix:    "vaultsphere:",
		TTL:          24 * time.Hour,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		MaxRetries:   3,
	}
}

// Validate checks the settings of an enabled cache.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return errors.New("cache: addr is required")
	}
	if c.TTL < 0 {
		return errors.New("cache: ttl must not be negative")
	}
	if c.DB < 0 {
		return errors.New("cache: db must not be negative")
	}
	return nil
}

// Store is a byte-oriented key/value store with expiry.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// RedisStore implements Store on go-redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg Config) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Set stores a value with TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return val, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	expiry map[string]time.Time
	now    func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string][]byte),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Set stores a value; a zero ttl never expires.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	if ttl > 0 {
		m.expiry[key] = m.now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
	return nil
}

// Get retrieves a value.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.expiry[key]; ok && !m.now().Before(exp) {
		delete(m.data, key)
		delete(m.expiry, key)
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// ReportCache stores detection reports.
type ReportCache struct {
	store  Store
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewReportCache wraps a Store.
func NewReportCache(store Store, cfg Config, logger *slog.Logger) *ReportCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportCache{store: store, prefix: cfg.KeyPrefix, ttl: cfg.TTL, logger: logger}
}

// Key builds <prefix>report:<fingerprint>:<settings digest>. The digest
// covers the detector thresholds and the tenant catalog, since the catalog
// decides which rows are rejected. A nil catalog accepts every tenant.
func (c *ReportCache) Key(fingerprint string, cfg detection.Config, catalog *tenant.Catalog) (string, error) {
	data, err := json.Marshal(struct {
		Detection detection.Config `json:"detection"`
		Catalog   *tenant.Catalog  `json:"catalog"`
	}{cfg, catalog})
	if err != nil {
		return "", fmt.Errorf("cache: encode settings: %w", err)
	}
	sum := blake2b.Sum256(data)
	return c.prefix + "report:" + fingerprint + ":" + hex.EncodeToString(sum[:8]), nil
}

// Get returns the cached report, or ok=false on a miss.
func (c *ReportCache) Get(ctx context.Context, key string) (*detection.Report, bool, error) {
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		c.logger.Debug("report cache miss", "key", key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	var r detection.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	c.logger.Debug("report cache hit", "key", key)
	return &r, true, nil
}

// Put stores a report under key with the configured TTL.
func (c *ReportCache) Put(ctx context.Context, key string, r *detection.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("cache: encode report: %w", err)
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying store.
func (c *ReportCache) Close() error {
	return c.store.Close()
}

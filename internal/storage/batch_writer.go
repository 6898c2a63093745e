package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vaultsphere/internal/schema"
)

// BatchWriterConfig holds configuration for the batch writer.
type BatchWriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// DefaultBatchWriterConfig returns the default batch writer configuration.
func DefaultBatchWriterConfig() BatchWriterConfig {
	return BatchWriterConfig{
		BatchSize:     5000,
		FlushInterval: 5 * time.Second,
		MaxRetries:    3,
		RetryDelay:    time.Second,
	}
}

const insertEventsQuery = `INSERT INTO events (
	timestamp, tenant_id, user_id, resource_id, event_type,
	status, ip_address, anomaly_injected, run_id
)`

// BatchWriter buffers events and inserts them into the events table in
// batches of BatchSize. A timer flushes partial batches.
type BatchWriter struct {
	client *ClickHouseClient
	config BatchWriterConfig
	runID  string
	logger *slog.Logger

	buffer []schema.Event
	mu     sync.Mutex

	flushTimer *time.Timer
	closed     bool

	totalWritten uint64
	totalFailed  uint64
	batchCount   uint64
}

// NewBatchWriter creates a BatchWriter tagging every row with runID.
func NewBatchWriter(client *ClickHouseClient, cfg BatchWriterConfig, runID string, logger *slog.Logger) *BatchWriter {
	if logger == nil {
		logger = slog.Default()
	}
	bw := &BatchWriter{
		client: client,
		config: cfg,
		runID:  runID,
		logger: logger,
		buffer: make([]schema.Event, 0, cfg.BatchSize),
	}
	bw.flushTimer = time.AfterFunc(cfg.FlushInterval, bw.timerFlush)
	return bw
}

// Write adds events to the buffer, flushing every full batch.
func (bw *BatchWriter) Write(events ...schema.Event) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.closed {
		return ErrWriterClosed
	}
	for _, e := range events {
		bw.buffer = append(bw.buffer, e)
		if len(bw.buffer) >= bw.config.BatchSize {
			if err := bw.flushLocked(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (bw *BatchWriter) timerFlush() {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.closed {
		return
	}
	if len(bw.buffer) > 0 {
		if err := bw.flushLocked(); err != nil {
			bw.logger.Error("timer flush failed", "error", err)
		}
	}
	bw.flushTimer.Reset(bw.config.FlushInterval)
}

// flushLocked flushes the buffer. Caller must hold the lock.
func (bw *BatchWriter) flushLocked() error {
	if len(bw.buffer) == 0 {
		return nil
	}

	events := bw.buffer
	bw.buffer = make([]schema.Event, 0, bw.config.BatchSize)

	var lastErr error
	for attempt := 0; attempt <= bw.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(bw.config.RetryDelay * time.Duration(1<<(attempt-1)))
		}
		if err := bw.insertBatch(events); err != nil {
			lastErr = err
			bw.logger.Warn("batch insert failed, retrying",
				"attempt", attempt+1,
				"max_retries", bw.config.MaxRetries,
				"error", err,
			)
			continue
		}

		atomic.AddUint64(&bw.totalWritten, uint64(len(events)))
		atomic.AddUint64(&bw.batchCount, 1)
		return nil
	}

	atomic.AddUint64(&bw.totalFailed, uint64(len(events)))
	return WrapBatchError("events", lastErr, bw.config.MaxRetries)
}

func (bw *BatchWriter) insertBatch(events []schema.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch, err := bw.client.PrepareBatch(ctx, insertEventsQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for i := range events {
		if err := batch.Append(eventRow(&events[i], bw.runID)...); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append event: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	bw.logger.Debug("batch inserted", "count", len(events))
	return nil
}

// eventRow orders an event's columns as in insertEventsQuery.
func eventRow(e *schema.Event, runID string) []any {
	return []any{
		e.Timestamp.UTC(),
		uint8(e.TenantID),
		e.UserID,
		e.ResourceID,
		e.EventType,
		string(e.Status),
		e.IPAddress,
		e.AnomalyInjected,
		runID,
	}
}

// Flush forces a flush of the current buffer.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.flushLocked()
}

// Close stops the timer and flushes what is left.
func (bw *BatchWriter) Close() error {
	bw.flushTimer.Stop()

	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return nil
	}
	bw.closed = true
	return bw.flushLocked()
}

// Metrics returns batch writer statistics.
func (bw *BatchWriter) Metrics() BatchWriterMetrics {
	bw.mu.Lock()
	pending := len(bw.buffer)
	bw.mu.Unlock()

	return BatchWriterMetrics{
		Written: atomic.LoadUint64(&bw.totalWritten),
		Failed:  atomic.LoadUint64(&bw.totalFailed),
		Batches: atomic.LoadUint64(&bw.batchCount),
		Pending: pending,
	}
}

// BatchWriterMetrics holds batch writer statistics.
type BatchWriterMetrics struct {
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Batches uint64 `json:"batches"`
	Pending int    `json:"pending"`
}

package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"vaultsphere/internal/detection"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("alerting: publisher is closed")

// messageWriter is the subset of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends findings to Kafka.
type Publisher struct {
	writer  messageWriter
	cfg     Config
	logger  *slog.Logger
	closed  atomic.Bool
	metrics publisherMetrics
}

type publisherMetrics struct {
	published atomic.Int64
	skipped   atomic.Int64
	errors    atomic.Int64
	retries   atomic.Int64
}

// Metrics holds publisher counters.
type Metrics struct {
	Published int64 `json:"published"`
	Skipped   int64 `json:"skipped"`
	Errors    int64 `json:"errors"`
	Retries   int64 `json:"retries"`
}

// NewPublisher creates a Publisher writing to cfg.Topic.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	transport, err := cfg.GetTransport()
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  cfg.GetCompression(),
		Transport:    transport,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
	}

	logger.Info("finding publisher initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"min_severity", cfg.MinSeverity,
	)
	return newPublisher(writer, cfg, logger), nil
}

func newPublisher(w messageWriter, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, cfg: cfg, logger: logger}
}

// Message is the JSON payload published for one finding.
type Message struct {
	detection.Finding
	RiskLevel   detection.RiskLevel `json:"risk_level"`
	PublishedAt time.Time           `json:"published_at"`
}

// Messages converts findings at or above the configured severity into
// Kafka messages keyed by user ID. Findings for one user land on one
// partition.
func (p *Publisher) Messages(r *detection.Report, now time.Time) ([]kafka.Message, error) {
	var out []kafka.Message
	for _, f := range r.Findings() {
		if !meetsSeverity(f.Severity, p.cfg.MinSeverity) {
			p.metrics.skipped.Add(1)
			continue
		}
		value, err := json.Marshal(Message{Finding: f, RiskLevel: r.Risk.Level, PublishedAt: now.UTC()})
		if err != nil {
			return nil, fmt.Errorf("alerting: failed to marshal finding %s: %w", f.ID, err)
		}
		out = append(out, kafka.Message{
			Key:   []byte(f.UserID),
			Value: value,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "finding-id", Value: []byte(f.ID.String())},
				{Key: "category", Value: []byte(f.Category)},
				{Key: "severity", Value: []byte(f.Severity)},
			},
		})
	}
	return out, nil
}

// PublishReport sends every qualifying finding of r and returns how many
// were published.
func (p *Publisher) PublishReport(ctx context.Context, r *detection.Report) (int, error) {
	if p.closed.Load() {
		return 0, ErrPublisherClosed
	}
	msgs, err := p.Messages(r, time.Now())
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if err := p.write(ctx, msgs); err != nil {
		return 0, err
	}
	p.logger.Info("findings published", "count", len(msgs), "topic", p.cfg.Topic)
	return len(msgs), nil
}

func (p *Publisher) write(ctx context.Context, msgs []kafka.Message) error {
	var lastErr error
	backoff := p.cfg.RetryBackoff

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			p.metrics.retries.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			p.metrics.published.Add(int64(len(msgs)))
			return nil
		}
		lastErr = err
		p.metrics.errors.Add(1)
		p.logger.Warn("kafka publish failed",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", p.cfg.MaxRetries+1,
		)
		if isNonRetryableError(err) {
			return fmt.Errorf("alerting: non-retryable error: %w", err)
		}
	}
	return fmt.Errorf("alerting: failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// GetMetrics returns publisher counters.
func (p *Publisher) GetMetrics() Metrics {
	return Metrics{
		Published: p.metrics.published.Load(),
		Skipped:   p.metrics.skipped.Load(),
		Errors:    p.metrics.errors.Load(),
		Retries:   p.metrics.retries.Load(),
	}
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("alerting: failed to close publisher: %w", err)
	}
	return nil
}

func meetsSeverity(s detection.Severity, min string) bool {
	if detection.Severity(strings.ToUpper(min)) == detection.SeverityHigh {
		return s == detection.SeverityHigh
	}
	return true
}

func isNonRetryableError(err error) bool {
	switch {
	case errors.Is(err, kafka.MessageSizeTooLarge),
		errors.Is(err, kafka.InvalidTopic),
		errors.Is(err, kafka.TopicAuthorizationFailed),
		errors.Is(err, kafka.ClusterAuthorizationFailed):
		return true
	}
	return false
}

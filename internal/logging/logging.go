// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Config holds logging settings.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns info-level JSON logging.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// Validate checks the level and format names.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "json", "text":
		return nil
	}
	return fmt.Errorf("invalid log format %q", c.Format)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
}

// Setup builds a logger writing to w and installs it as the default. The
// commands pass stderr so stdout stays free for reports.
func Setup(w io.Writer, cfg Config) *slog.Logger {
	logger := New(w, cfg)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, cfg Config) *slog.Logger {
	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// redact masks values of sensitive keys and partially masks addresses.
func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	switch {
	case IsSensitiveField(a.Key):
		return slog.String(a.Key, MaskSensitiveValue(a.Key, a.Value.String()))
	case isAddressKey(a.Key):
		return slog.String(a.Key, MaskIP(a.Value.String()))
	}
	return a
}

func isAddressKey(key string) bool {
	k := strings.ToLower(key)
	return k == "ip" || strings.HasSuffix(k, "_ip") || strings.HasPrefix(k, "ip_")
}

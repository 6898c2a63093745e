// Package startup provides preflight diagnostics for the command-line tools
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"runtime"
	"time"

	"vaultsphere/internal/config"
)

// DiagnosticResult represents the result of a diagnostic check
type DiagnosticResult struct {
	Name    string
	Status  Status
	Message string
	Details map[string]string
}

// Status represents the status of a diagnostic check
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusError:
		return "ERROR"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Diagnostics runs the preflight checks
type Diagnostics struct {
	cfg        *config.Config
	configPath string
	results    []DiagnosticResult
	logger     *slog.Logger
	dial       DialFunc
	timeout    time.Duration
}

// NewDiagnostics creates a new diagnostics runner. configPath is the file
// the configuration was loaded from, possibly absent.
func NewDiagnostics(cfg *config.Config, configPath string, logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	d := &net.Dialer{}
	return &Diagnostics{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		dial:       d.DialContext,
		timeout:    5 * time.Second,
	}
}

// WithDialer replaces the dialer used for sink reachability checks.
func (d *Diagnostics) WithDialer(dial DialFunc) *Diagnostics {
	d.dial = dial
	return d
}

// RunAll runs all diagnostic checks
func (d *Diagnostics) RunAll(ctx context.Context) []DiagnosticResult {
	d.logger.Info("running preflight diagnostics")

	d.checkSystem()
	d.checkConfiguration()
	d.checkOutputDir()
	d.checkTenants()
	d.checkSinks(ctx)

	d.logSummary()
	return d.results
}

// Results returns the results gathered so far.
func (d *Diagnostics) Results() []DiagnosticResult {
	return d.results
}

// HasErrors reports whether any check failed.
func (d *Diagnostics) HasErrors() bool {
	for _, r := range d.results {
		if r.Status == StatusError {
			return true
		}
	}
	return false
}

func (d *Diagnostics) addResult(result DiagnosticResult) {
	d.results = append(d.results, result)

	attrs := []any{
		"check", result.Name,
		"status", result.Status.String(),
	}
	if result.Message != "" {
		attrs = append(attrs, "message", result.Message)
	}
	for k, v := range result.Details {
		attrs = append(attrs, k, v)
	}

	switch result.Status {
	case StatusOK:
		d.logger.Info("diagnostic check passed", attrs...)
	case StatusWarning:
		d.logger.Warn("diagnostic check warning", attrs...)
	case StatusError:
		d.logger.Error("diagnostic check failed", attrs...)
	case StatusSkipped:
		d.logger.Debug("diagnostic check skipped", attrs...)
	}
}

func (d *Diagnostics) checkSystem() {
	d.addResult(DiagnosticResult{
		Name:    "runtime",
		Status:  StatusOK,
		Message: "Go runtime detected",
		Details: map[string]string{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		},
	})
}

func (d *Diagnostics) checkConfiguration() {
	if _, err := os.Stat(d.configPath); os.IsNotExist(err) {
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusWarning,
			Message: "Config file not found, using defaults",
			Details: map[string]string{"path": d.configPath},
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusOK,
			Message: "Config file found",
			Details: map[string]string{"path": d.configPath},
		})
	}

	if err := d.cfg.Validate(); err != nil {
		d.addResult(DiagnosticResult{
			Name:    "config_validation",
			Status:  StatusError,
			Message: fmt.Sprintf("Configuration validation failed: %s", err),
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "config_validation",
		Status:  StatusOK,
		Message: "Configuration is valid",
	})
}

// checkOutputDir creates the output directory and probes that it is
// writable.
func (d *Diagnostics) checkOutputDir() {
	dir := d.cfg.Generator.OutputDir
	details := map[string]string{"path": dir}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o750); err != nil {
			d.addResult(DiagnosticResult{
				Name:    "output_dir",
				Status:  StatusError,
				Message: fmt.Sprintf("Failed to create directory: %s", err),
				Details: details,
			})
			return
		}
	case err != nil:
		d.addResult(DiagnosticResult{
			Name:    "output_dir",
			Status:  StatusError,
			Message: fmt.Sprintf("Error checking directory: %s", err),
			Details: details,
		})
		return
	case !info.IsDir():
		d.addResult(DiagnosticResult{
			Name:    "output_dir",
			Status:  StatusError,
			Message: "Path exists but is not a directory",
			Details: details,
		})
		return
	}

	probe, err := os.CreateTemp(dir, ".vs-probe-*")
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "output_dir",
			Status:  StatusError,
			Message: fmt.Sprintf("Directory is not writable: %s", err),
			Details: details,
		})
		return
	}
	probe.Close()
	os.Remove(probe.Name())

	d.addResult(DiagnosticResult{
		Name:    "output_dir",
		Status:  StatusOK,
		Message: "Directory is writable",
		Details: details,
	})
}

func (d *Diagnostics) checkTenants() {
	catalog, err := d.cfg.Generator.Catalog()
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "tenants",
			Status:  StatusError,
			Message: err.Error(),
			Details: map[string]string{"file": d.cfg.Generator.TenantsFile},
		})
		return
	}
	if _, err := catalog.Select(d.cfg.Generator.Tenants); err != nil {
		d.addResult(DiagnosticResult{
			Name:    "tenants",
			Status:  StatusError,
			Message: err.Error(),
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "tenants",
		Status:  StatusOK,
		Message: fmt.Sprintf("%d tenants configured", len(catalog.Tenants)),
	})
}

// sink is one optional outbound integration.
type sink struct {
	name    string
	enabled bool
	addr    string
}

func (d *Diagnostics) sinks() []sink {
	cfg := d.cfg
	first := func(hosts []string) string {
		if len(hosts) == 0 {
			return ""
		}
		return hosts[0]
	}
	return []sink{
		{"clickhouse", cfg.Storage.Enabled, first(cfg.Storage.ClickHouse.Hosts)},
		{"s3", cfg.Archive.Enabled, endpointAddr(cfg.Archive.Endpoint)},
		{"kafka", cfg.Alerting.Enabled, first(cfg.Alerting.Brokers)},
		{"redis", cfg.Cache.Enabled, cfg.Cache.Addr},
	}
}

// endpointAddr turns an endpoint URL into host:port. It returns "" for the
// default AWS endpoint.
func endpointAddr(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return net.JoinHostPort(u.Hostname(), "443")
}

func (d *Diagnostics) checkSinks(ctx context.Context) {
	for _, s := range d.sinks() {
		name := s.name + "_connectivity"
		if !s.enabled {
			d.addResult(DiagnosticResult{Name: name, Status: StatusSkipped, Message: "Disabled"})
			continue
		}
		if s.addr == "" {
			d.addResult(DiagnosticResult{Name: name, Status: StatusSkipped, Message: "Default endpoint, not probed"})
			continue
		}

		dialCtx, cancel := context.WithTimeout(ctx, d.timeout)
		conn, err := d.dial(dialCtx, "tcp", s.addr)
		cancel()
		if err != nil {
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusError,
				Message: fmt.Sprintf("Cannot connect to %s: %s", s.name, err),
				Details: map[string]string{"host": s.addr},
			})
			continue
		}
		conn.Close()
		d.addResult(DiagnosticResult{
			Name:    name,
			Status:  StatusOK,
			Message: fmt.Sprintf("%s is reachable", s.name),
			Details: map[string]string{"host": s.addr},
		})
	}
}

func (d *Diagnostics) logSummary() {
	var ok, warnings, errors, skipped int
	for _, r := range d.results {
		switch r.Status {
		case StatusOK:
			ok++
		case StatusWarning:
			warnings++
		case StatusError:
			errors++
		case StatusSkipped:
			skipped++
		}
	}
	d.logger.Info("diagnostics summary",
		"ok", ok,
		"warnings", warnings,
		"errors", errors,
		"skipped", skipped,
	)
}

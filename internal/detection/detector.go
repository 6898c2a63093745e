// Package detection re-derives anomalies from an activity log using fixed
// statistical thresholds and rolls them up into a dataset risk level.
package detection

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"vaultsphere/internal/schema"
)

// Detector runs the anomaly rules over an in-memory event slice. It never
// mutates its input and always visits users in ascending ID order, so
// repeated runs give identical reports.
type Detector struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Detector.
func New(cfg Config, logger *slog.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("detection config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, logger: logger, now: time.Now}, nil
}

// Config returns the detector thresholds.
func (d *Detector) Config() Config {
	return d.cfg
}

// Analyze runs every detector and the risk rollup.
func (d *Detector) Analyze(events []schema.Event) *Report {
	groups := groupByUser(events)

	r := &Report{
		Events:      len(events),
		Bursts:      d.detectBursts(groups),
		UnusualMix:  d.detectUnusualMix(groups),
		IPPatterns:  d.detectIPPatterns(groups),
		OffHours:    d.detectOffHours(groups),
		GeneratedAt: d.now().UTC(),
	}

	total := len(r.Bursts) + len(r.UnusualMix) + len(r.IPPatterns) + len(r.OffHours)
	r.Risk = ScoreRisk(total, len(events), d.cfg)

	d.logger.Info("analysis complete",
		"events", r.Events,
		"users", len(groups),
		"bursts", len(r.Bursts),
		"unusual_event_types", len(r.UnusualMix),
		"suspicious_ip_access", len(r.IPPatterns),
		"off_hours", len(r.OffHours),
		"risk", r.Risk.Level,
	)
	return r
}

// DetectBursts runs only the failed-login burst detector.
func (d *Detector) DetectBursts(events []schema.Event) []Burst {
	return d.detectBursts(groupByUser(events))
}

// DetectUnusualMix runs only the unusual event-type detector.
func (d *Detector) DetectUnusualMix(events []schema.Event) []UnusualMix {
	return d.detectUnusualMix(groupByUser(events))
}

// DetectIPPatterns runs only the IP-access pattern detector.
func (d *Detector) DetectIPPatterns(events []schema.Event) []IPPattern {
	return d.detectIPPatterns(groupByUser(events))
}

// DetectOffHours runs only the off-hours detector.
func (d *Detector) DetectOffHours(events []schema.Event) []OffHoursActivity {
	return d.detectOffHours(groupByUser(events))
}

// ScoreRisk maps a total finding count to a risk level.
func ScoreRisk(totalAnomalies, totalEvents int, cfg Config) Risk {
	r := Risk{
		TotalAnomalies: totalAnomalies,
		TotalEvents:    totalEvents,
		Level:          RiskLow,
	}
	switch {
	case totalAnomalies > cfg.HighRiskTotal:
		r.Level = RiskHigh
	case totalAnomalies > cfg.MediumRiskTotal:
		r.Level = RiskMedium
	}
	if totalEvents > 0 {
		r.AnomalyRate = float64(totalAnomalies) / float64(totalEvents)
	}
	return r
}

// userEvents holds one user's events in input order.
type userEvents struct {
	userID   string
	tenantID int
	events   []*schema.Event
}

func groupByUser(events []schema.Event) []*userEvents {
	index := make(map[string]*userEvents)
	for i := range events {
		e := &events[i]
		g, ok := index[e.UserID]
		if !ok {
			g = &userEvents{userID: e.UserID, tenantID: e.TenantID}
			index[e.UserID] = g
		}
		g.events = append(g.events, e)
	}

	out := make([]*userEvents, 0, len(index))
	for _, g := range index {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].userID < out[j].userID })
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// topCounts orders by count descending, then key ascending, and keeps limit.
func topCounts(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

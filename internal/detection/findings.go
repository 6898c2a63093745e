package detection

import "time"

// Severity grades an unusual event-type finding.
type Severity string

const (
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// RiskLevel is the overall dataset rating.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Count is a key with an occurrence count.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// HourCount is an hour of day with an occurrence count.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Burst is the first cluster of failed logins found for a user. It covers
// exactly threshold failures, from Start to End.
type Burst struct {
	UserID       string    `json:"user_id"`
	TenantID     int       `json:"tenant_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	WindowEnd    time.Time `json:"window_end"`
	FailureCount int       `json:"failure_count"`
	// WindowCount is every failure inside [Start, WindowEnd].
	WindowCount int      `json:"window_count"`
	IPs         []string `json:"ips"`
}

// Duration is the time between the first and last covered failure.
func (b *Burst) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// UnusualMix flags a user whose share of a sensitive event type is high.
type UnusualMix struct {
	UserID      string   `json:"user_id"`
	TenantID    int      `json:"tenant_id"`
	EventType   string   `json:"event_type"`
	Count       int      `json:"count"`
	TotalEvents int      `json:"total_events"`
	Percentage  float64  `json:"percentage"`
	Severity    Severity `json:"severity"`
}

// IPPattern flags a user that connects from many different addresses.
type IPPattern struct {
	UserID       string   `json:"user_id"`
	TenantID     int      `json:"tenant_id"`
	TotalEvents  int      `json:"total_events"`
	UniqueIPs    int      `json:"unique_ips"`
	PrimaryIPs   []string `json:"primary_ips"`
	Occasional   int      `json:"occasional"`
	OccasionalIP []Count  `json:"occasional_ips"`
}

// OffHoursActivity flags a user with repeated night-time activity.
type OffHoursActivity struct {
	UserID      string      `json:"user_id"`
	TenantID    int         `json:"tenant_id"`
	Count       int         `json:"count"`
	TotalEvents int         `json:"total_events"`
	Percentage  float64     `json:"percentage"`
	EventTypes  []Count     `json:"event_types"`
	PeakHours   []HourCount `json:"peak_hours"`
}

// Risk is the naive additive rollup of all findings. The same event may
// contribute to several categories.
type Risk struct {
	TotalAnomalies int       `json:"total_anomalies"`
	TotalEvents    int       `json:"total_events"`
	Level          RiskLevel `json:"level"`
	AnomalyRate    float64   `json:"anomaly_rate"`
}

// Report is the output of one analysis run.
type Report struct {
	Source      string             `json:"source,omitempty"`
	Events      int                `json:"events"`
	Malformed   int                `json:"malformed_rows"`
	Bursts      []Burst            `json:"failed_login_bursts"`
	UnusualMix  []UnusualMix       `json:"unusual_event_types"`
	IPPatterns  []IPPattern        `json:"suspicious_ip_access"`
	OffHours    []OffHoursActivity `json:"off_hours_activity"`
	Risk        Risk               `json:"risk"`
	Evaluation  *Evaluation        `json:"evaluation,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// FlaggedUsers returns the distinct users found by any detector, sorted.
func (r *Report) FlaggedUsers() []string {
	seen := make(map[string]bool)
	for _, b := range r.Bursts {
		seen[b.UserID] = true
	}
	for _, u := range r.UnusualMix {
		seen[u.UserID] = true
	}
	for _, p := range r.IPPatterns {
		seen[p.UserID] = true
	}
	for _, o := range r.OffHours {
		seen[o.UserID] = true
	}
	return sortedKeys(seen)
}

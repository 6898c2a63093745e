package detection

import (
	"errors"
	"fmt"
	"time"
)

// Config holds every detector threshold.
type Config struct {
	// Failed-login bursts.
	BurstThreshold int           `yaml:"burst_threshold"`
	BurstWindow    time.Duration `yaml:"burst_window"`

	// Unusual event-type mix. Percentages are 0-100.
	SensitiveEventTypes  []string `yaml:"sensitive_event_types"`
	SensitivePercent     float64  `yaml:"sensitive_percent"`
	SensitiveHighPercent float64  `yaml:"sensitive_high_percent"`
	MinUserEvents        int      `yaml:"min_user_events"`

	// IP-access pattern.
	PrimaryIPPercent    float64 `yaml:"primary_ip_percent"`
	OccasionalIPMin     int     `yaml:"occasional_ip_min"`
	MaxUniqueIPs        int     `yaml:"max_unique_ips"`
	MaxOccasionalIPs    int     `yaml:"max_occasional_ips"`
	OccasionalIPDetails int     `yaml:"occasional_ip_details"`

	// Off-hours activity.
	OffHours          []int `yaml:"off_hours"`
	MinOffHoursEvents int   `yaml:"min_off_hours_events"`
	TopBreakdown      int   `yaml:"top_breakdown"`

	// Aggregate risk.
	HighRiskTotal   int `yaml:"high_risk_total"`
	MediumRiskTotal int `yaml:"medium_risk_total"`
}

// DefaultConfig returns the standard detector thresholds.
func DefaultConfig() Config {
	return Config{
		BurstThreshold:       10,
		BurstWindow:          60 * time.Minute,
		SensitiveEventTypes:  []string{"DELETE"},
		SensitivePercent:     2.0,
		SensitiveHighPercent: 5.0,
		MinUserEvents:        50,
		PrimaryIPPercent:     10.0,
		OccasionalIPMin:      3,
		MaxUniqueIPs:         5,
		MaxOccasionalIPs:     2,
		OccasionalIPDetails:  5,
		OffHours:             []int{23, 0, 1, 2, 3, 4, 5},
		MinOffHoursEvents:    5,
		TopBreakdown:         3,
		HighRiskTotal:        50,
		MediumRiskTotal:      20,
	}
}

// Validate checks the thresholds for consistency.
func (c *Config) Validate() error {
	if c.BurstThreshold < 1 {
		return errors.New("burst_threshold must be positive")
	}
	if c.BurstWindow <= 0 {
		return errors.New("burst_window must be positive")
	}
	if c.SensitiveHighPercent < c.SensitivePercent {
		return errors.New("sensitive_high_percent must not be below sensitive_percent")
	}
	if c.PrimaryIPPercent <= 0 || c.PrimaryIPPercent > 100 {
		return errors.New("primary_ip_percent must be within (0,100]")
	}
	if c.OccasionalIPDetails < 0 || c.TopBreakdown < 0 {
		return errors.New("detail limits must not be negative")
	}
	for _, h := range c.OffHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("invalid off-hours hour %d", h)
		}
	}
	if c.HighRiskTotal < c.MediumRiskTotal {
		return errors.New("high_risk_total must not be below medium_risk_total")
	}
	return nil
}

package generator

import (
	"errors"
	"fmt"
	"time"
)

// Selection decides how many users an injection rule targets. A positive
// Count wins; otherwise Fraction of the eligible users, but at least Min.
// The result never exceeds the number of eligible users.
type Selection struct {
	Count    int     `yaml:"count"`
	Fraction float64 `yaml:"fraction"`
	Min      int     `yaml:"min"`
}

// Size returns the number of users to select out of n eligible ones.
func (s Selection) Size(n int) int {
	k := s.Count
	if k <= 0 {
		k = int(float64(n) * s.Fraction)
		if k < s.Min {
			k = s.Min
		}
	}
	if k > n {
		k = n
	}
	if k < 0 {
		k = 0
	}
	return k
}

func (s Selection) validate(rule string) error {
	if s.Count < 0 || s.Min < 0 {
		return fmt.Errorf("%s: selection counts must not be negative", rule)
	}
	if s.Fraction < 0 || s.Fraction > 1 {
		return fmt.Errorf("%s: selection fraction must be within [0,1]", rule)
	}
	return nil
}

// VolumeRule bounds the number of events per targeted user and how far back
// the anomaly is placed, in days before generation time.
type VolumeRule struct {
	Enabled    bool      `yaml:"enabled"`
	Select     Selection `yaml:"select"`
	MinEvents  int       `yaml:"min_events"`
	MaxEvents  int       `yaml:"max_events"`
	MinDaysAgo float64   `yaml:"min_days_ago"`
	MaxDaysAgo float64   `yaml:"max_days_ago"`
}

func (r VolumeRule) validate(rule string) error {
	if err := r.Select.validate(rule); err != nil {
		return err
	}
	if r.MinEvents < 1 || r.MaxEvents < r.MinEvents {
		return fmt.Errorf("%s: invalid event range [%d,%d]", rule, r.MinEvents, r.MaxEvents)
	}
	if r.MinDaysAgo < 0 || r.MaxDaysAgo < r.MinDaysAgo {
		return fmt.Errorf("%s: invalid day range [%v,%v]", rule, r.MinDaysAgo, r.MaxDaysAgo)
	}
	return nil
}

// BurstRule configures failed-login burst injection.
type BurstRule struct {
	VolumeRule              `yaml:",inline"`
	MinDuration             time.Duration `yaml:"min_duration"`
	MaxDuration             time.Duration `yaml:"max_duration"`
	SuspiciousIPProbability float64       `yaml:"suspicious_ip_probability"`
}

// OffHoursRule configures night-time activity injection.
type OffHoursRule struct {
	VolumeRule `yaml:",inline"`
	Hours      []int `yaml:"hours"`
}

// SuspiciousIPRule configures access from the suspicious pool.
type SuspiciousIPRule struct {
	VolumeRule         `yaml:",inline"`
	FailureProbability float64 `yaml:"failure_probability"`
}

// Options controls baseline generation and every injection rule.
type Options struct {
	DaysBack           int              `yaml:"days_back"`
	SuccessProbability float64          `yaml:"success_probability"`
	Burst              BurstRule        `yaml:"failed_login_burst"`
	OffHours           OffHoursRule     `yaml:"off_hours"`
	Complaints         VolumeRule       `yaml:"excessive_complaints"`
	AdminActions       VolumeRule       `yaml:"unauthorized_admin"`
	SuspiciousIP       SuspiciousIPRule `yaml:"suspicious_ip"`
}

// DefaultOptions returns the standard generation profile.
func DefaultOptions() Options {
	return Options{
		DaysBack:           30,
		SuccessProbability: 0.90,
		Burst: BurstRule{
			VolumeRule: VolumeRule{
				Enabled:    true,
				Select:     Selection{Count: 8},
				MinEvents:  10,
				MaxEvents:  36,
				MinDaysAgo: 1,
				MaxDaysAgo: 25,
			},
			MinDuration:             10 * time.Minute,
			MaxDuration:             120 * time.Minute,
			SuspiciousIPProbability: 0.6,
		},
		OffHours: OffHoursRule{
			VolumeRule: VolumeRule{
				Enabled:    true,
				Select:     Selection{Fraction: 0.30, Min: 5},
				MinEvents:  5,
				MaxEvents:  12,
				MinDaysAgo: 1,
				MaxDaysAgo: 20,
			},
			Hours: []int{23, 0, 1, 2, 3, 4, 5},
		},
		Complaints: VolumeRule{
			Enabled:    true,
			Select:     Selection{Fraction: 0.10, Min: 3},
			MinEvents:  8,
			MaxEvents:  15,
			MinDaysAgo: 1,
			MaxDaysAgo: 28,
		},
		AdminActions: VolumeRule{
			Enabled:    true,
			Select:     Selection{Fraction: 0.10, Min: 2},
			MinEvents:  2,
			MaxEvents:  4,
			MinDaysAgo: 1,
			MaxDaysAgo: 28,
		},
		SuspiciousIP: SuspiciousIPRule{
			VolumeRule: VolumeRule{
				Enabled:    true,
				Select:     Selection{Fraction: 0.20, Min: 3},
				MinEvents:  3,
				MaxEvents:  8,
				MinDaysAgo: 1,
				MaxDaysAgo: 25,
			},
			FailureProbability: 0.4,
		},
	}
}

// Validate checks the options for internal consistency.
func (o *Options) Validate() error {
	if o.DaysBack <= 0 {
		return errors.New("days_back must be positive")
	}
	if o.SuccessProbability < 0 || o.SuccessProbability > 1 {
		return errors.New("success_probability must be within [0,1]")
	}
	rules := []struct {
		name string
		rule VolumeRule
	}{
		{"failed_login_burst", o.Burst.VolumeRule},
		{"off_hours", o.OffHours.VolumeRule},
		{"excessive_complaints", o.Complaints},
		{"unauthorized_admin", o.AdminActions},
		{"suspicious_ip", o.SuspiciousIP.VolumeRule},
	}
	for _, r := range rules {
		if err := r.rule.validate(r.name); err != nil {
			return err
		}
	}
	if o.Burst.MinDuration <= 0 || o.Burst.MaxDuration < o.Burst.MinDuration {
		return fmt.Errorf("failed_login_burst: invalid duration range [%v,%v]", o.Burst.MinDuration, o.Burst.MaxDuration)
	}
	if p := o.Burst.SuspiciousIPProbability; p < 0 || p > 1 {
		return errors.New("failed_login_burst: suspicious_ip_probability must be within [0,1]")
	}
	if len(o.OffHours.Hours) == 0 {
		return errors.New("off_hours: hours must not be empty")
	}
	for _, h := range o.OffHours.Hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("off_hours: invalid hour %d", h)
		}
	}
	if p := o.SuspiciousIP.FailureProbability; p < 0 || p > 1 {
		return errors.New("suspicious_ip: failure_probability must be within [0,1]")
	}
	return nil
}

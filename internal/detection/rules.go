package detection

// Category names one detector.
type Category string

const (
	CategoryFailedLoginBurst Category = "failed_login_burst"
	CategoryUnusualEventMix  Category = "unusual_event_types"
	CategorySuspiciousIP     Category = "suspicious_ip_access"
	CategoryOffHours         Category = "off_hours_activity"
)

// MITREMapping maps a detector to the ATT&CK framework.
type MITREMapping struct {
	TacticID    string `json:"tactic_id"`
	TacticName  string `json:"tactic_name"`
	TechniqueID string `json:"technique_id"`
}

// Rule describes a detector for reporting.
type Rule struct {
	Category        Category
	Name            string
	Description     string
	MITRE           *MITREMapping
	Recommendations []string
}

// Rules returns the detector descriptions in report order.
func Rules() []Rule {
	return []Rule{
		{
			Category:    CategoryFailedLoginBurst,
			Name:        "Failed Login Bursts",
			Description: "Clusters of failed logins for one user within a short window",
			MITRE: &MITREMapping{
				TacticID:    "TA0006",
				TacticName:  "Credential Access",
				TechniqueID: "T1110",
			},
			Recommendations: []string{
				"Implement stronger rate limiting for login attempts",
				"Consider IP-based blocking for repeated failures",
			},
		},
		{
			Category:    CategoryUnusualEventMix,
			Name:        "Unusual Event Types",
			Description: "Users with a high share of sensitive operations",
			MITRE: &MITREMapping{
				TacticID:    "TA0040",
				TacticName:  "Impact",
				TechniqueID: "T1485",
			},
			Recommendations: []string{
				"Review user permissions and role assignments",
				"Implement approval workflows for sensitive operations",
			},
		},
		{
			Category:    CategorySuspiciousIP,
			Name:        "Suspicious IP Access",
			Description: "Users connecting from many or rarely used addresses",
			MITRE: &MITREMapping{
				TacticID:    "TA0001",
				TacticName:  "Initial Access",
				TechniqueID: "T1078",
			},
			Recommendations: []string{
				"Implement geo-location monitoring",
				"Require additional authentication for new IP addresses",
			},
		},
		{
			Category:    CategoryOffHours,
			Name:        "Off-Hours Activity",
			Description: "Users repeatedly active during night hours",
			MITRE: &MITREMapping{
				TacticID:    "TA0005",
				TacticName:  "Defense Evasion",
				TechniqueID: "T1078",
			},
			Recommendations: []string{
				"Monitor off-hours access more closely",
				"Consider requiring manager approval for off-hours work",
			},
		},
	}
}

// Count returns the number of findings the report holds for c.
func (r *Report) Count(c Category) int {
	switch c {
	case CategoryFailedLoginBurst:
		return len(r.Bursts)
	case CategoryUnusualEventMix:
		return len(r.UnusualMix)
	case CategorySuspiciousIP:
		return len(r.IPPatterns)
	case CategoryOffHours:
		return len(r.OffHours)
	}
	return 0
}

// Users returns the users flagged for c, in finding order.
func (r *Report) Users(c Category) []string {
	var out []string
	switch c {
	case CategoryFailedLoginBurst:
		for _, f := range r.Bursts {
			out = append(out, f.UserID)
		}
	case CategoryUnusualEventMix:
		for _, f := range r.UnusualMix {
			out = append(out, f.UserID)
		}
	case CategorySuspiciousIP:
		for _, f := range r.IPPatterns {
			out = append(out, f.UserID)
		}
	case CategoryOffHours:
		for _, f := range r.OffHours {
			out = append(out, f.UserID)
		}
	}
	return out
}

// Recommendations returns the remediation lines for every category with at
// least one finding.
func (r *Report) Recommendations() []string {
	var out []string
	for _, rule := range Rules() {
		if r.Count(rule.Category) > 0 {
			out = append(out, rule.Recommendations...)
		}
	}
	return out
}

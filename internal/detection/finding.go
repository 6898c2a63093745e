package detection

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// findingNamespace seeds the name-based finding IDs.
var findingNamespace = uuid.MustParse("3b0c8f5e-6a57-4d0e-9d8a-2f4b1c7e9a10")

// Finding is one detector result flattened for sinks (ClickHouse, Kafka).
type Finding struct {
	ID         uuid.UUID     `json:"id"`
	Category   Category      `json:"category"`
	RuleName   string        `json:"rule_name"`
	Severity   Severity      `json:"severity"`
	UserID     string        `json:"user_id"`
	TenantID   int           `json:"tenant_id"`
	Title      string        `json:"title"`
	EventCount int           `json:"event_count"`
	MITRE      *MITREMapping `json:"mitre,omitempty"`
	Source     string        `json:"source,omitempty"`
	DetectedAt time.Time     `json:"detected_at"`
	Detail     any           `json:"detail"`
}

// FindingID derives a stable ID, so re-analyzing the same file yields the
// same IDs.
func FindingID(source string, c Category, userID, discriminator string) uuid.UUID {
	return uuid.NewSHA1(findingNamespace, []byte(source+"|"+string(c)+"|"+userID+"|"+discriminator))
}

// Findings flattens the report in rule order, then finding order.
func (r *Report) Findings() []Finding {
	rules := make(map[Category]Rule)
	for _, rule := range Rules() {
		rules[rule.Category] = rule
	}
	mk := func(c Category, sev Severity, user string, tenant int, disc, title string, n int, detail any) Finding {
		rule := rules[c]
		return Finding{
			ID:         FindingID(r.Source, c, user, disc),
			Category:   c,
			RuleName:   rule.Name,
			Severity:   sev,
			UserID:     user,
			TenantID:   tenant,
			Title:      title,
			EventCount: n,
			MITRE:      rule.MITRE,
			Source:     r.Source,
			DetectedAt: r.GeneratedAt,
			Detail:     detail,
		}
	}

	out := make([]Finding, 0, len(r.Bursts)+len(r.UnusualMix)+len(r.IPPatterns)+len(r.OffHours))
	for _, b := range r.Bursts {
		out = append(out, mk(CategoryFailedLoginBurst, SeverityHigh, b.UserID, b.TenantID,
			b.Start.UTC().Format(time.RFC3339),
			fmt.Sprintf("%d failed logins in %s", b.FailureCount, b.Duration()),
			b.FailureCount, b))
	}
	for _, m := range r.UnusualMix {
		out = append(out, mk(CategoryUnusualEventMix, m.Severity, m.UserID, m.TenantID, m.EventType,
			fmt.Sprintf("%s is %.1f%% of %d events", m.EventType, m.Percentage, m.TotalEvents),
			m.Count, m))
	}
	for _, p := range r.IPPatterns {
		out = append(out, mk(CategorySuspiciousIP, SeverityMedium, p.UserID, p.TenantID, "",
			fmt.Sprintf("%d addresses, %d occasional", p.UniqueIPs, p.Occasional),
			p.TotalEvents, p))
	}
	for _, o := range r.OffHours {
		out = append(out, mk(CategoryOffHours, SeverityMedium, o.UserID, o.TenantID, "",
			fmt.Sprintf("%d night events (%.1f%%)", o.Count, o.Percentage),
			o.Count, o))
	}
	return out
}

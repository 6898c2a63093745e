package detection

import (
	"sort"
)

// detectUnusualMix flags users whose share of a sensitive event type exceeds
// SensitivePercent, provided they have more than MinUserEvents events.
func (d *Detector) detectUnusualMix(groups []*userEvents) []UnusualMix {
	var out []UnusualMix

	for _, g := range groups {
		total := len(g.events)
		if total <= d.cfg.MinUserEvents {
			continue
		}
		counts := make(map[string]int)
		for _, e := range g.events {
			counts[e.EventType]++
		}

		// Highest share wins; ties keep configuration order.
		best, bestCount := "", 0
		for _, et := range d.cfg.SensitiveEventTypes {
			if n := counts[et]; n > bestCount {
				best, bestCount = et, n
			}
		}
		if bestCount == 0 {
			continue
		}

		pct := percent(bestCount, total)
		if pct <= d.cfg.SensitivePercent {
			continue
		}
		sev := SeverityMedium
		if pct > d.cfg.SensitiveHighPercent {
			sev = SeverityHigh
		}
		out = append(out, UnusualMix{
			UserID:      g.userID,
			TenantID:    g.tenantID,
			EventType:   best,
			Count:       bestCount,
			TotalEvents: total,
			Percentage:  pct,
			Severity:    sev,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

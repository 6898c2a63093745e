package detection

import (
	"sort"
)

// detectIPPatterns splits each user's addresses into primary ones (more than
// PrimaryIPPercent of the user's events) and occasional-but-repeated ones
// (at least OccasionalIPMin uses, not primary). A user is flagged when the
// unique address count exceeds MaxUniqueIPs or the occasional count exceeds
// MaxOccasionalIPs.
func (d *Detector) detectIPPatterns(groups []*userEvents) []IPPattern {
	var out []IPPattern

	for _, g := range groups {
		total := len(g.events)
		counts := make(map[string]int)
		for _, e := range g.events {
			counts[e.IPAddress]++
		}

		var primary []string
		occasional := make(map[string]int)
		for ip, n := range counts {
			share := percent(n, total)
			switch {
			case share > d.cfg.PrimaryIPPercent:
				primary = append(primary, ip)
			case n >= d.cfg.OccasionalIPMin:
				occasional[ip] = n
			}
		}

		if len(counts) <= d.cfg.MaxUniqueIPs && len(occasional) <= d.cfg.MaxOccasionalIPs {
			continue
		}
		sort.Strings(primary)
		out = append(out, IPPattern{
			UserID:       g.userID,
			TenantID:     g.tenantID,
			TotalEvents:  total,
			UniqueIPs:    len(counts),
			PrimaryIPs:   primary,
			Occasional:   len(occasional),
			OccasionalIP: topCounts(occasional, d.cfg.OccasionalIPDetails),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UniqueIPs != out[j].UniqueIPs {
			return out[i].UniqueIPs > out[j].UniqueIPs
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

package detection

import (
	"sort"

	"vaultsphere/internal/schema"
)

// detectBursts scans each user's failed logins in time order and reports the
// first window [start, start+BurstWindow] holding at least BurstThreshold of
// them. Later bursts of the same user are not reported.
func (d *Detector) detectBursts(groups []*userEvents) []Burst {
	threshold := d.cfg.BurstThreshold
	var out []Burst

	for _, g := range groups {
		var fails []*schema.Event
		for _, e := range g.events {
			if e.IsFailedLogin() {
				fails = append(fails, e)
			}
		}
		if len(fails) < threshold {
			continue
		}
		sort.SliceStable(fails, func(i, j int) bool {
			return fails[i].Timestamp.Before(fails[j].Timestamp)
		})

		for i := 0; i+threshold-1 < len(fails); i++ {
			start := fails[i].Timestamp
			windowEnd := start.Add(d.cfg.BurstWindow)
			last := fails[i+threshold-1]
			if last.Timestamp.After(windowEnd) {
				continue
			}

			inWindow := threshold
			for j := i + threshold; j < len(fails) && !fails[j].Timestamp.After(windowEnd); j++ {
				inWindow++
			}

			covered := fails[i : i+threshold]
			out = append(out, Burst{
				UserID:       g.userID,
				TenantID:     g.tenantID,
				Start:        start,
				End:          last.Timestamp,
				WindowEnd:    windowEnd,
				FailureCount: threshold,
				WindowCount:  inWindow,
				IPs:          distinctIPs(covered),
			})
			break
		}
	}
	return out
}

// distinctIPs returns addresses in first-seen order.
func distinctIPs(events []*schema.Event) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range events {
		if !seen[e.IPAddress] {
			seen[e.IPAddress] = true
			out = append(out, e.IPAddress)
		}
	}
	return out
}

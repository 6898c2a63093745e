package detection

import (
	"sort"
)

// detectOffHours flags users with more than MinOffHoursEvents events in the
// configured night hours, with a breakdown of event types and peak hours.
func (d *Detector) detectOffHours(groups []*userEvents) []OffHoursActivity {
	night := make(map[int]bool, len(d.cfg.OffHours))
	for _, h := range d.cfg.OffHours {
		night[h] = true
	}

	var out []OffHoursActivity
	for _, g := range groups {
		types := make(map[string]int)
		hours := make(map[int]int)
		count := 0
		for _, e := range g.events {
			h := e.Hour()
			if !night[h] {
				continue
			}
			count++
			types[e.EventType]++
			hours[h]++
		}
		if count <= d.cfg.MinOffHoursEvents {
			continue
		}
		out = append(out, OffHoursActivity{
			UserID:      g.userID,
			TenantID:    g.tenantID,
			Count:       count,
			TotalEvents: len(g.events),
			Percentage:  percent(count, len(g.events)),
			EventTypes:  topCounts(types, d.cfg.TopBreakdown),
			PeakHours:   topHours(hours, d.cfg.TopBreakdown),
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

func topHours(m map[int]int, limit int) []HourCount {
	out := make([]HourCount, 0, len(m))
	for h, n := range m {
		out = append(out, HourCount{Hour: h, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hour < out[j].Hour
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

package dataset

import (
	"sort"
	"time"

	"vaultsphere/internal/schema"
	"vaultsphere/internal/tenant"
)

// Thresholds used by Profile for its watch lists.
const (
	riskyIPFailureRate = 0.5
	riskyIPMinEvents   = 3
	repeatFailerLogins = 10

	complaintWatchMin   = 8
	adminActionWatchMin = 3
	watchTop            = 5
)

// Count is a key with an occurrence count.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// IPFailure is the failure ratio observed for one address.
type IPFailure struct {
	IP          string  `json:"ip"`
	Events      int     `json:"events"`
	Failures    int     `json:"failures"`
	FailureRate float64 `json:"failure_rate"`
}

// TenantWatch summarizes one tenant-specific event type, such as the food
// tenant's complaints or the IT tenant's admin actions.
type TenantWatch struct {
	TenantID  int    `json:"tenant_id"`
	Tenant    string `json:"tenant"`
	EventType string `json:"event_type"`
	Total     int    `json:"total"`
	Users     int    `json:"users"`
	// Flagged counts users with at least Threshold events of the type.
	Threshold int     `json:"threshold"`
	Flagged   int     `json:"flagged"`
	Top       []Count `json:"top"`
}

// Profile is a descriptive summary of a dataset.
type Profile struct {
	Events      int       `json:"events"`
	Users       int       `json:"users"`
	Tenants     []int     `json:"tenants"`
	UniqueIPs   int       `json:"unique_ips"`
	First       time.Time `json:"first"`
	Last        time.Time `json:"last"`
	SuccessRate float64   `json:"success_rate"`

	EventTypes []Count `json:"event_types"`
	Statuses   []Count `json:"statuses"`

	// Hour bands: business is [9,17], night is {23,0..5}; off-hours is
	// everything outside business hours and includes night.
	BusinessHours int `json:"business_hours"`
	OffHours      int `json:"off_hours"`
	NightHours    int `json:"night_hours"`

	Injected          int     `json:"injected"`
	InjectedByType    []Count `json:"injected_by_type,omitempty"`
	InjectedNight     int     `json:"injected_night"`
	InjectedFailLogin int     `json:"injected_failed_logins"`

	RiskyIPs      []IPFailure `json:"risky_ips"`
	RepeatFailers []Count     `json:"repeat_failers"`

	Complaints   []TenantWatch `json:"complaints,omitempty"`
	AdminActions []TenantWatch `json:"admin_actions,omitempty"`
}

// IsNightHour reports whether hour falls in {23,0,1,2,3,4,5}.
func IsNightHour(hour int) bool {
	return hour >= 23 || hour <= 5
}

// IsBusinessHour reports whether hour falls in [9,17].
func IsBusinessHour(hour int) bool {
	return hour >= 9 && hour <= 17
}

// BuildProfile summarizes events. The catalog names each tenant's
// complaint and admin-action types; nil means the built-in tenants. It never
// mutates its input.
func BuildProfile(events []schema.Event, catalog *tenant.Catalog) *Profile {
	p := &Profile{Events: len(events)}
	if len(events) == 0 {
		return p
	}

	users := make(map[string]bool)
	tenants := make(map[int]bool)
	types := make(map[string]int)
	statuses := make(map[string]int)
	injectedTypes := make(map[string]int)
	failedLogins := make(map[string]int)
	ips := make(map[string]*IPFailure)

	p.First, p.Last = events[0].Timestamp, events[0].Timestamp
	success := 0

	for i := range events {
		e := &events[i]
		users[e.UserID] = true
		tenants[e.TenantID] = true
		types[e.EventType]++
		statuses[string(e.Status)]++

		if e.Timestamp.Before(p.First) {
			p.First = e.Timestamp
		}
		if e.Timestamp.After(p.Last) {
			p.Last = e.Timestamp
		}

		hour := e.Hour()
		if IsBusinessHour(hour) {
			p.BusinessHours++
		} else {
			p.OffHours++
		}
		if IsNightHour(hour) {
			p.NightHours++
		}

		ip, ok := ips[e.IPAddress]
		if !ok {
			ip = &IPFailure{IP: e.IPAddress}
			ips[e.IPAddress] = ip
		}
		ip.Events++

		if e.Status == schema.StatusSuccess {
			success++
		} else {
			ip.Failures++
		}
		if e.IsFailedLogin() {
			failedLogins[e.UserID]++
		}

		if e.AnomalyInjected {
			p.Injected++
			injectedTypes[e.EventType]++
			if IsNightHour(hour) {
				p.InjectedNight++
			}
			if e.IsFailedLogin() {
				p.InjectedFailLogin++
			}
		}
	}

	p.Users = len(users)
	p.UniqueIPs = len(ips)
	p.SuccessRate = float64(success) / float64(len(events))
	for id := range tenants {
		p.Tenants = append(p.Tenants, id)
	}
	sort.Ints(p.Tenants)

	p.EventTypes = sortedCounts(types)
	p.Statuses = sortedCounts(statuses)
	if p.Injected > 0 {
		p.InjectedByType = sortedCounts(injectedTypes)
	}

	for _, ip := range ips {
		if ip.Events < riskyIPMinEvents {
			continue
		}
		ip.FailureRate = float64(ip.Failures) / float64(ip.Events)
		if ip.FailureRate > riskyIPFailureRate {
			p.RiskyIPs = append(p.RiskyIPs, *ip)
		}
	}
	sort.Slice(p.RiskyIPs, func(i, j int) bool {
		a, b := p.RiskyIPs[i], p.RiskyIPs[j]
		if a.FailureRate != b.FailureRate {
			return a.FailureRate > b.FailureRate
		}
		return a.IP < b.IP
	})

	for user, n := range failedLogins {
		if n >= repeatFailerLogins {
			p.RepeatFailers = append(p.RepeatFailers, Count{Key: user, Count: n})
		}
	}
	sortCounts(p.RepeatFailers)

	if catalog == nil {
		catalog = tenant.DefaultCatalog()
	}
	p.Complaints = watchTenants(events, catalog, complaintWatchMin, func(t *tenant.Tenant) string {
		return t.ComplaintEventType
	})
	p.AdminActions = watchTenants(events, catalog, adminActionWatchMin, func(t *tenant.Tenant) string {
		return t.AdminEventType
	})

	return p
}

// watchTenants counts, per tenant, the events of the type picked by
// eventType. Tenants without that type or without such events are left out.
func watchTenants(events []schema.Event, catalog *tenant.Catalog, threshold int, eventType func(*tenant.Tenant) string) []TenantWatch {
	var out []TenantWatch
	for i := range catalog.Tenants {
		t := &catalog.Tenants[i]
		et := eventType(t)
		if et == "" {
			continue
		}
		w := TenantWatch{TenantID: t.ID, Tenant: t.Name, EventType: et, Threshold: threshold}
		perUser := make(map[string]int)
		for j := range events {
			if e := &events[j]; e.TenantID == t.ID && e.EventType == et {
				w.Total++
				perUser[e.UserID]++
			}
		}
		if w.Total == 0 {
			continue
		}
		w.Users = len(perUser)
		for _, n := range perUser {
			if n >= threshold {
				w.Flagged++
			}
		}
		w.Top = sortedCounts(perUser)
		if len(w.Top) > watchTop {
			w.Top = w.Top[:watchTop]
		}
		out = append(out, w)
	}
	return out
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, Count: n})
	}
	sortCounts(out)
	return out
}

// sortCounts orders by count descending, then key ascending.
func sortCounts(c []Count) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Count != c[j].Count {
			return c[i].Count > c[j].Count
		}
		return c[i].Key < c[j].Key
	})
}

package generator

import (
	"time"

	"vaultsphere/internal/population"
	"vaultsphere/internal/sampling"
	"vaultsphere/internal/schema"
	"vaultsphere/internal/tenant"
)

// Category names one family of injected anomalies.
type Category string

const (
	CategoryFailedLoginBurst    Category = "failed_login_burst"
	CategoryOffHours            Category = "off_hours"
	CategoryExcessiveComplaints Category = "excessive_complaints"
	CategoryUnauthorizedAdmin   Category = "unauthorized_admin"
	CategorySuspiciousIP        Category = "suspicious_ip"
)

// Categories lists every injection category in reporting order.
var Categories = []Category{
	CategoryFailedLoginBurst,
	CategoryOffHours,
	CategoryExcessiveComplaints,
	CategoryUnauthorizedAdmin,
	CategorySuspiciousIP,
}

// InjectContext is what an injection rule may read. Rules see the finished
// population, never previously generated events.
type InjectContext struct {
	Src        sampling.Source
	Now        time.Time
	Tenant     *tenant.Tenant
	Population *population.Population
}

// Injector appends anomalous events for a subset of users.
type Injector interface {
	Category() Category
	Inject(ic *InjectContext) []schema.Event
}

func (ic *InjectContext) daysAgo(lo, hi float64) time.Time {
	d := sampling.Uniform(ic.Src, lo, hi)
	return ic.Now.Add(-time.Duration(d * float64(24*time.Hour)))
}

func (ic *InjectContext) event(u *population.UserProfile, ts time.Time, eventType string, status schema.Status, ip string) schema.Event {
	return schema.Event{
		Timestamp:       normalize(ts),
		TenantID:        u.TenantID,
		UserID:          u.UserID,
		ResourceID:      schema.FormatResourceID(sampling.IntRange(ic.Src, schema.MinResource, schema.MaxResource)),
		EventType:       eventType,
		Status:          status,
		IPAddress:       ip,
		AnomalyInjected: true,
	}
}

func pickUsers(src sampling.Source, users []*population.UserProfile, sel Selection) []*population.UserProfile {
	return sampling.Sample(src, users, sel.Size(len(users)))
}

// BurstInjector produces clusters of failed logins within one short window.
type BurstInjector struct {
	Rule BurstRule
}

func (b *BurstInjector) Category() Category { return CategoryFailedLoginBurst }

func (b *BurstInjector) Inject(ic *InjectContext) []schema.Event {
	var out []schema.Event
	for _, u := range pickUsers(ic.Src, ic.Population.Users, b.Rule.Select) {
		start := ic.daysAgo(b.Rule.MinDaysAgo, b.Rule.MaxDaysAgo)
		span := time.Duration(sampling.IntRange(ic.Src,
			int(b.Rule.MinDuration/time.Minute), int(b.Rule.MaxDuration/time.Minute))) * time.Minute
		attempts := sampling.IntRange(ic.Src, b.Rule.MinEvents, b.Rule.MaxEvents)

		for i := 0; i < attempts; i++ {
			offset := time.Duration(sampling.Uniform(ic.Src, 0, float64(span)))
			var ip string
			if sampling.Bernoulli(ic.Src, b.Rule.SuspiciousIPProbability) {
				ip = sampling.Pick(ic.Src, ic.Population.Pools.Suspicious)
			} else {
				ip = u.PickIP(ic.Src, ic.Population.Pools)
			}
			out = append(out, ic.event(u, start.Add(offset), schema.EventLogin, schema.StatusFailure, ip))
		}
	}
	return out
}

// OffHoursInjector places successful activity in night-time hours.
type OffHoursInjector struct {
	Rule OffHoursRule
}

func (o *OffHoursInjector) Category() Category { return CategoryOffHours }

func (o *OffHoursInjector) Inject(ic *InjectContext) []schema.Event {
	types := ic.Tenant.OffHoursTypes()
	var out []schema.Event
	for _, u := range pickUsers(ic.Src, ic.Population.Users, o.Rule.Select) {
		n := sampling.IntRange(ic.Src, o.Rule.MinEvents, o.Rule.MaxEvents)
		for i := 0; i < n; i++ {
			day := ic.daysAgo(o.Rule.MinDaysAgo, o.Rule.MaxDaysAgo)
			ts := atClock(day, sampling.Pick(ic.Src, o.Rule.Hours), ic.Src.IntN(60))
			out = append(out, ic.event(u, ts, sampling.Pick(ic.Src, types), schema.StatusSuccess, u.PickIP(ic.Src, ic.Population.Pools)))
		}
	}
	return out
}

// ComplaintInjector floods the tenant's complaint-like event type.
// It is inactive for tenants without one.
type ComplaintInjector struct {
	Rule VolumeRule
}

func (c *ComplaintInjector) Category() Category { return CategoryExcessiveComplaints }

func (c *ComplaintInjector) Inject(ic *InjectContext) []schema.Event {
	eventType := ic.Tenant.ComplaintEventType
	if eventType == "" {
		return nil
	}
	return fixedTypeEvents(ic, ic.Population.Users, c.Rule, eventType)
}

// AdminActionInjector has non-privileged users perform the tenant's
// admin-restricted action. It is inactive for tenants without one.
type AdminActionInjector struct {
	Rule VolumeRule
}

func (a *AdminActionInjector) Category() Category { return CategoryUnauthorizedAdmin }

func (a *AdminActionInjector) Inject(ic *InjectContext) []schema.Event {
	eventType := ic.Tenant.AdminEventType
	if eventType == "" {
		return nil
	}
	return fixedTypeEvents(ic, ic.Population.NonPrivileged(), a.Rule, eventType)
}

func fixedTypeEvents(ic *InjectContext, eligible []*population.UserProfile, rule VolumeRule, eventType string) []schema.Event {
	var out []schema.Event
	for _, u := range pickUsers(ic.Src, eligible, rule.Select) {
		n := sampling.IntRange(ic.Src, rule.MinEvents, rule.MaxEvents)
		for i := 0; i < n; i++ {
			ts := ic.daysAgo(rule.MinDaysAgo, rule.MaxDaysAgo)
			out = append(out, ic.event(u, ts, eventType, schema.StatusSuccess, u.PickIP(ic.Src, ic.Population.Pools)))
		}
	}
	return out
}

// SuspiciousIPInjector produces activity from the suspicious address pool
// with an elevated failure rate.
type SuspiciousIPInjector struct {
	Rule SuspiciousIPRule
}

func (s *SuspiciousIPInjector) Category() Category { return CategorySuspiciousIP }

func (s *SuspiciousIPInjector) Inject(ic *InjectContext) []schema.Event {
	vocab := ic.Tenant.Vocabulary()
	var out []schema.Event
	for _, u := range pickUsers(ic.Src, ic.Population.Users, s.Rule.Select) {
		n := sampling.IntRange(ic.Src, s.Rule.MinEvents, s.Rule.MaxEvents)
		for i := 0; i < n; i++ {
			ts := ic.daysAgo(s.Rule.MinDaysAgo, s.Rule.MaxDaysAgo)
			status := schema.StatusSuccess
			if sampling.Bernoulli(ic.Src, s.Rule.FailureProbability) {
				status = schema.StatusFailure
			}
			ip := sampling.Pick(ic.Src, ic.Population.Pools.Suspicious)
			out = append(out, ic.event(u, ts, sampling.Pick(ic.Src, vocab), status, ip))
		}
	}
	return out
}

// Injectors returns the enabled injection rules for opts.
func Injectors(opts Options) []Injector {
	var out []Injector
	if opts.Burst.Enabled {
		out = append(out, &BurstInjector{Rule: opts.Burst})
	}
	if opts.OffHours.Enabled {
		out = append(out, &OffHoursInjector{Rule: opts.OffHours})
	}
	if opts.Complaints.Enabled {
		out = append(out, &ComplaintInjector{Rule: opts.Complaints})
	}
	if opts.AdminActions.Enabled {
		out = append(out, &AdminActionInjector{Rule: opts.AdminActions})
	}
	if opts.SuspiciousIP.Enabled {
		out = append(out, &SuspiciousIPInjector{Rule: opts.SuspiciousIP})
	}
	return out
}

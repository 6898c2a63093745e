// Package generator produces synthetic multi-tenant activity logs: a baseline
// of normal events per user plus anomalies injected on random user subsets.
package generator

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"vaultsphere/internal/population"
	"vaultsphere/internal/sampling"
	"vaultsphere/internal/schema"
	"vaultsphere/internal/tenant"
)

const (
	businessHourStart = 9
	businessHourEnd   = 17
)

// InjectionStats records what one rule added to a dataset.
type InjectionStats struct {
	Users  []string `json:"users"`
	Events int      `json:"events"`
}

// Dataset is the result of one generation run for one tenant.
type Dataset struct {
	RunID       uuid.UUID
	GeneratedAt time.Time
	Tenant      *tenant.Tenant
	Population  *population.Population
	Events      []schema.Event
	Baseline    int
	Injected    map[Category]InjectionStats
}

// InjectedTotal returns the number of labelled anomalous events.
func (d *Dataset) InjectedTotal() int {
	n := 0
	for _, s := range d.Injected {
		n += s.Events
	}
	return n
}

// Generator builds datasets from an explicit random source and clock.
type Generator struct {
	src       sampling.Source
	now       func() time.Time
	opts      Options
	injectors []Injector
	logger    *slog.Logger
}

// New creates a Generator with the injection rules enabled in opts.
func New(src sampling.Source, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		src:       src,
		now:       time.Now,
		opts:      opts,
		injectors: Injectors(opts),
		logger:    logger,
	}
}

// WithClock sets the generation clock.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithInjectors replaces the injection rules.
func (g *Generator) WithInjectors(injectors ...Injector) *Generator {
	g.injectors = injectors
	return g
}

// Generate builds the population, baseline events and injected anomalies for
// t. A nil pools argument draws fresh address pools.
func (g *Generator) Generate(t *tenant.Tenant, pools *population.Pools) (*Dataset, error) {
	if err := g.opts.Validate(); err != nil {
		return nil, fmt.Errorf("generator options: %w", err)
	}
	sampler, err := t.Sampler()
	if err != nil {
		return nil, err
	}
	if pools == nil {
		pools = population.BuildPools(g.src)
	}

	now := g.now().UTC()
	pop := population.Build(g.src, t, pools)

	ds := &Dataset{
		RunID:       uuid.New(),
		GeneratedAt: now,
		Tenant:      t,
		Population:  pop,
		Injected:    make(map[Category]InjectionStats),
	}

	ds.Events = make([]schema.Event, 0, t.Users*t.EventsPerUser)
	for _, u := range pop.Users {
		ds.Events = g.appendBaseline(ds.Events, now, t, sampler, pools, u)
	}
	ds.Baseline = len(ds.Events)

	ic := &InjectContext{Src: g.src, Now: now, Tenant: t, Population: pop}
	for _, inj := range g.injectors {
		events := inj.Inject(ic)
		if len(events) == 0 {
			continue
		}
		ds.Events = append(ds.Events, events...)
		ds.Injected[inj.Category()] = InjectionStats{
			Users:  distinctUsers(events),
			Events: len(events),
		}
		g.logger.Debug("anomalies injected",
			"tenant", t.Key,
			"category", inj.Category(),
			"events", len(events),
		)
	}

	SortByTime(ds.Events)

	g.logger.Info("dataset generated",
		"tenant", t.Key,
		"run_id", ds.RunID,
		"users", len(pop.Users),
		"events", len(ds.Events),
		"baseline", ds.Baseline,
		"injected", ds.InjectedTotal(),
	)
	return ds, nil
}

func (g *Generator) appendBaseline(out []schema.Event, now time.Time, t *tenant.Tenant, sampler *sampling.Weighted[string], pools *population.Pools, u *population.UserProfile) []schema.Event {
	window := float64(time.Duration(g.opts.DaysBack) * 24 * time.Hour)
	for i := 0; i < t.EventsPerUser; i++ {
		ts := now.Add(-time.Duration(sampling.Uniform(g.src, 0, window)))
		if sampling.Bernoulli(g.src, t.BusinessHoursProbability) {
			ts = atClock(ts, sampling.IntRange(g.src, businessHourStart, businessHourEnd), g.src.IntN(60))
		} else if len(t.OffBusinessHours) > 0 {
			ts = atClock(ts, sampling.Pick(g.src, t.OffBusinessHours), g.src.IntN(60))
		}

		status := schema.StatusFailure
		if sampling.Bernoulli(g.src, g.opts.SuccessProbability) {
			status = schema.StatusSuccess
		}

		out = append(out, schema.Event{
			Timestamp:  normalize(ts),
			TenantID:   t.ID,
			UserID:     u.UserID,
			ResourceID: schema.FormatResourceID(sampling.IntRange(g.src, schema.MinResource, schema.MaxResource)),
			EventType:  sampler.Draw(g.src),
			Status:     status,
			IPAddress:  u.PickIP(g.src, pools),
		})
	}
	return out
}

// SortByTime orders events by ascending timestamp, keeping the relative
// order of equal timestamps.
func SortByTime(events []schema.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

// Merge combines several datasets into one time-ordered stream.
func Merge(datasets ...*Dataset) []schema.Event {
	var n int
	for _, d := range datasets {
		n += len(d.Events)
	}
	out := make([]schema.Event, 0, n)
	for _, d := range datasets {
		out = append(out, d.Events...)
	}
	SortByTime(out)
	return out
}

// atClock keeps the date and seconds of ts and sets hour and minute.
func atClock(ts time.Time, hour, minute int) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), hour, minute, ts.Second(), 0, time.UTC)
}

func normalize(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Second)
}

func distinctUsers(events []schema.Event) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range events {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			out = append(out, e.UserID)
		}
	}
	sort.Strings(out)
	return out
}

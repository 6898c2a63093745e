package generator

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"vaultsphere/internal/population"
	"vaultsphere/internal/schema"
	"vaultsphere/internal/tenant"
)

func newInjectContext(t *testing.T, tn tenant.Tenant) *InjectContext {
	t.Helper()
	src := rand.New(rand.NewPCG(21, 22))
	pools := population.BuildPools(src)
	return &InjectContext{
		Src:        src,
		Now:        fixedNow,
		Tenant:     &tn,
		Population: population.Build(src, &tn, pools),
	}
}

func groupByUser(events []schema.Event) map[string][]schema.Event {
	out := make(map[string][]schema.Event)
	for _, e := range events {
		out[e.UserID] = append(out[e.UserID], e)
	}
	return out
}

func TestSelectionSize(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		n    int
		want int
	}{
		{"fixed count", Selection{Count: 8}, 40, 8},
		{"fixed count capped", Selection{Count: 8}, 5, 5},
		{"fraction", Selection{Fraction: 0.3, Min: 5}, 50, 15},
		{"fraction floors", Selection{Fraction: 0.3, Min: 5}, 40, 12},
		{"minimum applies", Selection{Fraction: 0.1, Min: 3}, 20, 3},
		{"minimum capped", Selection{Fraction: 0.1, Min: 3}, 2, 2},
		{"empty population", Selection{Fraction: 0.5, Min: 1}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.Size(tt.n); got != tt.want {
				t.Errorf("Size(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

func TestBurstInjector(t *testing.T) {
	ic := newInjectContext(t, tenant.Food())
	rule := DefaultOptions().Burst
	events := (&BurstInjector{Rule: rule}).Inject(ic)

	byUser := groupByUser(events)
	if len(byUser) != 8 {
		t.Fatalf("burst users = %d, want 8", len(byUser))
	}

	for user, evs := range byUser {
		if len(evs) < 10 || len(evs) > 36 {
			t.Errorf("%s: %d attempts, want 10-36", user, len(evs))
		}
		profile, _ := ic.Population.Lookup(user)
		first, last := evs[0].Timestamp, evs[0].Timestamp
		for _, e := range evs {
			if !e.IsFailedLogin() || !e.AnomalyInjected {
				t.Fatalf("%s: unexpected burst event %+v", user, e)
			}
			if population.Classify(e.IPAddress) != population.PoolSuspicious && !slices.Contains(profile.TypicalIPs, e.IPAddress) {
				t.Errorf("%s: IP %s neither suspicious nor typical", user, e.IPAddress)
			}
			if e.Timestamp.Before(first) {
				first = e.Timestamp
			}
			if e.Timestamp.After(last) {
				last = e.Timestamp
			}
		}
		if span := last.Sub(first); span > 120*time.Minute {
			t.Errorf("%s: burst spans %v, want <= 120m", user, span)
		}
		if age := fixedNow.Sub(first); age < 22*time.Hour || age > 25*24*time.Hour {
			t.Errorf("%s: burst starts %v before now", user, age)
		}
	}
}

func TestOffHoursInjector(t *testing.T) {
	tn := tenant.Food()
	ic := newInjectContext(t, tn)
	events := (&OffHoursInjector{Rule: DefaultOptions().OffHours}).Inject(ic)

	byUser := groupByUser(events)
	if len(byUser) != 12 {
		t.Errorf("off-hours users = %d, want 12 (30%% of 40)", len(byUser))
	}
	night := map[int]bool{23: true, 0: true, 1: true, 2: true, 3: true, 4: true, 5: true}
	for user, evs := range byUser {
		if len(evs) < 5 || len(evs) > 12 {
			t.Errorf("%s: %d events, want 5-12", user, len(evs))
		}
		for _, e := range evs {
			if !night[e.Hour()] {
				t.Errorf("%s: hour %d outside night range", user, e.Hour())
			}
			if e.Status != schema.StatusSuccess {
				t.Errorf("%s: status %s, want SUCCESS", user, e.Status)
			}
			if !slices.Contains(tn.OffHoursTypes(), e.EventType) {
				t.Errorf("%s: type %s not an off-hours type", user, e.EventType)
			}
		}
	}
}

func TestComplaintInjector(t *testing.T) {
	ic := newInjectContext(t, tenant.Food())
	events := (&ComplaintInjector{Rule: DefaultOptions().Complaints}).Inject(ic)

	byUser := groupByUser(events)
	if len(byUser) != 4 {
		t.Errorf("complaint users = %d, want 4", len(byUser))
	}
	for user, evs := range byUser {
		if len(evs) < 8 || len(evs) > 15 {
			t.Errorf("%s: %d events, want 8-15", user, len(evs))
		}
		for _, e := range evs {
			if e.EventType != schema.EventComplaint || e.Status != schema.StatusSuccess {
				t.Errorf("%s: unexpected event %+v", user, e)
			}
		}
	}

	itCtx := newInjectContext(t, tenant.IT())
	if got := (&ComplaintInjector{Rule: DefaultOptions().Complaints}).Inject(itCtx); got != nil {
		t.Errorf("IT tenant produced %d complaint events", len(got))
	}
}

func TestAdminActionInjector(t *testing.T) {
	ic := newInjectContext(t, tenant.IT())
	events := (&AdminActionInjector{Rule: DefaultOptions().AdminActions}).Inject(ic)
	if len(events) == 0 {
		t.Fatal("no admin-action events injected")
	}

	for user, evs := range groupByUser(events) {
		profile, ok := ic.Population.Lookup(user)
		if !ok {
			t.Fatalf("unknown user %s", user)
		}
		if profile.Role == schema.RoleAdmin {
			t.Errorf("%s is an admin", user)
		}
		if len(evs) < 2 || len(evs) > 4 {
			t.Errorf("%s: %d events, want 2-4", user, len(evs))
		}
		for _, e := range evs {
			if e.EventType != schema.EventAdminAction {
				t.Errorf("%s: type %s", user, e.EventType)
			}
		}
	}

	foodCtx := newInjectContext(t, tenant.Food())
	if got := (&AdminActionInjector{Rule: DefaultOptions().AdminActions}).Inject(foodCtx); got != nil {
		t.Errorf("Food tenant produced %d admin events", len(got))
	}
}

func TestSuspiciousIPInjector(t *testing.T) {
	tn := tenant.IT()
	ic := newInjectContext(t, tn)
	events := (&SuspiciousIPInjector{Rule: DefaultOptions().SuspiciousIP}).Inject(ic)

	byUser := groupByUser(events)
	if len(byUser) != 10 {
		t.Errorf("suspicious-ip users = %d, want 10 (20%% of 50)", len(byUser))
	}
	for _, e := range events {
		if population.Classify(e.IPAddress) != population.PoolSuspicious {
			t.Errorf("IP %s not from the suspicious pool", e.IPAddress)
		}
		if !tn.HasEventType(e.EventType) {
			t.Errorf("type %s not in vocabulary", e.EventType)
		}
	}
}

func TestInjectorsRespectEnabled(t *testing.T) {
	opts := DefaultOptions()
	if n := len(Injectors(opts)); n != 5 {
		t.Errorf("len(Injectors) = %d, want 5", n)
	}
	opts.Burst.Enabled = false
	opts.SuspiciousIP.Enabled = false
	got := Injectors(opts)
	if len(got) != 3 {
		t.Fatalf("len(Injectors) = %d, want 3", len(got))
	}
	for _, inj := range got {
		if inj.Category() == CategoryFailedLoginBurst || inj.Category() == CategorySuspiciousIP {
			t.Errorf("disabled injector %s returned", inj.Category())
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{"zero days", func(o *Options) { o.DaysBack = 0 }},
		{"probability", func(o *Options) { o.SuccessProbability = 2 }},
		{"event range", func(o *Options) { o.Complaints.MaxEvents = 1 }},
		{"fraction", func(o *Options) { o.OffHours.Select.Fraction = 1.5 }},
		{"duration", func(o *Options) { o.Burst.MaxDuration = time.Minute }},
		{"no hours", func(o *Options) { o.OffHours.Hours = nil }},
		{"bad hour", func(o *Options) { o.OffHours.Hours = []int{25} }},
	}

	def := DefaultOptions()
	if err := def.Validate(); err != nil {
		t.Fatalf("DefaultOptions().Validate() error = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			if err := o.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

func TestInjectorCategories(t *testing.T) {
	var got []Category
	for _, inj := range Injectors(DefaultOptions()) {
		got = append(got, inj.Category())
	}
	if !slices.Equal(got, Categories) {
		t.Errorf("Injectors() categories = %v, want %v", got, Categories)
	}
}

package tenant

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vaultsphere/internal/schema"
)

func TestDefaultCatalogValid(t *testing.T) {
	c := DefaultCatalog()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	for _, tn := range c.Tenants {
		var sum float64
		for _, ew := range tn.EventTypes {
			sum += ew.Weight
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("tenant %s weights sum to %v, want 1", tn.Key, sum)
		}
	}
}

func TestCatalogLookup(t *testing.T) {
	c := DefaultCatalog()

	food, err := c.ByID(1)
	if err != nil || food.Key != "food" {
		t.Errorf("ByID(1) = %v, %v", food, err)
	}
	it, err := c.ByKey("it")
	if err != nil || it.ID != 2 {
		t.Errorf("ByKey(it) = %v, %v", it, err)
	}
	if _, err := c.ByID(9); !errors.Is(err, ErrUnknownTenant) {
		t.Errorf("ByID(9) error = %v, want ErrUnknownTenant", err)
	}
}

func TestCatalogSelect(t *testing.T) {
	c := DefaultCatalog()

	all, err := c.Select(nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("Select(nil) = %d tenants, %v", len(all), err)
	}

	got, err := c.Select([]string{"it", "food"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got[0].Key != "food" || got[1].Key != "it" {
		t.Errorf("Select() order = %s,%s, want food,it", got[0].Key, got[1].Key)
	}

	if _, err := c.Select([]string{"retail"}); !errors.Is(err, ErrUnknownTenant) {
		t.Errorf("Select(retail) error = %v", err)
	}
}

func TestTenantValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tn *Tenant)
	}{
		{"zero users", func(tn *Tenant) { tn.Users = 0 }},
		{"no event types", func(tn *Tenant) { tn.EventTypes = nil }},
		{"zero weight", func(tn *Tenant) { tn.EventTypes[0].Weight = 0 }},
		{"bad probability", func(tn *Tenant) { tn.BusinessHoursProbability = 1.5 }},
		{"bad hour", func(tn *Tenant) { tn.OffBusinessHours = []int{24} }},
		{"duplicate type", func(tn *Tenant) { tn.EventTypes[1].Type = "LOGIN" }},
		{"malformed type", func(tn *Tenant) { tn.EventTypes[1].Type = "order" }},
		{"unknown complaint type", func(tn *Tenant) { tn.ComplaintEventType = "REFUND" }},
		{"unknown off-hours type", func(tn *Tenant) { tn.OffHoursEventTypes = []string{"DELETE"} }},
		{"missing filename", func(tn *Tenant) { tn.Filename = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tn := Food()
			tt.mutate(&tn)
			if err := tn.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

func TestTenantHelpers(t *testing.T) {
	it := IT()
	if !it.IsPrivileged(schema.RoleAdmin) {
		t.Error("admin should be privileged for IT")
	}
	if it.IsPrivileged(schema.RoleEmployee) {
		t.Error("employee should not be privileged for IT")
	}
	if !it.HasEventType("ADMIN_ACTION") || it.HasEventType("ORDER") {
		t.Error("HasEventType() mismatch for IT vocabulary")
	}

	food := Food()
	food.OffHoursEventTypes = nil
	if got := food.OffHoursTypes(); len(got) != len(food.EventTypes) {
		t.Errorf("OffHoursTypes() = %v, want full vocabulary", got)
	}
	if _, err := food.Sampler(); err != nil {
		t.Errorf("Sampler() error = %v", err)
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tenants.yaml")
	data := `tenants:
  - id: 3
    key: retail
    name: Retail
    users: 10
    events_per_user: 20
    event_types:
      - {type: LOGIN, weight: 0.5}
      - {type: DELETE, weight: 0.5}
    business_hours_probability: 0.75
    filename: retail.csv
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	tn, err := c.ByKey("retail")
	if err != nil {
		t.Fatalf("ByKey() error = %v", err)
	}
	if tn.Users != 10 || len(tn.EventTypes) != 2 {
		t.Errorf("loaded tenant = %+v", tn)
	}
}

func TestLoadCatalogDuplicateID(t *testing.T) {
	c := DefaultCatalog()
	c.Tenants[1].ID = 1
	if err := c.Validate(); err == nil {
		t.Error("Validate() expected duplicate id error")
	}
}

func TestCheckEvent(t *testing.T) {
	c := DefaultCatalog()
	e := &schema.Event{
		Timestamp: time.Now().UTC(),
		TenantID:  1,
		EventType: "ORDER",
	}
	if err := c.CheckEvent(e); err != nil {
		t.Errorf("CheckEvent() error = %v", err)
	}

	e.EventType = "UPLOAD"
	if err := c.CheckEvent(e); err == nil {
		t.Error("CheckEvent() should reject a foreign event type")
	}

	e.TenantID = 7
	if err := c.CheckEvent(e); !errors.Is(err, ErrUnknownTenant) {
		t.Errorf("CheckEvent() error = %v, want ErrUnknownTenant", err)
	}
}

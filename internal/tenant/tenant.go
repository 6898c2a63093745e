// Package tenant holds the per-organization generation profiles: user counts,
// event vocabularies and the event types used by tenant-specific anomalies.
package tenant

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"vaultsphere/internal/sampling"
	"vaultsphere/internal/schema"
)

// Tenant describes one isolated organization.
type Tenant struct {
	ID            int           `yaml:"id" validate:"min=1,max=99"`
	Key           string        `yaml:"key" validate:"required,alphanum,lowercase"`
	Name          string        `yaml:"name" validate:"required"`
	Users         int           `yaml:"users" validate:"min=1,max=999"`
	EventsPerUser int           `yaml:"events_per_user" validate:"min=1"`
	EventTypes    []EventWeight `yaml:"event_types" validate:"required,min=1,dive"`

	// Probability that a baseline event lands in business hours [9,17].
	BusinessHoursProbability float64 `yaml:"business_hours_probability" validate:"gte=0,lte=1"`
	// Hours used for the remaining baseline events. Empty keeps the drawn hour.
	OffBusinessHours []int `yaml:"off_business_hours" validate:"dive,min=0,max=23"`

	// Event types used by off-hours injection. Empty means the full vocabulary.
	OffHoursEventTypes []string `yaml:"off_hours_event_types"`
	// Complaint-like type; enables the excessive-complaint rule when set.
	ComplaintEventType string `yaml:"complaint_event_type"`
	// Admin-restricted type; enables the unauthorized-admin rule when set.
	AdminEventType  string        `yaml:"admin_event_type"`
	PrivilegedRoles []schema.Role `yaml:"privileged_roles"`

	Filename string `yaml:"filename" validate:"required"`
}

// EventWeight is one row of a tenant's event-type distribution.
type EventWeight struct {
	Type   string  `yaml:"type" validate:"required"`
	Weight float64 `yaml:"weight" validate:"gt=0"`
}

// Food returns the built-in food-delivery tenant.
func Food() Tenant {
	return Tenant{
		ID:            1,
		Key:           "food",
		Name:          "Food Delivery",
		Users:         40,
		EventsPerUser: 150,
		EventTypes: []EventWeight{
			{"LOGIN", 0.30},
			{"ORDER", 0.25},
			{"PAYMENT", 0.20},
			{"UPDATE", 0.15},
			{"COMPLAINT", 0.10},
		},
		BusinessHoursProbability: 0.8,
		OffBusinessHours:         []int{7, 8, 18, 19, 20, 21, 22},
		OffHoursEventTypes:       []string{"ORDER", "PAYMENT", "UPDATE"},
		ComplaintEventType:       schema.EventComplaint,
		Filename:                 "vaultsphere_food.csv",
	}
}

// IT returns the built-in IT-services tenant.
func IT() Tenant {
	return Tenant{
		ID:            2,
		Key:           "it",
		Name:          "IT Services",
		Users:         50,
		EventsPerUser: 200,
		EventTypes: []EventWeight{
			{"LOGIN", 0.25},
			{"UPLOAD", 0.25},
			{"DOWNLOAD", 0.25},
			{"UPDATE", 0.15},
			{"ADMIN_ACTION", 0.10},
		},
		BusinessHoursProbability: 0.8,
		OffBusinessHours:         []int{7, 8, 18, 19, 20, 21, 22},
		OffHoursEventTypes:       []string{"UPLOAD", "DOWNLOAD", "UPDATE", "ADMIN_ACTION"},
		AdminEventType:           schema.EventAdminAction,
		PrivilegedRoles:          []schema.Role{schema.RoleAdmin},
		Filename:                 "vaultsphere_it.csv",
	}
}

// Vocabulary returns the tenant's event types in table order.
func (t *Tenant) Vocabulary() []string {
	out := make([]string, len(t.EventTypes))
	for i, ew := range t.EventTypes {
		out[i] = ew.Type
	}
	return out
}

// HasEventType reports whether eventType belongs to the tenant vocabulary.
func (t *Tenant) HasEventType(eventType string) bool {
	for _, ew := range t.EventTypes {
		if ew.Type == eventType {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether role may perform the tenant's admin action.
func (t *Tenant) IsPrivileged(role schema.Role) bool {
	return slices.Contains(t.PrivilegedRoles, role)
}

// OffHoursTypes returns the event types used for off-hours injection.
func (t *Tenant) OffHoursTypes() []string {
	if len(t.OffHoursEventTypes) == 0 {
		return t.Vocabulary()
	}
	return t.OffHoursEventTypes
}

// Sampler builds the weighted event-type sampler for this tenant.
func (t *Tenant) Sampler() (*sampling.Weighted[string], error) {
	entries := make([]sampling.Entry[string], len(t.EventTypes))
	for i, ew := range t.EventTypes {
		entries[i] = sampling.Entry[string]{Value: ew.Type, Weight: ew.Weight}
	}
	w, err := sampling.NewWeighted(entries)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", t.Key, err)
	}
	return w, nil
}

var validate = validator.New()

// Validate checks field constraints and that every referenced event type is
// part of the tenant vocabulary.
func (t *Tenant) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("tenant %q: %w", t.Key, err)
	}
	seen := make(map[string]bool, len(t.EventTypes))
	for _, ew := range t.EventTypes {
		if !schema.ValidateEventType(ew.Type) {
			return fmt.Errorf("tenant %q: malformed event type %q", t.Key, ew.Type)
		}
		if seen[ew.Type] {
			return fmt.Errorf("tenant %q: duplicate event type %q", t.Key, ew.Type)
		}
		seen[ew.Type] = true
	}
	for _, et := range t.OffHoursEventTypes {
		if !seen[et] {
			return fmt.Errorf("tenant %q: off-hours type %q not in vocabulary", t.Key, et)
		}
	}
	if t.ComplaintEventType != "" && !seen[t.ComplaintEventType] {
		return fmt.Errorf("tenant %q: complaint type %q not in vocabulary", t.Key, t.ComplaintEventType)
	}
	if t.AdminEventType != "" && !seen[t.AdminEventType] {
		return fmt.Errorf("tenant %q: admin type %q not in vocabulary", t.Key, t.AdminEventType)
	}
	return nil
}

// ErrUnknownTenant is returned when a tenant lookup fails.
var ErrUnknownTenant = errors.New("tenant: unknown tenant")

// Catalog is the set of configured tenants.
type Catalog struct {
	Tenants []Tenant `yaml:"tenants"`
}

// DefaultCatalog returns the built-in Food and IT tenants.
func DefaultCatalog() *Catalog {
	return &Catalog{Tenants: []Tenant{Food(), IT()}}
}

// LoadCatalog reads a tenant table from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants file: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse tenants file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every tenant and that IDs and keys are unique.
func (c *Catalog) Validate() error {
	if len(c.Tenants) == 0 {
		return errors.New("tenant: catalog is empty")
	}
	ids := make(map[int]bool)
	keys := make(map[string]bool)
	for i := range c.Tenants {
		t := &c.Tenants[i]
		if err := t.Validate(); err != nil {
			return err
		}
		if ids[t.ID] {
			return fmt.Errorf("tenant: duplicate id %d", t.ID)
		}
		if keys[t.Key] {
			return fmt.Errorf("tenant: duplicate key %q", t.Key)
		}
		ids[t.ID] = true
		keys[t.Key] = true
	}
	return nil
}

// ByID returns the tenant with the given ID.
func (c *Catalog) ByID(id int) (*Tenant, error) {
	for i := range c.Tenants {
		if c.Tenants[i].ID == id {
			return &c.Tenants[i], nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrUnknownTenant, id)
}

// ByKey returns the tenant with the given key.
func (c *Catalog) ByKey(key string) (*Tenant, error) {
	for i := range c.Tenants {
		if c.Tenants[i].Key == key {
			return &c.Tenants[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTenant, key)
}

// Select returns the tenants named by keys, in catalog order. An empty key
// list selects every tenant.
func (c *Catalog) Select(keys []string) ([]*Tenant, error) {
	if len(keys) == 0 {
		out := make([]*Tenant, len(c.Tenants))
		for i := range c.Tenants {
			out[i] = &c.Tenants[i]
		}
		return out, nil
	}
	var out []*Tenant
	for _, k := range keys {
		t, err := c.ByKey(k)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CheckEvent verifies that an event belongs to a configured tenant and uses
// that tenant's vocabulary.
func (c *Catalog) CheckEvent(e *schema.Event) error {
	t, err := c.ByID(e.TenantID)
	if err != nil {
		return err
	}
	if !t.HasEventType(e.EventType) {
		return fmt.Errorf("tenant %q: event type %q not in vocabulary", t.Key, e.EventType)
	}
	return nil
}

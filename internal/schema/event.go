// Package schema defines the canonical user-activity event record.
// Generated datasets and the detectors both work on this structure.
package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is a single user-activity record belonging to one tenant and one user.
type Event struct {
	Timestamp       time.Time `json:"timestamp" validate:"required"`
	TenantID        int       `json:"tenant_id" validate:"required,min=1,max=99"`
	UserID          string    `json:"user_id" validate:"required,user_id"`
	ResourceID      string    `json:"resource_id" validate:"required,resource_id"`
	EventType       string    `json:"event_type" validate:"required,event_type"`
	Status          Status    `json:"status" validate:"required,oneof=SUCCESS FAILURE"`
	IPAddress       string    `json:"ip_address" validate:"required,ipv4"`
	AnomalyInjected bool      `json:"anomaly_injected"`
}

// Hour returns the hour of day of the event in UTC.
func (e *Event) Hour() int {
	return e.Timestamp.UTC().Hour()
}

// IsFailedLogin reports whether the event is a LOGIN with a FAILURE outcome.
func (e *Event) IsFailedLogin() bool {
	return e.EventType == EventLogin && e.Status == StatusFailure
}

// Status is the two-valued outcome of an event.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// IsValid checks if the status is a valid value.
func (s Status) IsValid() bool {
	switch s {
	case StatusSuccess, StatusFailure:
		return true
	}
	return false
}

// Role is the organizational role assigned to a synthetic user.
type Role string

const (
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
	RoleGuest    Role = "guest"
)

// Common event types shared by the default tenants.
const (
	EventLogin       = "LOGIN"
	EventUpdate      = "UPDATE"
	EventDelete      = "DELETE"
	EventComplaint   = "COMPLAINT"
	EventAdminAction = "ADMIN_ACTION"
)

// Resource pool bounds. Resource identifiers are RES_<n> with n in [MinResource, MaxResource].
const (
	ResourcePrefix = "RES_"
	MinResource    = 1
	MaxResource    = 1000
)

// FormatUserID encodes a tenant and ordinal as T<tenant>U<ordinal>, e.g. T01U007.
func FormatUserID(tenantID, ordinal int) string {
	return fmt.Sprintf("T%02dU%03d", tenantID, ordinal)
}

// ParseUserID decodes a user identifier produced by FormatUserID.
func ParseUserID(id string) (tenantID, ordinal int, err error) {
	if len(id) < 4 || id[0] != 'T' {
		return 0, 0, fmt.Errorf("user id %q: missing tenant prefix", id)
	}
	u := strings.IndexByte(id, 'U')
	if u < 2 || u == len(id)-1 {
		return 0, 0, fmt.Errorf("user id %q: missing ordinal", id)
	}
	tenantID, err = strconv.Atoi(id[1:u])
	if err != nil || tenantID < 0 {
		return 0, 0, fmt.Errorf("user id %q: invalid tenant", id)
	}
	ordinal, err = strconv.Atoi(id[u+1:])
	if err != nil || ordinal < 0 {
		return 0, 0, fmt.Errorf("user id %q: invalid ordinal", id)
	}
	return tenantID, ordinal, nil
}

// FormatResourceID formats a resource number as RES_<n>.
func FormatResourceID(n int) string {
	return ResourcePrefix + strconv.Itoa(n)
}

// ParseResourceID returns the numeric suffix of a RES_<n> identifier.
// The suffix must lie in [MinResource, MaxResource].
func ParseResourceID(id string) (int, error) {
	if !strings.HasPrefix(id, ResourcePrefix) {
		return 0, fmt.Errorf("resource id %q: missing %s prefix", id, ResourcePrefix)
	}
	n, err := strconv.Atoi(id[len(ResourcePrefix):])
	if err != nil {
		return 0, fmt.Errorf("resource id %q: %w", id, err)
	}
	if n < MinResource || n > MaxResource {
		return 0, fmt.Errorf("resource id %q: suffix out of range [%d,%d]", id, MinResource, MaxResource)
	}
	return n, nil
}

package schema

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// eventTypePattern: upper-case tokens separated by underscores, e.g. ADMIN_ACTION.
var eventTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*(_[A-Z0-9]+)*$`)

var userIDPattern = regexp.MustCompile(`^T\d{2,}U\d{3,}$`)

// Validator checks events against the canonical record layout.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the custom record tags registered.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return eventTypePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("user_id", func(fl validator.FieldLevel) bool {
		return userIDPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("resource_id", func(fl validator.FieldLevel) bool {
		_, err := ParseResourceID(fl.Field().String())
		return err == nil
	})

	// A user always belongs to the tenant encoded in its identifier.
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		e := sl.Current().Interface().(Event)
		tenantID, _, err := ParseUserID(e.UserID)
		if err != nil {
			return
		}
		if tenantID != e.TenantID {
			sl.ReportError(e.UserID, "UserID", "UserID", "tenant_match", fmt.Sprint(e.TenantID))
		}
	}, Event{})

	return &Validator{validate: v}
}

// Validate validates an event. Returns an error if validation fails.
func (v *Validator) Validate(event *Event) error {
	if event.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if err := v.validate.Struct(event); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateEventType checks if an event type token is well formed.
func ValidateEventType(eventType string) bool {
	return eventTypePattern.MatchString(eventType)
}

package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRule is returned when a rule violates its constraints.
var ErrInvalidRule = errors.New("invalid rule")

// Rule binds a device to the policy used to pick its cheapest hours.
type Rule struct {
	ID                 string     `json:"id" yaml:"id"`
	DeviceID           string     `json:"device_id" yaml:"device_id"`
	Name               string     `json:"name" yaml:"name"`
	MaxHours           int        `json:"max_hours" yaml:"max_hours"`
	MinContinuousHours int        `json:"min_continuous_hours" yaml:"min_continuous_hours"`
	WindowStart        *int       `json:"time_window_start,omitempty" yaml:"time_window_start"`
	WindowEnd          *int       `json:"time_window_end,omitempty" yaml:"time_window_end"`
	DaysOfWeek         DaysOfWeek `json:"days_of_week" yaml:"days_of_week"`
	Enabled            bool       `json:"is_enabled" yaml:"is_enabled"`
	CreatedAt          time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" yaml:"updated_at"`
}

// SetDefaults fills the optional fields left at their zero value.
func (r *Rule) SetDefaults() {
	if r.MinContinuousHours == 0 {
		r.MinContinuousHours = 1
	}
	if r.DaysOfWeek == 0 {
		r.DaysOfWeek = AllDays
	}
}

// Validate checks 1 <= min_continuous_hours <= max_hours <= 24 and the
// window bounds.
func (r Rule) Validate() error {
	if r.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidRule)
	}
	if r.MaxHours < 1 || r.MaxHours > HoursPerDay {
		return fmt.Errorf("%w: max_hours must be between 1 and 24, got %d", ErrInvalidRule, r.MaxHours)
	}
	if r.MinContinuousHours < 1 || r.MinContinuousHours > r.MaxHours {
		return fmt.Errorf("%w: min_continuous_hours must be between 1 and max_hours (%d), got %d",
			ErrInvalidRule, r.MaxHours, r.MinContinuousHours)
	}
	if err := validHour("time_window_start", r.WindowStart); err != nil {
		return err
	}
	if err := validHour("time_window_end", r.WindowEnd); err != nil {
		return err
	}
	if !r.DaysOfWeek.Valid() {
		return fmt.Errorf("%w: days_of_week must be between 1 and 127, got %d", ErrInvalidRule, r.DaysOfWeek)
	}
	return nil
}

func validHour(field string, h *int) error {
	if h == nil {
		return nil
	}
	if *h < 0 || *h >= HoursPerDay {
		return fmt.Errorf("%w: %s must be between 0 and 23, got %d", ErrInvalidRule, field, *h)
	}
	return nil
}

// AppliesOn reports whether the rule is enabled and its weekdays include date.
func (r Rule) AppliesOn(date time.Time) bool {
	return r.Enabled && r.DaysOfWeek.IncludesDate(date)
}

// Hour is a helper for optional window bounds.
func Hour(h int) *int { return &h }

// RulePatch carries the rule fields a client sent. Nil fields keep the
// value they are applied over. The read-only fields are accepted so a rule
// read from the API can be sent back as is, and are ignored.
type RulePatch struct {
	DeviceID           *string     `json:"device_id,omitempty" yaml:"device_id"`
	Name               *string     `json:"name,omitempty" yaml:"name"`
	MaxHours           *int        `json:"max_hours,omitempty" yaml:"max_hours"`
	MinContinuousHours *int        `json:"min_continuous_hours,omitempty" yaml:"min_continuous_hours"`
	WindowStart        *int        `json:"time_window_start,omitempty" yaml:"time_window_start"`
	WindowEnd          *int        `json:"time_window_end,omitempty" yaml:"time_window_end"`
	DaysOfWeek         *DaysOfWeek `json:"days_of_week,omitempty" yaml:"days_of_week"`
	Enabled            *bool       `json:"is_enabled,omitempty" yaml:"is_enabled"`

	ID        *string    `json:"id,omitempty" yaml:"id"`
	CreatedAt *time.Time `json:"created_at,omitempty" yaml:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" yaml:"updated_at"`
}

// Apply copies the set fields of p onto r.
func (p RulePatch) Apply(r *Rule) {
	if p.DeviceID != nil {
		r.DeviceID = *p.DeviceID
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.MaxHours != nil {
		r.MaxHours = *p.MaxHours
	}
	if p.MinContinuousHours != nil {
		r.MinContinuousHours = *p.MinContinuousHours
	}
	if p.WindowStart != nil {
		r.WindowStart = Hour(*p.WindowStart)
	}
	if p.WindowEnd != nil {
		r.WindowEnd = Hour(*p.WindowEnd)
	}
	if p.DaysOfWeek != nil {
		r.DaysOfWeek = *p.DaysOfWeek
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
}

// NewRule builds a rule from p. New rules are enabled unless p says otherwise.
func NewRule(p RulePatch) Rule {
	r := Rule{Enabled: true}
	p.Apply(&r)
	return r
}

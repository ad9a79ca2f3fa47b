package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ActionStatus is the lifecycle state of a ScheduledAction.
type ActionStatus string

const (
	StatusPending   ActionStatus = "pending"
	StatusExecuted  ActionStatus = "executed"
	StatusFailed    ActionStatus = "failed"
	StatusCancelled ActionStatus = "cancelled"
	StatusMissed    ActionStatus = "missed"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (ActionStatus, error) {
	switch st := ActionStatus(s); st {
	case StatusPending, StatusExecuted, StatusFailed, StatusCancelled, StatusMissed:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether the scheduler never revisits the status.
func (s ActionStatus) Terminal() bool {
	return s != StatusPending
}

// Reportable reports whether an external executor may set the status.
func (s ActionStatus) Reportable() bool {
	return s == StatusExecuted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether an entry in status s may move to next.
// Pending moves anywhere. A missed entry still accepts a late executed or
// failed report. Other terminal states are final.
func (s ActionStatus) CanTransitionTo(next ActionStatus) bool {
	switch s {
	case StatusPending:
		return true
	case StatusMissed:
		return next == StatusExecuted || next == StatusFailed
	}
	return s == next
}

// ScheduledAction is one hour-long activation of a rule's device on a date.
type ScheduledAction struct {
	ID         string       `json:"id"`
	RuleID     string       `json:"rule_id"`
	Date       time.Time    `json:"scheduled_date"`
	StartHour  int          `json:"start_hour"`
	EndHour    int          `json:"end_hour"`
	Price      *float64     `json:"price_per_kwh,omitempty"`
	Status     ActionStatus `json:"status"`
	ExecutedAt *time.Time   `json:"executed_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// EndHourOf returns the stored end hour of an action starting at start.
func EndHourOf(start int) int {
	return (start + 1) % HoursPerDay
}

// Wraps reports whether the action ends on the following calendar day.
func (a ScheduledAction) Wraps() bool {
	return a.EndHour < a.StartHour
}

// StartsAt returns the start instant of the action in loc.
func (a ScheduledAction) StartsAt(loc *time.Location) time.Time {
	return HourStart(a.Date, a.StartHour, loc)
}

// EndsAt returns the exclusive end instant; hour 23 ends at the next midnight.
func (a ScheduledAction) EndsAt(loc *time.Location) time.Time {
	return a.StartsAt(loc).Add(time.Hour)
}

// Elapsed reports whether the action window closed before now.
func (a ScheduledAction) Elapsed(now time.Time) bool {
	return !a.EndsAt(now.Location()).After(now)
}

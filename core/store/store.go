// Package store declares the persistence contract for rules and scheduled
// actions. Implementations live in infra/store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/cheaphours/core/model"
)

var (
	// ErrNotFound is returned when a rule or action does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a rule id is already taken.
	ErrConflict = errors.New("conflict")
)

// RuleFilter narrows ListRules.
type RuleFilter struct {
	DeviceID    string
	EnabledOnly bool
}

// ActionFilter narrows ListActions. Zero values match everything.
type ActionFilter struct {
	Date   time.Time
	RuleID string
	Status model.ActionStatus
	// DeviceID matches actions of the device's stored rules.
	DeviceID string
	// From matches actions dated on or after it.
	From time.Time
}

// RuleStore persists rules.
type RuleStore interface {
	CreateRule(ctx context.Context, r model.Rule) error
	GetRule(ctx context.Context, id string) (model.Rule, error)
	ListRules(ctx context.Context, f RuleFilter) ([]model.Rule, error)
	UpdateRule(ctx context.Context, r model.Rule) error
	DeleteRule(ctx context.Context, id string) error
}

// ActionStore persists scheduled actions. fromHour is the first start hour
// of date considered in the future; 24 or more matches nothing.
type ActionStore interface {
	GetAction(ctx context.Context, id string) (model.ScheduledAction, error)
	ListActions(ctx context.Context, f ActionFilter) ([]model.ScheduledAction, error)
	CountActions(ctx context.Context, date time.Time) (int, error)

	// ReplacePending deletes the rule's pending actions of date starting at
	// or after fromHour and inserts actions, ignoring key conflicts, in one
	// transaction.
	ReplacePending(ctx context.Context, ruleID string, date time.Time, fromHour int, actions []model.ScheduledAction) (deleted, created int, err error)
	// PurgePending deletes the rule's pending actions of date starting at or
	// after fromHour.
	PurgePending(ctx context.Context, ruleID string, date time.Time, fromHour int) (int, error)
	// CancelPending marks cancelled the rule's pending actions dated after
	// date, or on date starting at or after fromHour.
	CancelPending(ctx context.Context, ruleID string, date time.Time, fromHour int) (int, error)
	// MarkMissed marks missed the pending actions of today whose window
	// closed by currentHour without wrapping, and every pending action dated
	// before today.
	MarkMissed(ctx context.Context, today time.Time, currentHour int) (int, error)
	// UpdateStatus moves an action from status from to status to, failing
	// with model.ErrInvalidTransition when its status is no longer from.
	// executedAt is stored when non-nil.
	UpdateStatus(ctx context.Context, id string, from, to model.ActionStatus, executedAt *time.Time) error
}

// Store is the full persistence contract.
type Store interface {
	RuleStore
	ActionStore
	Close() error
}

package events

import "time"

// Event is any value published on the scheduling bus.
type Event interface {
	Kind() string
}

// Trigger names what started a regeneration.
type Trigger string

const (
	TriggerDaily    Trigger = "daily"
	TriggerRetry    Trigger = "retry"
	TriggerBackfill Trigger = "backfill"
	TriggerRule     Trigger = "rule"
	TriggerManual   Trigger = "manual"
)

// RegenerationEvent is published after each regeneration attempt.
type RegenerationEvent struct {
	RuleID    string
	DeviceID  string
	Date      time.Time
	Trigger   Trigger
	Outcome   string
	Hours     []int
	TotalCost float64
	Created   int
	Deleted   int
	Err       error
	Duration  time.Duration
}

func (RegenerationEvent) Kind() string { return "regeneration" }

// CancelEvent is published when a disabled or deleted rule had its future
// pending actions cancelled.
type CancelEvent struct {
	RuleID    string
	DeviceID  string
	Cancelled int
}

func (CancelEvent) Kind() string { return "cancel" }

// SweepEvent is published after each expiry sweep.
type SweepEvent struct {
	Time   time.Time
	Missed int
	Err    error
}

func (SweepEvent) Kind() string { return "sweep" }

// PriceFetchEvent is published for every price feed request.
type PriceFetchEvent struct {
	Date    time.Time
	Hours   int
	Cached  bool
	Err     error
	Latency time.Duration
}

func (PriceFetchEvent) Kind() string { return "price_fetch" }

// StatusEvent is published when an action status is reported.
type StatusEvent struct {
	ActionID string
	RuleID   string
	Status   string
	Source   string
}

func (StatusEvent) Kind() string { return "status" }

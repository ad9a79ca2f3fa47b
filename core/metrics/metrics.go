package metrics

import "time"

// RegenerationRecord describes one regeneration attempt for a rule and date.
type RegenerationRecord struct {
	RuleID    string
	DeviceID  string
	Date      string
	Trigger   string
	Outcome   string
	Hours     int
	TotalCost float64
	Created   int
	Deleted   int
	Failed    bool
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records regeneration results. Sinks may also implement the
// optional recorder interfaces below.
type MetricsSink interface {
	RecordRegeneration(rec RegenerationRecord) error
}

// SweepRecord is the result of one expiry sweep.
type SweepRecord struct {
	Missed int
	Failed bool
	Time   time.Time
}

// SweepRecorder records expiry sweeps.
type SweepRecorder interface {
	RecordSweep(rec SweepRecord) error
}

// PriceFetchRecord describes one price lookup.
type PriceFetchRecord struct {
	Date    string
	Hours   int
	Cached  bool
	Failed  bool
	Latency time.Duration
	Time    time.Time
}

// PriceFetchRecorder records price lookups.
type PriceFetchRecorder interface {
	RecordPriceFetch(rec PriceFetchRecord) error
}

// StatusRecord is a reported action status change.
type StatusRecord struct {
	RuleID string
	Status string
	Source string
	Time   time.Time
}

// StatusRecorder records status changes.
type StatusRecorder interface {
	RecordStatus(rec StatusRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRegeneration(RegenerationRecord) error { return nil }
func (NopSink) RecordSweep(SweepRecord) error               { return nil }
func (NopSink) RecordPriceFetch(PriceFetchRecord) error     { return nil }
func (NopSink) RecordStatus(StatusRecord) error             { return nil }

package schedule

import "time"

// Clock returns the current time in the scheduling location.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location, or local time when nil.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

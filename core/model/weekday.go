package model

import "time"

// Weekday enumerates the days of the week starting on Monday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (w Weekday) String() string {
	if w < Monday || w > Sunday {
		return "unknown"
	}
	return weekdayNames[w]
}

// WeekdayOf maps a date to its Weekday.
func WeekdayOf(t time.Time) Weekday {
	// time.Weekday counts from Sunday=0.
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// Bit returns the mask bit of the weekday.
func (w Weekday) Bit() DaysOfWeek {
	return DaysOfWeek(1) << uint(w)
}

// DaysOfWeek is a 7-bit mask, Monday=1 through Sunday=64.
type DaysOfWeek uint8

const (
	AllDays  DaysOfWeek = 127
	Weekdays DaysOfWeek = 31
	Weekend  DaysOfWeek = 96
)

// Includes reports whether the weekday bit is set.
func (d DaysOfWeek) Includes(w Weekday) bool {
	return d&w.Bit() != 0
}

// IncludesDate reports whether the mask covers the weekday of t.
func (d DaysOfWeek) IncludesDate(t time.Time) bool {
	return d.Includes(WeekdayOf(t))
}

// Days lists the weekdays set in the mask.
func (d DaysOfWeek) Days() []Weekday {
	var out []Weekday
	for w := Monday; w <= Sunday; w++ {
		if d.Includes(w) {
			out = append(out, w)
		}
	}
	return out
}

// Valid reports whether at least one day is set and no bit above Sunday is.
func (d DaysOfWeek) Valid() bool {
	return d != 0 && d <= AllDays
}

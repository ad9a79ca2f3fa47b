package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestWeekdayOf(t *testing.T) {
	// 2024-01-01 was a Monday.
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		got := WeekdayOf(base.AddDate(0, 0, i))
		if got != Weekday(i) {
			t.Fatalf("day %d: expected %v got %v", i, Weekday(i), got)
		}
	}
}

func TestDaysOfWeekMasks(t *testing.T) {
	saturday := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	tuesday := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		mask DaysOfWeek
		date time.Time
		want bool
	}{
		{"all saturday", AllDays, saturday, true},
		{"weekdays saturday", Weekdays, saturday, false},
		{"weekdays tuesday", Weekdays, tuesday, true},
		{"weekend saturday", Weekend, saturday, true},
		{"weekend tuesday", Weekend, tuesday, false},
		{"monday only tuesday", Monday.Bit(), tuesday, false},
	}
	for _, c := range cases {
		if got := c.mask.IncludesDate(c.date); got != c.want {
			t.Errorf("%s: expected %v got %v", c.name, c.want, got)
		}
	}
	if Sunday.Bit() != 64 || Monday.Bit() != 1 {
		t.Fatalf("unexpected bit layout")
	}
	if len(Weekend.Days()) != 2 {
		t.Fatalf("expected two weekend days")
	}
}

func TestRuleValidate(t *testing.T) {
	valid := Rule{DeviceID: "dev", MaxHours: 4, MinContinuousHours: 2, DaysOfWeek: AllDays}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := map[string]func(r *Rule){
		"no device":       func(r *Rule) { r.DeviceID = "" },
		"zero max":        func(r *Rule) { r.MaxHours = 0 },
		"max over 24":     func(r *Rule) { r.MaxHours = 25 },
		"min over max":    func(r *Rule) { r.MinContinuousHours = 5 },
		"min zero":        func(r *Rule) { r.MinContinuousHours = 0 },
		"window start 24": func(r *Rule) { r.WindowStart = Hour(24) },
		"window end -1":   func(r *Rule) { r.WindowEnd = Hour(-1) },
		"no days":         func(r *Rule) { r.DaysOfWeek = 0 },
		"days overflow":   func(r *Rule) { r.DaysOfWeek = 128 },
	}
	for name, mutate := range cases {
		r := valid
		mutate(&r)
		if err := r.Validate(); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("%s: expected ErrInvalidRule got %v", name, err)
		}
	}
}

func TestRuleSetDefaults(t *testing.T) {
	r := Rule{DeviceID: "dev", MaxHours: 3}
	r.SetDefaults()
	if r.MinContinuousHours != 1 || r.DaysOfWeek != AllDays {
		t.Fatalf("defaults not applied: %+v", r)
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ActionStatus
		want     bool
	}{
		{StatusPending, StatusExecuted, true},
		{StatusPending, StatusMissed, true},
		{StatusMissed, StatusExecuted, true},
		{StatusMissed, StatusCancelled, false},
		{StatusExecuted, StatusFailed, false},
		{StatusCancelled, StatusPending, false},
		{StatusExecuted, StatusExecuted, true},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("%s -> %s: expected %v got %v", c.from, c.to, c.want, got)
		}
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestActionEndOfDay(t *testing.T) {
	loc := time.UTC
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	a := ScheduledAction{Date: date, StartHour: 23, EndHour: EndHourOf(23)}
	if a.EndHour != 0 || !a.Wraps() {
		t.Fatalf("expected wrapping end hour 0, got %d", a.EndHour)
	}
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, loc)
	if !a.EndsAt(loc).Equal(want) {
		t.Fatalf("expected end %v got %v", want, a.EndsAt(loc))
	}
	if a.Elapsed(time.Date(2024, 3, 10, 23, 59, 0, 0, loc)) {
		t.Fatalf("hour 23 must still be open at 23:59")
	}
	if !a.Elapsed(want) {
		t.Fatalf("hour 23 must be elapsed at midnight")
	}
}

func TestDailyPricesHelpers(t *testing.T) {
	d := DailyPrices{Prices: []HourlyPrice{{Hour: 2, Price: 0.3}, {Hour: 1, Price: 0.1}}}
	if d.Complete() {
		t.Fatalf("two hours is not complete")
	}
	s := d.Sorted()
	if s[0].Hour != 1 || d.Prices[0].Hour != 2 {
		t.Fatalf("sorted copy expected, got %+v", s)
	}
	if p, ok := d.PriceAt(2); !ok || p != 0.3 {
		t.Fatalf("unexpected price %v %v", p, ok)
	}
}

func TestNewRuleDefaultsToEnabled(t *testing.T) {
	var p RulePatch
	if err := json.Unmarshal([]byte(`{"device_id":"boiler","max_hours":3}`), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	r := NewRule(p)
	if !r.Enabled || r.DeviceID != "boiler" || r.MaxHours != 3 {
		t.Fatalf("unexpected rule: %+v", r)
	}

	off := false
	if NewRule(RulePatch{Enabled: &off}).Enabled {
		t.Fatalf("explicit is_enabled=false ignored")
	}
}

func TestRulePatchKeepsOmittedFields(t *testing.T) {
	r := Rule{ID: "r1", DeviceID: "boiler", Name: "night", MaxHours: 4, MinContinuousHours: 2,
		WindowStart: Hour(22), DaysOfWeek: Weekend, Enabled: true}
	var p RulePatch
	if err := json.Unmarshal([]byte(`{"name":"renamed","max_hours":3,"id":"other"}`), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	p.Apply(&r)
	if r.Name != "renamed" || r.MaxHours != 3 {
		t.Fatalf("patch not applied: %+v", r)
	}
	if r.ID != "r1" || r.DeviceID != "boiler" || r.MinContinuousHours != 2 || !r.Enabled ||
		r.DaysOfWeek != Weekend || r.WindowStart == nil || *r.WindowStart != 22 {
		t.Fatalf("omitted fields changed: %+v", r)
	}
}

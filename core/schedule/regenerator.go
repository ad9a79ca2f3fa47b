package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/cheaphours/core/events"
	"github.com/kilianp07/cheaphours/core/logger"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/selection"
	"github.com/kilianp07/cheaphours/core/store"
	"github.com/kilianp07/cheaphours/internal/eventbus"
)

const (
	MsgHoursPassed       = "optimal hours already passed, nothing to do today"
	MsgPricesUnavailable = "prices not yet available, will retry"
	MsgNoOptimalHours    = "no optimal hours found"
	MsgNothingNew        = "no new scheduled actions created"
)

// Outcome summarises one regeneration.
type Outcome struct {
	RuleID    string    `json:"rule_id"`
	Date      string    `json:"date"`
	Hours     []int     `json:"hours"`
	TotalCost float64   `json:"total_cost"`
	Created   int       `json:"created"`
	Deleted   int       `json:"deleted"`
	Skipped   bool      `json:"skipped,omitempty"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Option configures a Regenerator.
type Option func(*Regenerator)

// WithClock overrides the clock used to decide which hours are in the future.
func WithClock(c Clock) Option { return func(r *Regenerator) { r.clock = c } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(r *Regenerator) { r.log = l } }

// WithPublisher publishes a RegenerationEvent after each run.
func WithPublisher(p eventbus.Publisher[events.Event]) Option {
	return func(r *Regenerator) { r.pub = p }
}

// Regenerator recomputes the scheduled actions of a rule for a date.
type Regenerator struct {
	actions store.ActionStore
	prices  PriceSource
	clock   Clock
	log     logger.Logger
	pub     eventbus.Publisher[events.Event]
}

// NewRegenerator builds a Regenerator over an action store and a price source.
func NewRegenerator(actions store.ActionStore, prices PriceSource, opts ...Option) *Regenerator {
	r := &Regenerator{
		actions: actions,
		prices:  prices,
		clock:   SystemClock{},
		log:     logger.Nop{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Now returns the regenerator's current time.
func (g *Regenerator) Now() time.Time { return g.clock.Now() }

// firstFutureHour returns the first hour of date that starts after now; 24
// when the whole date is in the past.
func firstFutureHour(date, now time.Time) int {
	d, today := model.DateKey(date), model.DateKey(now)
	switch {
	case d < today:
		return model.HoursPerDay
	case d == today:
		return now.Hour() + 1
	}
	return 0
}

// Regenerate recomputes rule's actions for date. A failed price fetch still
// purges the stale future actions and returns an error wrapping
// ErrPricesUnavailable together with an informational outcome. Store errors
// are returned as is.
func (g *Regenerator) Regenerate(ctx context.Context, rule model.Rule, date time.Time, trigger events.Trigger) (Outcome, error) {
	start := time.Now()
	now := g.clock.Now()
	date = model.DateIn(date, now.Location())
	out := Outcome{RuleID: rule.ID, Date: model.DateKey(date), At: now}

	out, err := g.regenerate(ctx, rule, date, now, out)
	if g.pub != nil {
		g.pub.Publish(events.RegenerationEvent{
			RuleID:    rule.ID,
			DeviceID:  rule.DeviceID,
			Date:      date,
			Trigger:   trigger,
			Outcome:   out.Message,
			Hours:     out.Hours,
			TotalCost: out.TotalCost,
			Created:   out.Created,
			Deleted:   out.Deleted,
			Err:       err,
			Duration:  time.Since(start),
		})
	}
	return out, err
}

func (g *Regenerator) regenerate(ctx context.Context, rule model.Rule, date, now time.Time, out Outcome) (Outcome, error) {
	if !rule.DaysOfWeek.IncludesDate(date) {
		out.Skipped = true
		out.Message = fmt.Sprintf("rule does not apply on %s", model.WeekdayOf(date))
		return out, nil
	}
	fromHour := firstFutureHour(date, now)

	prices, err := fetchPrices(ctx, g.prices, date, model.Day(now))
	if err != nil {
		g.log.Warnf("prices for %s unavailable (rule %s): %v", out.Date, rule.ID, err)
		out.Message = MsgPricesUnavailable
		if fromHour < model.HoursPerDay {
			deleted, perr := g.actions.PurgePending(ctx, rule.ID, date, fromHour)
			if perr != nil {
				return out, fmt.Errorf("purge stale actions: %w", perr)
			}
			out.Deleted = deleted
		}
		return out, fmt.Errorf("%w: %w", ErrPricesUnavailable, err)
	}
	if !prices.Complete() {
		g.log.Warnf("only %d hourly prices for %s", len(prices.Prices), out.Date)
	}

	sel := selection.Select(prices.Prices, selection.ConstraintsOf(rule))
	out.Hours = sel.Hours
	out.TotalCost = sel.TotalCost

	actions := make([]model.ScheduledAction, 0, len(sel.Hours))
	for _, h := range sel.Hours {
		if h < fromHour {
			continue
		}
		a := model.ScheduledAction{
			ID:        uuid.NewString(),
			RuleID:    rule.ID,
			Date:      date,
			StartHour: h,
			EndHour:   model.EndHourOf(h),
			Status:    model.StatusPending,
			CreatedAt: now,
		}
		if p, ok := prices.PriceAt(h); ok {
			a.Price = &p
		}
		actions = append(actions, a)
	}

	if fromHour < model.HoursPerDay {
		deleted, created, err := g.actions.ReplacePending(ctx, rule.ID, date, fromHour, actions)
		if err != nil {
			return out, fmt.Errorf("replace pending actions: %w", err)
		}
		out.Deleted, out.Created = deleted, created
	}

	switch {
	case out.Created > 0:
		out.Message = fmt.Sprintf("created %d scheduled actions", out.Created)
	case sel.Empty():
		out.Message = MsgNoOptimalHours
	case len(actions) == 0:
		out.Message = MsgHoursPassed
	default:
		out.Message = MsgNothingNew
	}
	g.log.Debugw("rule regenerated", map[string]any{
		"rule_id":  rule.ID,
		"date":     out.Date,
		"hours":    out.Hours,
		"created":  out.Created,
		"deleted":  out.Deleted,
		"strategy": string(sel.Strategy),
	})
	return out, nil
}

// Calculate returns the selection rule would get for date without touching
// the store.
func (g *Regenerator) Calculate(ctx context.Context, rule model.Rule, date time.Time) (selection.Selection, model.DailyPrices, error) {
	now := g.clock.Now()
	date = model.DateIn(date, now.Location())
	prices, err := fetchPrices(ctx, g.prices, date, model.Day(now))
	if err != nil {
		return selection.Selection{}, model.DailyPrices{}, fmt.Errorf("%w: %w", ErrPricesUnavailable, err)
	}
	return selection.Select(prices.Prices, selection.ConstraintsOf(rule)), prices, nil
}

// Batch summarises the regeneration of several rules for one date.
type Batch struct {
	Date     string    `json:"date"`
	Created  int       `json:"created"`
	Outcomes []Outcome `json:"outcomes"`
}

// RegenerateAll regenerates every enabled rule for date. It stops at the
// first price failure, since the remaining rules need the same prices, and
// joins store errors of individual rules.
func (g *Regenerator) RegenerateAll(ctx context.Context, rules []model.Rule, date time.Time, trigger events.Trigger) (Batch, error) {
	b := Batch{Date: model.DateKey(date)}
	var errs []error
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		out, err := g.Regenerate(ctx, r, date, trigger)
		b.Outcomes = append(b.Outcomes, out)
		b.Created += out.Created
		if errors.Is(err, ErrPricesUnavailable) {
			return b, err
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.ID, err))
		}
	}
	return b, errors.Join(errs...)
}

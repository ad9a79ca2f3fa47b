// Package orchestrator runs the long-lived scheduling loops: a startup
// backfill, the daily generation of tomorrow's schedule with retries, and a
// periodic sweep that marks elapsed pending actions as missed.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/cheaphours/core/events"
	"github.com/kilianp07/cheaphours/core/logger"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/monitoring"
	"github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/core/store"
	"github.com/kilianp07/cheaphours/internal/eventbus"
)

// Regenerator regenerates a set of rules for a date.
type Regenerator interface {
	RegenerateAll(ctx context.Context, rules []model.Rule, date time.Time, trigger events.Trigger) (schedule.Batch, error)
}

// Store is the persistence the loops need.
type Store interface {
	ListRules(ctx context.Context, f store.RuleFilter) ([]model.Rule, error)
	CountActions(ctx context.Context, date time.Time) (int, error)
	MarkMissed(ctx context.Context, today time.Time, currentHour int) (int, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(c schedule.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(o *Orchestrator) { o.log = l } }

// WithPublisher publishes a SweepEvent after each sweep.
func WithPublisher(p eventbus.Publisher[events.Event]) Option {
	return func(o *Orchestrator) { o.pub = p }
}

// WithTick overrides the loop interval.
func WithTick(d time.Duration) Option { return func(o *Orchestrator) { o.tick = d } }

// Orchestrator drives regeneration and expiry in the background.
type Orchestrator struct {
	cfg       Config
	regen     Regenerator
	store     Store
	clock     schedule.Clock
	log       logger.Logger
	pub       eventbus.Publisher[events.Event]
	tick      time.Duration
	genHour   int
	genMinute int
}

// New builds an Orchestrator. cfg is defaulted and validated.
func New(cfg Config, regen Regenerator, st Store, opts ...Option) (*Orchestrator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, m, _ := cfg.GenerationClock()
	o := &Orchestrator{
		cfg:       cfg,
		regen:     regen,
		store:     st,
		clock:     schedule.SystemClock{Location: cfg.Location()},
		log:       logger.Nop{},
		tick:      cfg.Tick(),
		genHour:   h,
		genMinute: m,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run starts the generation and sweep loops and blocks until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Infof("orchestrator started: generation at %s (%s), tick %s", o.cfg.GenerationTime, o.cfg.Timezone, o.tick)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer monitoring.Recover()
		o.generationLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		defer monitoring.Recover()
		o.sweepLoop(ctx)
	}()
	wg.Wait()
	o.log.Infof("orchestrator stopped")
	return nil
}

// GenerateForDate regenerates every enabled rule for date.
func (o *Orchestrator) GenerateForDate(ctx context.Context, date time.Time, trigger events.Trigger) (schedule.Batch, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout())
	defer cancel()
	rules, err := o.store.ListRules(ctx, store.RuleFilter{EnabledOnly: true})
	if err != nil {
		return schedule.Batch{Date: model.DateKey(date)}, fmt.Errorf("list rules: %w", err)
	}
	b, err := o.regen.RegenerateAll(ctx, rules, date, trigger)
	if err != nil {
		return b, err
	}
	o.log.Infof("%s generation for %s: %d actions created across %d rules", trigger, b.Date, b.Created, len(rules))
	return b, nil
}

// Sweep marks missed every pending action whose window has elapsed.
func (o *Orchestrator) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout())
	defer cancel()
	now := o.clock.Now()
	n, err := o.store.MarkMissed(ctx, model.Day(now), now.Hour())
	if o.pub != nil {
		o.pub.Publish(events.SweepEvent{Time: now, Missed: n, Err: err})
	}
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	if n > 0 {
		o.log.Infof("marked %d scheduled actions as missed", n)
	}
	return n, nil
}

func (o *Orchestrator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()
	for {
		if _, err := o.Sweep(ctx); err != nil {
			o.log.Errorf("%v", err)
			monitoring.CaptureException(err, map[string]string{"loop": "sweep"})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

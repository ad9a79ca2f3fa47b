package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cheaphours/core/events"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/schedule"
	corestore "github.com/kilianp07/cheaphours/core/store"
	"github.com/kilianp07/cheaphours/infra/store"
	"github.com/kilianp07/cheaphours/internal/eventbus"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// prices serves a day whose cheapest hours are 22 and 23.
type prices struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (p *prices) day(date time.Time) (model.DailyPrices, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return model.DailyPrices{}, errors.New("esios unavailable")
	}
	out := model.DailyPrices{Date: date}
	for h := 0; h < model.HoursPerDay; h++ {
		out.Prices = append(out.Prices, model.HourlyPrice{Hour: h, Price: 0.30 - float64(h)/100})
	}
	return out, nil
}

func (p *prices) setFail(v bool) {
	p.mu.Lock()
	p.fail = v
	p.mu.Unlock()
}

func (p *prices) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fixture struct {
	store  *store.SQLStore
	prices *prices
	clock  *fakeClock
	orch   *Orchestrator
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 5, day, hour, minute, 0, 0, time.UTC)
}

func newFixture(t *testing.T, now time.Time, opts ...Option) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(store.Config{Driver: store.DriverSQLite, DSN: fmt.Sprintf("file:orch_%s?mode=memory&cache=shared", name)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := &fakeClock{now: now}
	p := &prices{}
	src := priceSource{p: p, clock: clock}
	regen := schedule.NewRegenerator(s, src, schedule.WithClock(clock))
	require.NoError(t, s.CreateRule(context.Background(), model.Rule{
		ID: "r1", DeviceID: "boiler", MaxHours: 2, MinContinuousHours: 1, DaysOfWeek: model.AllDays, Enabled: true,
	}))
	opts = append([]Option{WithClock(clock)}, opts...)
	o, err := New(Config{Timezone: "UTC"}, regen, s, opts...)
	require.NoError(t, err)
	return &fixture{store: s, prices: p, clock: clock, orch: o}
}

type priceSource struct {
	p     *prices
	clock *fakeClock
}

func (s priceSource) Today(context.Context) (model.DailyPrices, error) {
	return s.p.day(model.Day(s.clock.Now()))
}

func (s priceSource) Tomorrow(context.Context) (model.DailyPrices, error) {
	return s.p.day(model.Day(s.clock.Now()).AddDate(0, 0, 1))
}

func (s priceSource) ForDate(_ context.Context, d time.Time) (model.DailyPrices, error) {
	return s.p.day(d)
}

func (f *fixture) count(t *testing.T, date time.Time) int {
	t.Helper()
	n, err := f.store.CountActions(context.Background(), date)
	require.NoError(t, err)
	return n
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	h, m, err := cfg.GenerationClock()
	require.NoError(t, err)
	assert.Equal(t, 20, h)
	assert.Equal(t, 30, m)
	assert.Equal(t, 30*time.Minute, cfg.RetryInterval())
	assert.Equal(t, time.Minute, cfg.Tick())

	bad := Config{Timezone: "UTC", GenerationTime: "8pm"}
	bad.SetDefaults()
	assert.Error(t, bad.Validate())
	bad = Config{Timezone: "Mars/Olympus"}
	bad.SetDefaults()
	assert.Error(t, bad.Validate())
}

func TestBackfillBeforeGenerationTime(t *testing.T) {
	f := newFixture(t, at(2, 9, 0))
	f.orch.backfill(context.Background(), &generationState{})
	assert.Equal(t, 2, f.count(t, at(2, 0, 0)))
	assert.Equal(t, 0, f.count(t, at(3, 0, 0)), "tomorrow not due yet")
}

func TestBackfillAfterGenerationTime(t *testing.T) {
	f := newFixture(t, at(2, 20, 45))
	st := &generationState{}
	f.orch.backfill(context.Background(), st)
	assert.Equal(t, 2, f.count(t, at(2, 0, 0)))
	assert.Equal(t, 2, f.count(t, at(3, 0, 0)))
	assert.Equal(t, "2024-05-03", st.lastGenerated)

	calls := f.prices.count()
	f.orch.backfill(context.Background(), st)
	assert.Equal(t, calls, f.prices.count(), "populated dates are not regenerated")
}

func TestDailyTriggerFiresOncePerDay(t *testing.T) {
	f := newFixture(t, at(2, 20, 29))
	st := &generationState{}
	ctx := context.Background()

	assert.False(t, f.orch.step(ctx, st))
	f.clock.Set(at(2, 20, 30))
	assert.True(t, f.orch.step(ctx, st))
	assert.Equal(t, 2, f.count(t, at(3, 0, 0)))
	f.clock.Set(at(2, 20, 30).Add(30 * time.Second))
	assert.False(t, f.orch.step(ctx, st), "same minute must not fire twice")
	f.clock.Set(at(3, 20, 30))
	assert.True(t, f.orch.step(ctx, st), "next day fires again")
	assert.Equal(t, 2, f.count(t, at(4, 0, 0)))
}

func TestRetryAfterFailure(t *testing.T) {
	f := newFixture(t, at(2, 20, 30))
	st := &generationState{}
	ctx := context.Background()
	f.prices.setFail(true)

	assert.True(t, f.orch.step(ctx, st))
	assert.True(t, st.retryPending)
	f.clock.Set(at(2, 20, 45))
	assert.False(t, f.orch.step(ctx, st), "retry interval not elapsed")
	f.clock.Set(at(2, 21, 0))
	assert.True(t, f.orch.step(ctx, st))
	assert.True(t, st.retryPending)

	f.prices.setFail(false)
	f.clock.Set(at(2, 21, 30))
	assert.True(t, f.orch.step(ctx, st))
	assert.False(t, st.retryPending)
	assert.Equal(t, 2, f.count(t, at(3, 0, 0)))
	f.clock.Set(at(2, 22, 30))
	assert.False(t, f.orch.step(ctx, st))
}

func TestRetryAcrossMidnightTargetsFailedDate(t *testing.T) {
	f := newFixture(t, at(2, 23, 50))
	st := &generationState{retryPending: true, retryDate: at(3, 0, 0), lastAttempt: at(2, 23, 20)}
	f.clock.Set(at(3, 0, 10))
	assert.True(t, f.orch.step(context.Background(), st))
	assert.Equal(t, 2, f.count(t, at(3, 0, 0)))
	assert.Equal(t, 0, f.count(t, at(4, 0, 0)))

	stale := &generationState{retryPending: true, retryDate: at(1, 0, 0), lastAttempt: at(1, 21, 0)}
	assert.False(t, f.orch.step(context.Background(), stale))
	assert.False(t, stale.retryPending)
}

func TestBackfillFailureForTodayIsRetried(t *testing.T) {
	f := newFixture(t, at(2, 21, 0))
	st := &generationState{}
	ctx := context.Background()
	f.prices.setFail(true)

	f.orch.backfill(ctx, st)
	require.True(t, st.retryPending)
	assert.Equal(t, "2024-05-02", model.DateKey(st.retryDate), "earliest failed date is retried first")

	f.prices.setFail(false)
	f.clock.Set(at(2, 21, 30))
	assert.True(t, f.orch.step(ctx, st))
	assert.Equal(t, 2, f.count(t, at(2, 0, 0)))
	require.True(t, st.retryPending, "tomorrow is still owed")
	assert.Equal(t, "2024-05-03", model.DateKey(st.retryDate))

	f.clock.Set(at(2, 21, 31))
	assert.True(t, f.orch.step(ctx, st))
	assert.False(t, st.retryPending)
	assert.Equal(t, 2, f.count(t, at(3, 0, 0)))
	assert.Equal(t, "2024-05-03", st.lastGenerated)
}

func TestDailyTriggerRespectsRetryInterval(t *testing.T) {
	f := newFixture(t, at(2, 20, 30), WithTick(10*time.Second))
	st := &generationState{}
	ctx := context.Background()
	f.prices.setFail(true)

	assert.True(t, f.orch.step(ctx, st))
	calls := f.prices.count()
	f.clock.Set(at(2, 20, 30).Add(20 * time.Second))
	assert.False(t, f.orch.step(ctx, st), "failed daily attempt waits for the retry interval")
	assert.Equal(t, calls, f.prices.count())
}

func TestSweepMarksElapsed(t *testing.T) {
	bus := eventbus.New[events.Event](4)
	sub := bus.Subscribe()
	f := newFixture(t, at(2, 14, 0), WithPublisher(bus))
	ctx := context.Background()
	today, yesterday := at(2, 0, 0), at(1, 0, 0)
	mk := func(id string, date time.Time, h int) model.ScheduledAction {
		return model.ScheduledAction{ID: id, RuleID: "r1", Date: date, StartHour: h, EndHour: model.EndHourOf(h),
			Status: model.StatusPending, CreatedAt: date}
	}
	_, _, err := f.store.ReplacePending(ctx, "r1", today, 0, []model.ScheduledAction{mk("t13", today, 13), mk("t14", today, 14)})
	require.NoError(t, err)
	_, _, err = f.store.ReplacePending(ctx, "r1", yesterday, 0, []model.ScheduledAction{mk("y23", yesterday, 23)})
	require.NoError(t, err)

	n, err := f.orch.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	ev := (<-sub).(events.SweepEvent)
	assert.Equal(t, 2, ev.Missed)

	open, err := f.store.ListActions(ctx, corestore.ActionFilter{Status: model.StatusPending})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "t14", open[0].ID)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, at(2, 9, 0), WithTick(10*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
	assert.Equal(t, 2, f.count(t, at(2, 0, 0)), "backfill ran at startup")
}

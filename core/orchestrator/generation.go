package orchestrator

import (
	"context"
	"time"

	"github.com/kilianp07/cheaphours/core/events"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/monitoring"
)

// generationState is owned by the generation loop.
type generationState struct {
	lastGenerated string
	retryPending  bool
	retryDate     time.Time
	lastAttempt   time.Time
}

func (o *Orchestrator) generationLoop(ctx context.Context) {
	st := &generationState{}
	if !o.cfg.SkipBackfill {
		o.backfill(ctx, st)
	}
	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.step(ctx, st)
		}
	}
}

func (o *Orchestrator) afterGenerationTime(now time.Time) bool {
	return now.Hour() > o.genHour || (now.Hour() == o.genHour && now.Minute() >= o.genMinute)
}

func (o *Orchestrator) inGenerationMinute(now time.Time) bool {
	return now.Hour() == o.genHour && now.Minute() == o.genMinute
}

// backfill generates today, and tomorrow once its prices are due, when no
// action exists yet for the date. The earliest failed date is retried.
func (o *Orchestrator) backfill(ctx context.Context, st *generationState) {
	now := o.clock.Now()
	today := model.Day(now)
	dates := []time.Time{today}
	if o.afterGenerationTime(now) {
		dates = append(dates, today.AddDate(0, 0, 1))
	}
	for _, date := range dates {
		n, err := o.store.CountActions(ctx, date)
		if err != nil {
			o.log.Errorf("backfill count for %s: %v", model.DateKey(date), err)
			continue
		}
		if n > 0 {
			o.log.Debugf("backfill: %d actions already exist for %s", n, model.DateKey(date))
			continue
		}
		o.log.Infof("backfill: no actions for %s, generating", model.DateKey(date))
		if _, err := o.GenerateForDate(ctx, date, events.TriggerBackfill); err != nil {
			o.log.Warnf("backfill for %s failed: %v", model.DateKey(date), err)
			monitoring.CaptureException(err, map[string]string{"loop": "generation", "trigger": "backfill"})
			if !st.retryPending {
				st.retryPending, st.retryDate, st.lastAttempt = true, date, now
			}
			continue
		}
		if !model.SameDay(date, today) {
			st.lastGenerated = model.DateKey(date)
		}
	}
}

// step runs one tick of the generation loop and reports whether a
// generation was attempted.
func (o *Orchestrator) step(ctx context.Context, st *generationState) bool {
	now := o.clock.Now()
	today := model.Day(now)
	tomorrow := today.AddDate(0, 0, 1)

	var date time.Time
	var trigger events.Trigger
	switch {
	case o.inGenerationMinute(now) && !st.retryPending && st.lastGenerated != model.DateKey(tomorrow):
		date, trigger = tomorrow, events.TriggerDaily
	case st.retryPending && now.Sub(st.lastAttempt) >= o.cfg.RetryInterval():
		if model.DateKey(st.retryDate) < model.DateKey(today) {
			o.log.Warnf("giving up retry for past date %s", model.DateKey(st.retryDate))
			st.retryPending = false
			return false
		}
		date, trigger = st.retryDate, events.TriggerRetry
	default:
		return false
	}

	st.lastAttempt = now
	if _, err := o.GenerateForDate(ctx, date, trigger); err != nil {
		st.retryPending, st.retryDate = true, date
		o.log.Warnf("%s generation for %s failed, retrying in %s: %v", trigger, model.DateKey(date), o.cfg.RetryInterval(), err)
		monitoring.CaptureException(err, map[string]string{"loop": "generation", "trigger": string(trigger)})
		return true
	}
	st.retryPending = false
	if model.SameDay(date, today) {
		// Tomorrow is still owed once its prices are due.
		if o.afterGenerationTime(now) && st.lastGenerated != model.DateKey(tomorrow) {
			st.retryPending, st.retryDate, st.lastAttempt = true, tomorrow, time.Time{}
		}
		return true
	}
	st.lastGenerated = model.DateKey(date)
	return true
}

package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/cheaphours/core/events"
	coremetrics "github.com/kilianp07/cheaphours/core/metrics"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/infra/logger"
	"github.com/kilianp07/cheaphours/internal/eventbus"
)

// StartEventCollector subscribes to the bus and records every scheduling
// event on sink. It stops when ctx is canceled or the bus is closed; the
// returned channel is closed on exit.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %s: %v", ev.Kind(), err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	now := time.Now()
	switch e := ev.(type) {
	case events.RegenerationEvent:
		return sink.RecordRegeneration(coremetrics.RegenerationRecord{
			RuleID:    e.RuleID,
			DeviceID:  e.DeviceID,
			Date:      model.DateKey(e.Date),
			Trigger:   string(e.Trigger),
			Outcome:   outcomeLabel(e),
			Hours:     len(e.Hours),
			TotalCost: e.TotalCost,
			Created:   e.Created,
			Deleted:   e.Deleted,
			Failed:    e.Err != nil,
			Duration:  e.Duration,
			Time:      now,
		})
	case events.SweepEvent:
		if r, ok := sink.(coremetrics.SweepRecorder); ok {
			return r.RecordSweep(coremetrics.SweepRecord{Missed: e.Missed, Failed: e.Err != nil, Time: e.Time})
		}
	case events.PriceFetchEvent:
		if r, ok := sink.(coremetrics.PriceFetchRecorder); ok {
			return r.RecordPriceFetch(coremetrics.PriceFetchRecord{
				Date:    model.DateKey(e.Date),
				Hours:   e.Hours,
				Cached:  e.Cached,
				Failed:  e.Err != nil,
				Latency: e.Latency,
				Time:    now,
			})
		}
	case events.StatusEvent:
		if r, ok := sink.(coremetrics.StatusRecorder); ok {
			return r.RecordStatus(coremetrics.StatusRecord{RuleID: e.RuleID, Status: e.Status, Source: e.Source, Time: now})
		}
	}
	return nil
}

// outcomeLabel folds a regeneration into a bounded set of label values.
func outcomeLabel(e events.RegenerationEvent) string {
	switch {
	case errors.Is(e.Err, schedule.ErrPricesUnavailable):
		return "prices_unavailable"
	case e.Err != nil:
		return "error"
	case e.Created > 0:
		return "created"
	case e.Deleted > 0:
		return "cleared"
	}
	return "unchanged"
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/cheaphours/core/events"
	coremetrics "github.com/kilianp07/cheaphours/core/metrics"
	"github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/internal/eventbus"
)

type captureSink struct {
	mu     sync.Mutex
	regens []coremetrics.RegenerationRecord
	sweeps []coremetrics.SweepRecord
	prices []coremetrics.PriceFetchRecord
	status []coremetrics.StatusRecord
}

func (c *captureSink) RecordRegeneration(r coremetrics.RegenerationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regens = append(c.regens, r)
	return nil
}

func (c *captureSink) RecordSweep(r coremetrics.SweepRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweeps = append(c.sweeps, r)
	return nil
}

func (c *captureSink) RecordPriceFetch(r coremetrics.PriceFetchRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices = append(c.prices, r)
	return nil
}

func (c *captureSink) RecordStatus(r coremetrics.StatusRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = append(c.status, r)
	return nil
}

func TestEventCollectorRecordsEvents(t *testing.T) {
	bus := eventbus.New[events.Event](16)
	sink := &captureSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := StartEventCollector(ctx, bus, sink)

	day := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	bus.Publish(events.RegenerationEvent{RuleID: "r1", Date: day, Trigger: events.TriggerDaily, Outcome: "created 2 scheduled actions", Hours: []int{2, 3}, Created: 2})
	bus.Publish(events.SweepEvent{Time: day, Missed: 1})
	bus.Publish(events.PriceFetchEvent{Date: day, Hours: 24, Err: errors.New("timeout")})
	bus.Publish(events.StatusEvent{ActionID: "a1", RuleID: "r1", Status: "executed", Source: "mqtt"})
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop on bus close")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if assert.Len(t, sink.regens, 1) {
		assert.Equal(t, "2024-05-02", sink.regens[0].Date)
		assert.Equal(t, 2, sink.regens[0].Hours)
		assert.Equal(t, "daily", sink.regens[0].Trigger)
		assert.Equal(t, "created", sink.regens[0].Outcome)
	}
	assert.Len(t, sink.sweeps, 1)
	if assert.Len(t, sink.prices, 1) {
		assert.True(t, sink.prices[0].Failed)
	}
	assert.Len(t, sink.status, 1)
}

func TestEventCollectorNilInputs(t *testing.T) {
	done := StartEventCollector(context.Background(), nil, coremetrics.NopSink{})
	select {
	case <-done:
	default:
		t.Fatal("expected closed channel")
	}
}

func TestOutcomeLabel(t *testing.T) {
	unavailable := fmt.Errorf("%w: timeout", schedule.ErrPricesUnavailable)
	assert.Equal(t, "prices_unavailable", outcomeLabel(events.RegenerationEvent{Err: unavailable, Deleted: 2}))
	assert.Equal(t, "error", outcomeLabel(events.RegenerationEvent{Err: errors.New("disk full")}))
	assert.Equal(t, "cleared", outcomeLabel(events.RegenerationEvent{Deleted: 1}))
	assert.Equal(t, "unchanged", outcomeLabel(events.RegenerationEvent{}))
}

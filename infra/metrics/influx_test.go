package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/cheaphours/core/metrics"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.lines = append(l.lines, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInfluxSink_RecordRegeneration(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "token", Org: "org", Bucket: "bucket"})

	err := sink.RecordRegeneration(coremetrics.RegenerationRecord{
		RuleID: "r1", DeviceID: "boiler", Date: "2024-05-02", Trigger: "daily", Outcome: "created",
		Hours: 3, TotalCost: 0.15, Created: 3, Duration: 40 * time.Millisecond, Time: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, rec.lines, 1)
	line := rec.lines[0]
	assert.True(t, strings.HasPrefix(line, "schedule_regeneration,"), line)
	for _, part := range []string{"rule_id=r1", "device_id=boiler", "trigger=daily", "created=3i", "total_cost=0.15", "failed=false"} {
		assert.Contains(t, line, part)
	}
}

func TestInfluxSink_OptionalRecorders(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	now := time.Now()

	require.NoError(t, sink.RecordSweep(coremetrics.SweepRecord{Missed: 4, Time: now}))
	require.NoError(t, sink.RecordPriceFetch(coremetrics.PriceFetchRecord{Date: "2024-05-03", Hours: 24, Cached: true, Time: now}))
	require.NoError(t, sink.RecordStatus(coremetrics.StatusRecord{RuleID: "r1", Status: "executed", Source: "mqtt", Time: now}))

	require.Len(t, rec.lines, 3)
	assert.Contains(t, rec.lines[0], "missed=4i")
	assert.Contains(t, rec.lines[1], "cached=true")
	assert.Contains(t, rec.lines[2], "status=executed")
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/cheaphours/core/metrics"
	"github.com/kilianp07/cheaphours/infra/logger"
)

// InfluxConfig locates an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes scheduling activity to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback checks the InfluxDB health endpoint and returns
// a NopSink when it does not pass.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordRegeneration(r coremetrics.RegenerationRecord) error {
	p := write.NewPointWithMeasurement("schedule_regeneration").
		AddTag("rule_id", r.RuleID).
		AddTag("device_id", r.DeviceID).
		AddTag("trigger", r.Trigger).
		AddTag("outcome", r.Outcome).
		AddTag("date", r.Date).
		AddField("hours", r.Hours).
		AddField("total_cost", round3(r.TotalCost)).
		AddField("created", r.Created).
		AddField("deleted", r.Deleted).
		AddField("failed", r.Failed).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		SetTime(r.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordSweep(r coremetrics.SweepRecord) error {
	p := write.NewPointWithMeasurement("schedule_sweep").
		AddTag("failed", strconv.FormatBool(r.Failed)).
		AddField("missed", r.Missed).
		SetTime(r.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordPriceFetch(r coremetrics.PriceFetchRecord) error {
	p := write.NewPointWithMeasurement("price_fetch").
		AddTag("date", r.Date).
		AddTag("cached", strconv.FormatBool(r.Cached)).
		AddTag("failed", strconv.FormatBool(r.Failed)).
		AddField("hours", r.Hours).
		AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
		SetTime(r.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordStatus(r coremetrics.StatusRecord) error {
	p := write.NewPointWithMeasurement("action_status").
		AddTag("rule_id", r.RuleID).
		AddTag("status", r.Status).
		AddTag("source", r.Source).
		AddField("count", 1).
		SetTime(r.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

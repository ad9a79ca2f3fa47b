package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/kilianp07/cheaphours/core/metrics"
	"github.com/kilianp07/cheaphours/infra/logger"
)

// PromSink records scheduling activity in Prometheus metrics.
type PromSink struct {
	regenerations *prometheus.CounterVec
	regenLatency  *prometheus.HistogramVec
	actions       *prometheus.CounterVec
	lastCost      *prometheus.GaugeVec
	missed        prometheus.Counter
	sweeps        *prometheus.CounterVec
	priceFetches  *prometheus.CounterVec
	priceLatency  prometheus.Histogram
	statuses      *prometheus.CounterVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register registers c or returns the collector already registered under
// the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if exist, ok := are.ExistingCollector.(C); ok {
				return exist, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.regenerations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cheaphours_regenerations_total",
		Help: "Schedule regenerations by trigger and outcome",
	}, []string{"trigger", "outcome"})); err != nil {
		return nil, err
	}
	if s.regenLatency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cheaphours_regeneration_duration_seconds",
		Help:    "Time spent regenerating a rule schedule",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})); err != nil {
		return nil, err
	}
	if s.actions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cheaphours_actions_total",
		Help: "Scheduled actions created or replaced",
	}, []string{"op"})); err != nil {
		return nil, err
	}
	if s.lastCost, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cheaphours_selection_cost_eur_per_kwh",
		Help: "Summed price of the last selected hours per rule",
	}, []string{"rule_id"})); err != nil {
		return nil, err
	}
	if s.missed, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cheaphours_actions_missed_total",
		Help: "Pending actions expired by the sweep",
	})); err != nil {
		return nil, err
	}
	if s.sweeps, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cheaphours_sweeps_total",
		Help: "Expiry sweeps by result",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if s.priceFetches, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cheaphours_price_fetches_total",
		Help: "Price lookups by source and result",
	}, []string{"source", "result"})); err != nil {
		return nil, err
	}
	if s.priceLatency, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cheaphours_price_fetch_duration_seconds",
		Help:    "Latency of uncached price lookups",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.statuses, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cheaphours_status_reports_total",
		Help: "Action status reports by status and source",
	}, []string{"status", "source"})); err != nil {
		return nil, err
	}
	return s, nil
}

func result(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

func (s *PromSink) RecordRegeneration(r coremetrics.RegenerationRecord) error {
	s.regenerations.WithLabelValues(r.Trigger, r.Outcome).Inc()
	s.regenLatency.WithLabelValues(r.Trigger).Observe(r.Duration.Seconds())
	s.actions.WithLabelValues("created").Add(float64(r.Created))
	s.actions.WithLabelValues("deleted").Add(float64(r.Deleted))
	if !r.Failed && r.Hours > 0 {
		s.lastCost.WithLabelValues(r.RuleID).Set(r.TotalCost)
	}
	return nil
}

func (s *PromSink) RecordSweep(r coremetrics.SweepRecord) error {
	s.sweeps.WithLabelValues(result(r.Failed)).Inc()
	s.missed.Add(float64(r.Missed))
	return nil
}

func (s *PromSink) RecordPriceFetch(r coremetrics.PriceFetchRecord) error {
	source := "feed"
	if r.Cached {
		source = "cache"
	} else {
		s.priceLatency.Observe(r.Latency.Seconds())
	}
	s.priceFetches.WithLabelValues(source, result(r.Failed)).Inc()
	return nil
}

func (s *PromSink) RecordStatus(r coremetrics.StatusRecord) error {
	s.statuses.WithLabelValues(r.Status, r.Source).Inc()
	return nil
}

// StartPromServer serves the default Prometheus gatherer on addr until ctx
// is canceled.
func StartPromServer(ctx context.Context, addr string) error {
	log := logger.New("prometheus")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown metrics server: %v", err)
		}
	}()
	log.Infof("serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}


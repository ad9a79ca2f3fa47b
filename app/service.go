package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/cheaphours/api"
	apischedule "github.com/kilianp07/cheaphours/api/schedule"
	"github.com/kilianp07/cheaphours/config"
	"github.com/kilianp07/cheaphours/core/events"
	coremetrics "github.com/kilianp07/cheaphours/core/metrics"
	coremon "github.com/kilianp07/cheaphours/core/monitoring"
	"github.com/kilianp07/cheaphours/core/orchestrator"
	"github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/infra/logger"
	"github.com/kilianp07/cheaphours/infra/metrics"
	"github.com/kilianp07/cheaphours/infra/monitoring"
	"github.com/kilianp07/cheaphours/infra/mqtt"
	"github.com/kilianp07/cheaphours/infra/pricecache"
	"github.com/kilianp07/cheaphours/infra/store"
	"github.com/kilianp07/cheaphours/internal/eventbus"
	"github.com/kilianp07/cheaphours/pvpc"
)

const busBuffer = 256

// Service wires the store, the price feed and the scheduling services
// behind the HTTP API and the background loops.
type Service struct {
	Store        *store.SQLStore
	Prices       *pvpc.CachedSource
	Regenerator  *schedule.Regenerator
	Rules        *schedule.RuleService
	Status       *schedule.StatusService
	Orchestrator *orchestrator.Orchestrator
	Clock        schedule.Clock

	cfg  *config.Config
	log  logger.Logger
	bus  *eventbus.Bus[events.Event]
	sink coremetrics.MetricsSink
	mock *pvpc.ServerMock
	api  *api.Server
}

// New creates a Service from the configuration. Nothing runs until Run.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Logging); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)
	logg := logger.New("service")

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	loc := cfg.Scheduler.Location()
	clock := schedule.SystemClock{Location: loc}
	bus := eventbus.New[events.Event](busBuffer)

	pcfg := cfg.Prices
	var mock *pvpc.ServerMock
	if pcfg.Mode == pvpc.ModeMock {
		mock = pvpc.NewServerMock(pcfg.Mock, loc)
		pcfg.APIURL = "http://" + pcfg.Mock.Address + pvpc.MockPath
	}
	cache, err := pricecache.New(pcfg.Cache)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("price cache: %w", err)
	}
	prices := pvpc.NewCachedSource(pvpc.NewClient(pcfg, loc), cache, bus, loc)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	regen := schedule.NewRegenerator(st, prices,
		schedule.WithClock(clock),
		schedule.WithLogger(logger.New("regenerator")),
		schedule.WithPublisher(bus),
	)
	rules := schedule.NewRuleService(st, st, regen, logger.New("rules"), cfg.Scheduler.StepTimeout())
	status := schedule.NewStatusService(st, clock, bus)
	orch, err := orchestrator.New(cfg.Scheduler, regen, st,
		orchestrator.WithClock(clock),
		orchestrator.WithLogger(logger.New("orchestrator")),
		orchestrator.WithPublisher(bus),
	)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	svc := &Service{
		Store:        st,
		Prices:       prices,
		Regenerator:  regen,
		Rules:        rules,
		Status:       status,
		Orchestrator: orch,
		Clock:        clock,
		cfg:          cfg,
		log:          logg,
		bus:          bus,
		sink:         sink,
		mock:         mock,
	}
	svc.api = api.NewServer(cfg.API, api.Deps{
		Rules: rules,
		Schedule: &apischedule.Deps{
			Actions:    st,
			Generator:  orch,
			Calculator: regen,
			Rules:      rules,
			Status:     status,
		},
		Prices: prices,
		Health: st,
		Clock:  clock,
	}, logger.New("api"))
	return svc, nil
}

// Run starts the price mock, metrics, MQTT, the API and the scheduling
// loops, and blocks until the context is cancelled or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(s.cfg.MQTT, mqtt.StatusHandler(ctx, s.Status, logger.New("mqtt-status")))
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		defer client.Disconnect()
		notified := mqtt.NewNotifier(client, s.Store, s.Clock.Now).Run(ctx, s.bus)
		defer func() { <-notified }()
	}
	if err := s.ServePriceMock(ctx, g.Go); err != nil {
		_ = g.Wait()
		return err
	}
	collected := metrics.StartEventCollector(ctx, s.bus, s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(ctx, addr) })
	}
	g.Go(func() error { return s.api.Start(ctx) })
	g.Go(func() error { return s.Orchestrator.Run(ctx) })

	err := g.Wait()
	s.Rules.Wait()
	<-collected
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ServePriceMock binds the mock price server, when prices.mode is mock, and
// serves it through spawn until ctx ends.
func (s *Service) ServePriceMock(ctx context.Context, spawn func(func() error)) error {
	if s.mock == nil {
		return nil
	}
	if err := s.mock.Listen(); err != nil {
		return fmt.Errorf("price mock: %w", err)
	}
	spawn(func() error { return s.mock.Start(ctx) })
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	coremon.Flush(2 * time.Second)
	return errors.Join(s.Store.Close(), logger.Close())
}

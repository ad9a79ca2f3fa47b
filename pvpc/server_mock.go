package pvpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/infra/logger"
)

// MockPath is where the mock server answers indicator requests.
const MockPath = "/indicators/1001"

// ServerMock serves deterministic ESIOS-shaped PVPC prices for local runs.
type ServerMock struct {
	addr        string
	loc         *time.Location
	publishAt   time.Duration
	now         func() time.Time
	log         logger.Logger
	srv         *http.Server
	ln          net.Listener
	requests    *prometheus.CounterVec
	unpublished prometheus.Counter
}

// NewServerMock creates a mock server using the default Prometheus
// registerer.
func NewServerMock(cfg MockConfig, loc *time.Location) *ServerMock {
	return NewServerMockWithRegistry(cfg, loc, prometheus.DefaultRegisterer)
}

// NewServerMockWithRegistry creates a mock server and registers its metrics
// on reg. If reg is nil the default registerer is used.
func NewServerMockWithRegistry(cfg MockConfig, loc *time.Location, reg prometheus.Registerer) *ServerMock {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if loc == nil {
		loc = time.Local
	}
	log := logger.New("pvpc-server-mock")

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pvpc_mock_requests_total",
		Help: "Price requests served by the PVPC mock",
	}, []string{"outcome"})
	unpublished := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvpc_mock_unpublished_total",
		Help: "Requests for days not yet published by the PVPC mock",
	})
	if err := reg.Register(requests); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if exist, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				requests = exist
			} else {
				log.Errorf("existing collector for pvpc_mock_requests_total has wrong type %T", are.ExistingCollector)
			}
		}
	}
	if err := reg.Register(unpublished); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if exist, ok := are.ExistingCollector.(prometheus.Counter); ok {
				unpublished = exist
			} else {
				log.Errorf("existing collector for pvpc_mock_unpublished_total has wrong type %T", are.ExistingCollector)
			}
		}
	}

	publishAt := 20*time.Hour + 15*time.Minute
	if t, err := time.Parse("15:04", cfg.PublishTime); err == nil {
		publishAt = time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	}
	return &ServerMock{
		addr:        cfg.Address,
		loc:         loc,
		publishAt:   publishAt,
		now:         time.Now,
		log:         log,
		requests:    requests,
		unpublished: unpublished,
	}
}

// Handler returns the HTTP routes of the mock.
func (s *ServerMock) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("pong")); err != nil {
			s.log.Errorf("write pong: %v", err)
		}
	})
	mux.HandleFunc(MockPath, s.handleIndicator)
	return mux
}

// published reports whether prices of date are visible at now. Everything
// up to today is published; tomorrow only after the publish time.
func (s *ServerMock) published(date time.Time) bool {
	now := s.now().In(s.loc)
	today := model.Day(now)
	switch {
	case !date.After(today):
		return true
	case model.SameDay(date, today.AddDate(0, 0, 1)):
		return now.Sub(today) >= s.publishAt
	}
	return false
}

func (s *ServerMock) handleIndicator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := r.URL.Query().Get("start_date")
	if len(start) < len(model.DateLayout) {
		s.requests.WithLabelValues("bad_request").Inc()
		http.Error(w, "start_date is required", http.StatusBadRequest)
		return
	}
	date, err := model.ParseDate(start[:len(model.DateLayout)], s.loc)
	if err != nil {
		s.requests.WithLabelValues("bad_request").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body := indicatorResponse{Indicator: indicator{Values: []indicatorValue{}}}
	if s.published(date) {
		body.Indicator.Values = mockValues(date, s.loc)
		s.requests.WithLabelValues("ok").Inc()
	} else {
		s.unpublished.Inc()
		s.requests.WithLabelValues("unpublished").Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Errorf("encode response: %v", err)
	}
}

// mockValues returns a repeatable day curve in EUR/MWh: cheap overnight,
// a midday solar dip and an evening peak, shifted slightly per date.
func mockValues(date time.Time, loc *time.Location) []indicatorValue {
	geo := GeoPeninsula
	shift := float64(date.YearDay()%7) * 1.5
	out := make([]indicatorValue, 0, model.HoursPerDay)
	for h := 0; h < model.HoursPerDay; h++ {
		base := 110 + 45*math.Sin(float64(h-14)*math.Pi/12) + 25*math.Exp(-math.Pow(float64(h-20), 2)/4)
		if h >= 12 && h <= 16 {
			base -= 30
		}
		v := math.Round((base+shift)*100) / 100
		at := time.Date(date.Year(), date.Month(), date.Day(), h, 0, 0, 0, loc)
		out = append(out, indicatorValue{
			Value:    v,
			Datetime: fmt.Sprintf("%sT%02d:00:00.000%s", model.DateKey(date), h, at.Format("-07:00")),
			GeoID:    &geo,
		})
	}
	return out
}

// Addr returns the listening address once Start has been called.
func (s *ServerMock) Addr() string { return s.addr }

// URL returns the indicator endpoint of a started server.
func (s *ServerMock) URL() string { return fmt.Sprintf("http://%s%s", s.addr, MockPath) }

// Listen binds the configured address. Start calls it when needed.
func (s *ServerMock) Listen() error {
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.addr = ln.Addr().String()
	return nil
}

// Start runs the HTTP server until the context is canceled.
func (s *ServerMock) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("shutdown server: %v", err)
		}
		cancel()
	}()
	s.log.Infof("PVPC mock server listening on %s", s.addr)
	err := s.srv.Serve(s.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

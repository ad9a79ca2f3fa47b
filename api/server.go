// Package api assembles the HTTP surface: rule management, schedules,
// prices and a health check behind an optional bearer token.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/cheaphours/api/prices"
	"github.com/kilianp07/cheaphours/api/respond"
	"github.com/kilianp07/cheaphours/api/rules"
	"github.com/kilianp07/cheaphours/api/schedule"
	"github.com/kilianp07/cheaphours/core/logger"
	coreschedule "github.com/kilianp07/cheaphours/core/schedule"
)

// Config holds the HTTP listener settings.
type Config struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	// ShutdownSeconds bounds the graceful shutdown.
	ShutdownSeconds int `json:"shutdown_seconds"`
}

func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ShutdownSeconds <= 0 {
		c.ShutdownSeconds = 5
	}
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the routes are built on. Nil members leave their
// routes unmounted.
type Deps struct {
	Rules    rules.Service
	Schedule *schedule.Deps
	Prices   coreschedule.PriceSource
	Health   Pinger
	Clock    coreschedule.Clock
}

// RequireToken rejects requests without "Bearer <token>" when token is set.
func RequireToken(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && !validBearer(r.Header.Get("Authorization"), token) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validBearer(header, token string) bool {
	return subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+token)) == 1
}

// NewRouter mounts every route. /health stays open; /api requires the token.
func NewRouter(cfg Config, d Deps) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", health(d.Health)).Methods(http.MethodGet)

	protected := r.PathPrefix("/").Subrouter()
	protected.Use(RequireToken(cfg.Token))
	if d.Rules != nil {
		rules.Register(protected, d.Rules)
	}
	if d.Schedule != nil {
		sd := *d.Schedule
		if sd.Clock == nil {
			sd.Clock = d.Clock
		}
		schedule.Register(protected, sd)
	}
	if d.Prices != nil {
		prices.Register(protected, d.Prices, d.Clock)
	}
	return r
}

func health(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Server serves the router until its context ends.
type Server struct {
	cfg Config
	srv *http.Server
	log logger.Logger
}

// NewServer builds a Server for cfg.
func NewServer(cfg Config, d Deps, log logger.Logger) *Server {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.Address,
			Handler:           NewRouter(cfg, d),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start listens until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.ShutdownSeconds)*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("shutdown api server: %v", err)
		}
	}()
	s.log.Infof("serving api on %s", s.cfg.Address)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

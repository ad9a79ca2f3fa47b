// Package schedule exposes scheduled actions, on-demand generation and
// status reports over HTTP.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/cheaphours/api/respond"
	"github.com/kilianp07/cheaphours/core/events"
	"github.com/kilianp07/cheaphours/core/model"
	coreschedule "github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/core/selection"
	"github.com/kilianp07/cheaphours/core/store"
)

// ActionLister reads scheduled actions.
type ActionLister interface {
	ListActions(ctx context.Context, f store.ActionFilter) ([]model.ScheduledAction, error)
}

// Generator regenerates every enabled rule for a date.
type Generator interface {
	GenerateForDate(ctx context.Context, date time.Time, trigger events.Trigger) (coreschedule.Batch, error)
}

// Calculator computes a selection without persisting it.
type Calculator interface {
	Calculate(ctx context.Context, rule model.Rule, date time.Time) (selection.Selection, model.DailyPrices, error)
}

// RuleGetter loads a stored rule.
type RuleGetter interface {
	Get(ctx context.Context, id string) (model.Rule, error)
}

// StatusUpdater applies a reported status.
type StatusUpdater interface {
	Update(ctx context.Context, id string, status model.ActionStatus, source string) (model.ScheduledAction, error)
}

// Deps groups the collaborators of the schedule routes.
type Deps struct {
	Actions    ActionLister
	Generator  Generator
	Calculator Calculator
	Rules      RuleGetter
	Status     StatusUpdater
	Clock      coreschedule.Clock
}

type handler struct {
	Deps
}

// Register mounts the schedule routes under /api/schedule.
func Register(r *mux.Router, d Deps) {
	if d.Clock == nil {
		d.Clock = coreschedule.SystemClock{}
	}
	h := &handler{Deps: d}
	sr := r.PathPrefix("/api/schedule").Subrouter()
	sr.HandleFunc("/today", h.today).Methods(http.MethodGet)
	sr.HandleFunc("/generate", h.generate).Methods(http.MethodPost)
	sr.HandleFunc("/calculate", h.calculate).Methods(http.MethodPost)
	sr.HandleFunc("/{date:[0-9]{4}-[0-9]{2}-[0-9]{2}}", h.byDate).Methods(http.MethodGet)
	sr.HandleFunc("/{id}/status", h.status).Methods(http.MethodPatch)
}

func (h *handler) today(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.Day(h.Clock.Now()))
}

func (h *handler) byDate(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(mux.Vars(r)["date"], h.Clock.Now().Location())
	if err != nil {
		respond.Error(w, errors.Join(respond.ErrBadRequest, err))
		return
	}
	h.list(w, r, date)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request, date time.Time) {
	f := store.ActionFilter{Date: date, RuleID: r.URL.Query().Get("rule_id")}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := model.ParseStatus(s)
		if err != nil {
			respond.Error(w, errors.Join(respond.ErrBadRequest, err))
			return
		}
		f.Status = st
	}
	actions, err := h.Actions.ListActions(r.Context(), f)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if actions == nil {
		actions = []model.ScheduledAction{}
	}
	respond.JSON(w, http.StatusOK, actions)
}

// GenerateResponse reports a manual generation of today and tomorrow.
type GenerateResponse struct {
	Created int                  `json:"created"`
	Batches []coreschedule.Batch `json:"batches"`
	Notes   []string             `json:"notes,omitempty"`
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	today := model.Day(h.Clock.Now())
	resp := GenerateResponse{}
	for _, date := range []time.Time{today, today.AddDate(0, 0, 1)} {
		b, err := h.Generator.GenerateForDate(r.Context(), date, events.TriggerManual)
		resp.Batches = append(resp.Batches, b)
		resp.Created += b.Created
		switch {
		case errors.Is(err, coreschedule.ErrPricesUnavailable):
			resp.Notes = append(resp.Notes, fmt.Sprintf("%s: %s", model.DateKey(date), coreschedule.MsgPricesUnavailable))
		case err != nil:
			respond.Error(w, err)
			return
		}
	}
	respond.JSON(w, http.StatusOK, resp)
}

// CalculateRequest selects the rule to evaluate: a stored rule by id or an
// inline rule. Date defaults to today.
type CalculateRequest struct {
	RuleID string      `json:"rule_id,omitempty"`
	Rule   *model.Rule `json:"rule,omitempty"`
	Date   string      `json:"date,omitempty"`
}

// CalculateResponse is the selection a rule would get.
type CalculateResponse struct {
	RuleID    string              `json:"rule_id,omitempty"`
	Date      string              `json:"date"`
	Hours     []int               `json:"hours"`
	TotalCost float64             `json:"total_cost"`
	Strategy  selection.Strategy  `json:"strategy"`
	Prices    []model.HourlyPrice `json:"prices"`
}

func (h *handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	var rule model.Rule
	switch {
	case req.Rule != nil:
		rule = *req.Rule
		rule.SetDefaults()
		if err := rule.Validate(); err != nil {
			respond.Error(w, err)
			return
		}
	case req.RuleID != "":
		var err error
		if rule, err = h.Rules.Get(r.Context(), req.RuleID); err != nil {
			respond.Error(w, err)
			return
		}
	default:
		respond.Error(w, fmt.Errorf("%w: rule_id or rule is required", respond.ErrBadRequest))
		return
	}

	now := h.Clock.Now()
	date := model.Day(now)
	if req.Date != "" {
		d, err := model.ParseDate(req.Date, now.Location())
		if err != nil {
			respond.Error(w, errors.Join(respond.ErrBadRequest, err))
			return
		}
		date = d
	}
	sel, prices, err := h.Calculator.Calculate(r.Context(), rule, date)
	if err != nil {
		respond.Error(w, err)
		return
	}
	hours := sel.Hours
	if hours == nil {
		hours = []int{}
	}
	respond.JSON(w, http.StatusOK, CalculateResponse{
		RuleID:    rule.ID,
		Date:      model.DateKey(date),
		Hours:     hours,
		TotalCost: sel.TotalCost,
		Strategy:  sel.Strategy,
		Prices:    prices.Sorted(),
	})
}

// StatusRequest is the body of a status report.
type StatusRequest struct {
	Status string `json:"status"`
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	st, err := model.ParseStatus(req.Status)
	if err != nil {
		respond.Error(w, errors.Join(respond.ErrBadRequest, err))
		return
	}
	a, err := h.Status.Update(r.Context(), mux.Vars(r)["id"], st, "api")
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

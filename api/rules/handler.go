// Package rules exposes rule management over HTTP.
package rules

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kilianp07/cheaphours/api/respond"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/core/store"
)

// Service is the rule surface used by the handler.
type Service interface {
	Create(ctx context.Context, r model.Rule) (model.Rule, error)
	Get(ctx context.Context, id string) (model.Rule, error)
	List(ctx context.Context, f store.RuleFilter) ([]model.Rule, error)
	Update(ctx context.Context, id string, p model.RulePatch) (model.Rule, error)
	Toggle(ctx context.Context, id string) (model.Rule, error)
	Delete(ctx context.Context, id string) (model.Rule, error)
	Sync(ctx context.Context, r model.Rule) (schedule.Summary, error)
	SyncAsync(r model.Rule)
}

// WriteResponse is returned by every rule mutation.
type WriteResponse struct {
	Rule      model.Rule        `json:"rule"`
	Sync      *schedule.Summary `json:"sync,omitempty"`
	SyncError string            `json:"sync_error,omitempty"`
	Async     bool              `json:"async,omitempty"`
}

type handler struct {
	svc Service
}

// Register mounts the rule routes under /api/rules.
func Register(r *mux.Router, svc Service) {
	h := &handler{svc: svc}
	sr := r.PathPrefix("/api/rules").Subrouter()
	sr.HandleFunc("", h.list).Methods(http.MethodGet)
	sr.HandleFunc("", h.create).Methods(http.MethodPost)
	sr.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
	sr.HandleFunc("/{id}", h.update).Methods(http.MethodPut)
	sr.HandleFunc("/{id}", h.delete).Methods(http.MethodDelete)
	sr.HandleFunc("/{id}/toggle", h.toggle).Methods(http.MethodPost)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RuleFilter{DeviceID: q.Get("device_id"), EnabledOnly: q.Get("enabled") == "true"}
	rules, err := h.svc.List(r.Context(), f)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if rules == nil {
		rules = []model.Rule{}
	}
	respond.JSON(w, http.StatusOK, rules)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, rule)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var in model.RulePatch
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, err)
		return
	}
	rule, err := h.svc.Create(r.Context(), model.NewRule(in))
	if err != nil {
		respond.Error(w, err)
		return
	}
	h.sync(w, r, http.StatusCreated, rule)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	var in model.RulePatch
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, err)
		return
	}
	rule, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		respond.Error(w, err)
		return
	}
	h.sync(w, r, http.StatusOK, rule)
}

func (h *handler) toggle(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.Toggle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respond.Error(w, err)
		return
	}
	h.sync(w, r, http.StatusOK, rule)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respond.Error(w, err)
		return
	}
	h.sync(w, r, http.StatusOK, rule)
}

// sync brings the schedule in line with the persisted rule. The rule is
// already stored, so a failed sync is reported next to it.
func (h *handler) sync(w http.ResponseWriter, r *http.Request, status int, rule model.Rule) {
	resp := WriteResponse{Rule: rule}
	if r.URL.Query().Get("async") == "true" {
		h.svc.SyncAsync(rule)
		resp.Async = true
		respond.JSON(w, status, resp)
		return
	}
	sum, err := h.svc.Sync(r.Context(), rule)
	if err != nil {
		resp.SyncError = err.Error()
	} else {
		resp.Sync = &sum
	}
	respond.JSON(w, status, resp)
}

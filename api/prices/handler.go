// Package prices exposes PVPC hourly prices, summary statistics and an
// HTML chart over HTTP.
package prices

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/cheaphours/api/respond"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/schedule"
)

// ExtremeHours is how many cheapest and most expensive hours Stats lists.
const ExtremeHours = 6

// Stats summarises a day of prices.
type Stats struct {
	Min           float64             `json:"min"`
	Max           float64             `json:"max"`
	Avg           float64             `json:"avg"`
	Cheapest      []model.HourlyPrice `json:"cheapest_hours"`
	MostExpensive []model.HourlyPrice `json:"most_expensive_hours"`
}

// Response is the body of GET /api/prices/{day}.
type Response struct {
	Date   string              `json:"date"`
	Prices []model.HourlyPrice `json:"prices"`
	Stats  *Stats              `json:"stats,omitempty"`
}

// ComputeStats returns the statistics of prices, or nil for an empty day.
// Ties keep the earlier hour first.
func ComputeStats(prices []model.HourlyPrice) *Stats {
	if len(prices) == 0 {
		return nil
	}
	values := make([]float64, len(prices))
	for i, p := range prices {
		values[i] = p.Price
	}
	byPrice := append([]model.HourlyPrice(nil), prices...)
	sort.SliceStable(byPrice, func(i, j int) bool {
		if byPrice[i].Price != byPrice[j].Price {
			return byPrice[i].Price < byPrice[j].Price
		}
		return byPrice[i].Hour < byPrice[j].Hour
	})
	n := min(ExtremeHours, len(byPrice))
	expensive := make([]model.HourlyPrice, 0, n)
	for i := len(byPrice) - 1; i >= len(byPrice)-n; i-- {
		expensive = append(expensive, byPrice[i])
	}
	return &Stats{
		Min:           floats.Min(values),
		Max:           floats.Max(values),
		Avg:           stat.Mean(values, nil),
		Cheapest:      byPrice[:n],
		MostExpensive: expensive,
	}
}

type handler struct {
	src   schedule.PriceSource
	clock schedule.Clock
}

// Register mounts the price routes under /api/prices.
func Register(r *mux.Router, src schedule.PriceSource, clock schedule.Clock) {
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	h := &handler{src: src, clock: clock}
	sr := r.PathPrefix("/api/prices").Subrouter()
	sr.HandleFunc("/{day}", h.get).Methods(http.MethodGet)
	sr.HandleFunc("/{day}/chart", h.chart).Methods(http.MethodGet)
}

// fetch resolves day as today, tomorrow or a YYYY-MM-DD date.
func (h *handler) fetch(ctx context.Context, day string) (model.DailyPrices, error) {
	switch day {
	case "today":
		return h.src.Today(ctx)
	case "tomorrow":
		return h.src.Tomorrow(ctx)
	}
	date, err := model.ParseDate(day, h.clock.Now().Location())
	if err != nil {
		return model.DailyPrices{}, fmt.Errorf("%w: day must be today, tomorrow or YYYY-MM-DD", respond.ErrBadRequest)
	}
	return h.src.ForDate(ctx, date)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	prices, err := h.fetch(r.Context(), mux.Vars(r)["day"])
	if err != nil {
		respond.Error(w, err)
		return
	}
	sorted := prices.Sorted()
	respond.JSON(w, http.StatusOK, Response{
		Date:   model.DateKey(prices.Date),
		Prices: sorted,
		Stats:  ComputeStats(sorted),
	})
}

func (h *handler) chart(w http.ResponseWriter, r *http.Request) {
	prices, err := h.fetch(r.Context(), mux.Vars(r)["day"])
	if err != nil {
		respond.Error(w, err)
		return
	}
	if len(prices.Prices) == 0 {
		respond.Error(w, errors.Join(schedule.ErrPricesUnavailable, errors.New("no prices to chart")))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int((5*time.Minute).Seconds())))
	if err := RenderChart(w, prices); err != nil {
		respond.Error(w, err)
	}
}

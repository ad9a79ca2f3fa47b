// Package respond writes JSON bodies and maps domain errors to HTTP status
// codes for the API handlers.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/core/store"
)

// ErrBadRequest marks malformed input.
var ErrBadRequest = errors.New("bad request")

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} with the status matching err.
func Error(w http.ResponseWriter, err error) {
	JSON(w, StatusOf(err), map[string]string{"error": err.Error()})
}

// StatusOf maps err to an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, schedule.ErrPricesUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Decode reads a JSON body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

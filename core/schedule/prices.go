package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/cheaphours/core/model"
)

// ErrPricesUnavailable marks a transient failure to obtain a day's prices.
// Callers report it as information and retry later.
var ErrPricesUnavailable = errors.New("prices not yet available")

// PriceSource returns the hourly prices of a day. Tomorrow's prices may not
// be published yet.
type PriceSource interface {
	Today(ctx context.Context) (model.DailyPrices, error)
	Tomorrow(ctx context.Context) (model.DailyPrices, error)
	ForDate(ctx context.Context, date time.Time) (model.DailyPrices, error)
}

// fetchPrices picks the fetch path of date relative to today.
func fetchPrices(ctx context.Context, src PriceSource, date, today time.Time) (model.DailyPrices, error) {
	switch model.DateKey(date) {
	case model.DateKey(today):
		return src.Today(ctx)
	case model.DateKey(today.AddDate(0, 0, 1)):
		return src.Tomorrow(ctx)
	}
	return src.ForDate(ctx, date)
}

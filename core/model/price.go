package model

import (
	"sort"
	"time"
)

// HoursPerDay is the number of hourly prices in a complete day.
const HoursPerDay = 24

// HourlyPrice is the price of one hour of the day in EUR/kWh.
type HourlyPrice struct {
	Hour  int     `json:"hour"`
	Price float64 `json:"price"`
}

// DailyPrices groups the hourly prices published for one calendar date.
// Fewer than 24 entries is a partial day, not an error.
type DailyPrices struct {
	Date   time.Time     `json:"date"`
	Prices []HourlyPrice `json:"prices"`
}

// Complete reports whether every hour of the day has a price.
func (d DailyPrices) Complete() bool {
	return len(d.Prices) >= HoursPerDay
}

// Sorted returns a copy of the prices ordered by hour.
func (d DailyPrices) Sorted() []HourlyPrice {
	out := append([]HourlyPrice(nil), d.Prices...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// PriceAt returns the price of the given hour, if published.
func (d DailyPrices) PriceAt(hour int) (float64, bool) {
	for _, p := range d.Prices {
		if p.Hour == hour {
			return p.Price, true
		}
	}
	return 0, false
}

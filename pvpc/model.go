package pvpc

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kilianp07/cheaphours/core/model"
)

// indicatorResponse is the body returned by the ESIOS indicators endpoint.
type indicatorResponse struct {
	Indicator indicator `json:"indicator"`
}

type indicator struct {
	Values []indicatorValue `json:"values"`
}

// indicatorValue is one hourly value in EUR/MWh. Datetime is ISO 8601 with
// the local offset, e.g. 2024-01-15T00:00:00.000+01:00.
type indicatorValue struct {
	Value    float64 `json:"value"`
	Datetime string  `json:"datetime"`
	GeoID    *int    `json:"geo_id,omitempty"`
}

// extractHour reads the hour of day from an ESIOS datetime string.
func extractHour(datetime string) (int, bool) {
	_, clock, ok := strings.Cut(datetime, "T")
	if !ok {
		return 0, false
	}
	hh, _, ok := strings.Cut(clock, ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h >= model.HoursPerDay {
		return 0, false
	}
	return h, true
}

// toHourly keeps values for geo (or without a geo id), converts them to
// EUR/kWh and orders them by hour. On the autumn clock change the local hour
// 02 is published twice; the first one, still in summer time, is kept.
func toHourly(values []indicatorValue, geo int) []model.HourlyPrice {
	out := make([]model.HourlyPrice, 0, len(values))
	seen := make(map[int]bool, model.HoursPerDay)
	for _, v := range values {
		if v.GeoID != nil && *v.GeoID != geo {
			continue
		}
		h, ok := extractHour(v.Datetime)
		if !ok || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, model.HourlyPrice{Hour: h, Price: v.Value / 1000})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

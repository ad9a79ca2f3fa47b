package pvpc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHour(t *testing.T) {
	cases := map[string]struct {
		in   string
		hour int
		ok   bool
	}{
		"offset":     {"2024-01-15T07:00:00.000+01:00", 7, true},
		"midnight":   {"2024-01-15T00:00:00", 0, true},
		"last":       {"2024-01-15T23:00:00.000+01:00", 23, true},
		"no clock":   {"2024-01-15", 0, false},
		"bad hour":   {"2024-01-15Txx:00:00", 0, false},
		"out of day": {"2024-01-15T24:00:00", 0, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h, ok := extractHour(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.hour, h)
		})
	}
}

func TestToHourlyFiltersGeoAndConverts(t *testing.T) {
	peninsula, canarias := GeoPeninsula, 8742
	values := []indicatorValue{
		{Value: 150, Datetime: "2024-01-15T01:00:00.000+01:00", GeoID: &peninsula},
		{Value: 90, Datetime: "2024-01-15T01:00:00.000+00:00", GeoID: &canarias},
		{Value: 120, Datetime: "2024-01-15T00:00:00.000+01:00"},
		{Value: 99, Datetime: "garbage", GeoID: &peninsula},
	}
	got := toHourly(values, GeoPeninsula)
	if assert.Len(t, got, 2) {
		assert.Equal(t, 0, got[0].Hour)
		assert.InDelta(t, 0.12, got[0].Price, 1e-9)
		assert.Equal(t, 1, got[1].Hour)
		assert.InDelta(t, 0.15, got[1].Price, 1e-9)
	}
}

func TestToHourlyClockChangeKeepsOneValuePerHour(t *testing.T) {
	// 27 October 2024 in Madrid: 02:00 occurs at +02:00 and again at +01:00.
	var values []indicatorValue
	for h := 0; h < 24; h++ {
		offset := "+01:00"
		if h <= 2 {
			offset = "+02:00"
		}
		values = append(values, indicatorValue{Value: 100 + float64(h), Datetime: fmt.Sprintf("2024-10-27T%02d:00:00.000%s", h, offset)})
		if h == 2 {
			values = append(values, indicatorValue{Value: 10, Datetime: "2024-10-27T02:00:00.000+01:00"})
		}
	}
	require.Len(t, values, 25)

	got := toHourly(values, GeoPeninsula)
	require.Len(t, got, 24)
	for h, p := range got {
		assert.Equal(t, h, p.Hour)
	}
	assert.InDelta(t, 0.102, got[2].Price, 1e-9)
}

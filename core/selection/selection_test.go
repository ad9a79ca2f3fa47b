package selection

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/cheaphours/core/model"
)

func dayPrices(f func(h int) float64) []model.HourlyPrice {
	out := make([]model.HourlyPrice, model.HoursPerDay)
	for h := range out {
		out[h] = model.HourlyPrice{Hour: h, Price: f(h)}
	}
	return out
}

func cheapMorning(h int) float64 {
	if h <= 5 {
		return 0.05
	}
	return 0.20
}

func hoursOf(prices []model.HourlyPrice) []int {
	out := make([]int, len(prices))
	for i, p := range prices {
		out[i] = p.Hour
	}
	return out
}

func TestFilterWindow(t *testing.T) {
	prices := dayPrices(func(int) float64 { return 0.1 })
	cases := []struct {
		name string
		w    Window
		want []int
	}{
		{"no bounds", Window{}, hoursOf(prices)},
		{"day window", Window{Start: model.Hour(8), End: model.Hour(11)}, []int{8, 9, 10}},
		{"midnight crossing", Window{Start: model.Hour(20), End: model.Hour(6)},
			[]int{0, 1, 2, 3, 4, 5, 20, 21, 22, 23}},
		{"start only", Window{Start: model.Hour(21)}, []int{21, 22, 23}},
		{"end only", Window{End: model.Hour(2)}, []int{0, 1}},
		{"empty", Window{Start: model.Hour(5), End: model.Hour(5)}, []int{}},
	}
	for _, c := range cases {
		got := hoursOf(FilterWindow(prices, c.w))
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: expected %v got %v", c.name, c.want, got)
		}
	}
}

func TestSelectScatteredCheapest(t *testing.T) {
	sel := Select(dayPrices(cheapMorning), Constraints{MaxHours: 3, MinContinuousHours: 1})
	assert.Equal(t, []int{0, 1, 2}, sel.Hours)
	assert.InDelta(t, 0.15, sel.TotalCost, 1e-9)
	assert.Equal(t, StrategyScattered, sel.Strategy)
}

func TestSelectScatteredOrdersChronologically(t *testing.T) {
	prices := dayPrices(func(h int) float64 { return float64(24-h) / 100 })
	sel := Select(prices, Constraints{MaxHours: 3, MinContinuousHours: 1})
	assert.Equal(t, []int{21, 22, 23}, sel.Hours)
	assert.InDelta(t, 0.06, sel.TotalCost, 1e-9)
}

func TestSelectScatteredFewerThanMax(t *testing.T) {
	w := Window{Start: model.Hour(10), End: model.Hour(12)}
	sel := Select(dayPrices(cheapMorning), Constraints{MaxHours: 5, MinContinuousHours: 1, Window: w})
	assert.Equal(t, []int{10, 11}, sel.Hours)
	assert.InDelta(t, 0.40, sel.TotalCost, 1e-9)
}

func TestSelectIgnoresRepeatedHour(t *testing.T) {
	prices := dayPrices(cheapMorning)
	prices = append(prices[:3], append([]model.HourlyPrice{{Hour: 2, Price: 0.01}}, prices[3:]...)...)

	sel := Select(prices, Constraints{MaxHours: 3, MinContinuousHours: 1})
	assert.Equal(t, []int{0, 1, 2}, sel.Hours)
	assert.InDelta(t, 0.15, sel.TotalCost, 1e-9)

	sel = Select(prices, Constraints{MaxHours: 3, MinContinuousHours: 3})
	assert.Equal(t, []int{0, 1, 2}, sel.Hours)
	assert.InDelta(t, 0.15, sel.TotalCost, 1e-9)
}

func TestSelectContinuousPrefersLongestCheapBlock(t *testing.T) {
	sel := Select(dayPrices(cheapMorning), Constraints{MaxHours: 4, MinContinuousHours: 2})
	assert.Equal(t, []int{0, 1, 2, 3}, sel.Hours)
	assert.InDelta(t, 0.20, sel.TotalCost, 1e-9)
	assert.Equal(t, StrategyContinuous, sel.Strategy)
}

func TestSelectContinuousTwoBlocks(t *testing.T) {
	prices := dayPrices(func(h int) float64 {
		switch h {
		case 2, 3:
			return 0.01
		case 14, 15:
			return 0.02
		}
		return 0.30
	})
	sel := Select(prices, Constraints{MaxHours: 4, MinContinuousHours: 2})
	assert.Equal(t, []int{2, 3, 14, 15}, sel.Hours)
	assert.InDelta(t, 0.06, sel.TotalCost, 1e-9)
}

func TestSelectContinuousAcrossMidnight(t *testing.T) {
	prices := dayPrices(func(h int) float64 {
		if h == 23 || h == 0 {
			return 0.01
		}
		return 0.20
	})
	w := Window{Start: model.Hour(20), End: model.Hour(6)}
	sel := Select(prices, Constraints{MaxHours: 2, MinContinuousHours: 2, Window: w})
	assert.Equal(t, []int{0, 23}, sel.Hours)
	assert.InDelta(t, 0.02, sel.TotalCost, 1e-9)
}

func TestSelectContinuousNoBlockLongEnough(t *testing.T) {
	w := Window{Start: model.Hour(10), End: model.Hour(12)}
	sel := Select(dayPrices(cheapMorning), Constraints{MaxHours: 4, MinContinuousHours: 3, Window: w})
	if !sel.Empty() || sel.TotalCost != 0 {
		t.Fatalf("expected empty selection, got %+v", sel)
	}
}

func TestSelectEmptyWindow(t *testing.T) {
	w := Window{Start: model.Hour(5), End: model.Hour(5)}
	sel := Select(dayPrices(cheapMorning), Constraints{MaxHours: 3, MinContinuousHours: 1, Window: w})
	if !sel.Empty() || sel.Strategy != StrategyNone {
		t.Fatalf("expected empty selection, got %+v", sel)
	}
}

// ringRuns returns the lengths of maximal runs of selected hours, treating
// 23 and 0 as adjacent when the window crosses midnight.
func ringRuns(hours []int, wrap bool) []int {
	set := map[int]bool{}
	for _, h := range hours {
		set[h] = true
	}
	if len(set) == model.HoursPerDay {
		return []int{model.HoursPerDay}
	}
	prev := func(h int) (int, bool) {
		if h == 0 {
			return 23, wrap
		}
		return h - 1, true
	}
	next := func(h int) (int, bool) {
		if h == 23 {
			return 0, wrap
		}
		return h + 1, true
	}
	var out []int
	for _, h := range hours {
		if p, ok := prev(h); ok && set[p] {
			continue
		}
		n := 1
		for cur := h; ; n++ {
			nx, ok := next(cur)
			if !ok || !set[nx] {
				break
			}
			cur = nx
		}
		out = append(out, n)
	}
	return out
}

func TestSelectProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 300; i++ {
		prices := dayPrices(func(int) float64 { return float64(rng.Intn(300)) / 1000 })
		max := 1 + rng.Intn(12)
		min := 1 + rng.Intn(max)
		var w Window
		if rng.Intn(2) == 0 {
			w = Window{Start: model.Hour(rng.Intn(24)), End: model.Hour(rng.Intn(24))}
		}
		c := Constraints{MaxHours: max, MinContinuousHours: min, Window: w}
		sel := Select(prices, c)

		if len(sel.Hours) > max {
			t.Fatalf("case %d: %d hours exceeds max %d", i, len(sel.Hours), max)
		}
		sum := 0.0
		for _, h := range sel.Hours {
			if !w.Contains(h) {
				t.Fatalf("case %d: hour %d outside window", i, h)
			}
			sum += prices[h].Price
		}
		assert.InDelta(t, sum, sel.TotalCost, 1e-9)
		if min > 1 {
			for _, n := range ringRuns(sel.Hours, w.CrossesMidnight()) {
				if n < min {
					t.Fatalf("case %d: run of %d shorter than min %d (%v)", i, n, min, sel.Hours)
				}
			}
		}
	}
}

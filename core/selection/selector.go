package selection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/cheaphours/core/model"
)

// Strategy names the algorithm used for a selection.
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategyScattered  Strategy = "scattered"
	StrategyContinuous Strategy = "continuous"
)

// Constraints are the rule parameters the selector honours.
type Constraints struct {
	MaxHours           int
	MinContinuousHours int
	Window             Window
}

// ConstraintsOf extracts the selection constraints of a rule.
func ConstraintsOf(r model.Rule) Constraints {
	return Constraints{
		MaxHours:           r.MaxHours,
		MinContinuousHours: r.MinContinuousHours,
		Window:             WindowOf(r),
	}
}

// Selection is the result of Select. Hours are sorted chronologically.
type Selection struct {
	Hours     []int    `json:"hours"`
	TotalCost float64  `json:"total_cost"`
	Strategy  Strategy `json:"strategy"`
}

// Empty reports whether no hour was selected.
func (s Selection) Empty() bool { return len(s.Hours) == 0 }

// Select returns the cheapest hours that satisfy c. When an hour is listed
// more than once only its first price counts.
func Select(prices []model.HourlyPrice, c Constraints) Selection {
	available := FilterWindow(uniqueHours(prices), c.Window)
	if len(available) == 0 || c.MaxHours <= 0 {
		return Selection{Strategy: StrategyNone}
	}
	if c.MinContinuousHours <= 1 {
		return scattered(available, c.MaxHours)
	}
	return continuous(available, c.MaxHours, c.MinContinuousHours, c.Window.CrossesMidnight())
}

// scattered takes the max cheapest hours. Equal prices go to the lower hour.
func scattered(prices []model.HourlyPrice, max int) Selection {
	sorted := append([]model.HourlyPrice(nil), prices...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Hour < sorted[j].Hour
	})
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	hours := make([]int, len(sorted))
	costs := make([]float64, len(sorted))
	for i, p := range sorted {
		hours[i] = p.Hour
		costs[i] = p.Price
	}
	sort.Ints(hours)
	return Selection{Hours: hours, TotalCost: floats.Sum(costs), Strategy: StrategyScattered}
}

func uniqueHours(prices []model.HourlyPrice) []model.HourlyPrice {
	seen := make(map[int]bool, len(prices))
	out := make([]model.HourlyPrice, 0, len(prices))
	for _, p := range prices {
		if seen[p.Hour] {
			continue
		}
		seen[p.Hour] = true
		out = append(out, p)
	}
	return out
}

type block struct {
	hours []int
	avg   float64
	order int
}

func continuous(prices []model.HourlyPrice, max, min int, wrap bool) Selection {
	priceOf := make(map[int]float64, len(prices))
	for _, p := range prices {
		priceOf[p.Hour] = p.Price
	}

	var blocks []block
	for _, run := range runs(priceOf, wrap) {
		for start := 0; start < len(run); start++ {
			for length := min; start+length <= len(run); length++ {
				hours := run[start : start+length]
				costs := make([]float64, len(hours))
				for i, h := range hours {
					costs[i] = priceOf[h]
				}
				blocks = append(blocks, block{
					hours: hours,
					avg:   roundAvg(floats.Sum(costs) / float64(length)),
					order: len(blocks),
				})
			}
		}
	}
	if len(blocks) == 0 {
		return Selection{Strategy: StrategyNone}
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].avg != blocks[j].avg {
			return blocks[i].avg < blocks[j].avg
		}
		if len(blocks[i].hours) != len(blocks[j].hours) {
			return len(blocks[i].hours) > len(blocks[j].hours)
		}
		return blocks[i].order < blocks[j].order
	})

	taken := make(map[int]bool, max)
	for _, b := range blocks {
		if len(taken) >= max {
			break
		}
		if len(taken)+len(b.hours) > max || overlaps(taken, b.hours) {
			continue
		}
		for _, h := range b.hours {
			taken[h] = true
		}
	}
	if len(taken) == 0 {
		return Selection{Strategy: StrategyNone}
	}

	hours := make([]int, 0, len(taken))
	costs := make([]float64, 0, len(taken))
	for h := range taken {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	for _, h := range hours {
		costs = append(costs, priceOf[h])
	}
	return Selection{Hours: hours, TotalCost: floats.Sum(costs), Strategy: StrategyContinuous}
}

// runs groups the available hours into maximal chronological runs. With wrap
// set, a run ending at 23 continues into a run starting at 0.
func runs(priceOf map[int]float64, wrap bool) [][]int {
	hours := make([]int, 0, len(priceOf))
	for h := range priceOf {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	var out [][]int
	var cur []int
	for _, h := range hours {
		if len(cur) > 0 && h != cur[len(cur)-1]+1 {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, h)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}

	if wrap && len(out) > 1 {
		first, last := out[0], out[len(out)-1]
		if first[0] == 0 && last[len(last)-1] == model.HoursPerDay-1 {
			merged := append(append([]int(nil), last...), first...)
			out = append([][]int{merged}, out[1:len(out)-1]...)
		}
	}
	return out
}

func overlaps(taken map[int]bool, hours []int) bool {
	for _, h := range hours {
		if taken[h] {
			return true
		}
	}
	return false
}

func roundAvg(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

package selection

import "github.com/kilianp07/cheaphours/core/model"

// Window bounds the hours considered for selection. Start is inclusive and
// End exclusive. A window whose start is after its end crosses midnight.
type Window struct {
	Start *int
	End   *int
}

// WindowOf returns the time window of a rule.
func WindowOf(r model.Rule) Window {
	return Window{Start: r.WindowStart, End: r.WindowEnd}
}

// Contains reports whether hour lies inside the window.
func (w Window) Contains(hour int) bool {
	switch {
	case w.Start != nil && w.End != nil:
		if *w.Start <= *w.End {
			return hour >= *w.Start && hour < *w.End
		}
		return hour >= *w.Start || hour < *w.End
	case w.Start != nil:
		return hour >= *w.Start
	case w.End != nil:
		return hour < *w.End
	}
	return true
}

// FilterWindow keeps the prices whose hour lies inside w.
func FilterWindow(prices []model.HourlyPrice, w Window) []model.HourlyPrice {
	if w.Start == nil && w.End == nil {
		return prices
	}
	out := make([]model.HourlyPrice, 0, len(prices))
	for _, p := range prices {
		if w.Contains(p.Hour) {
			out = append(out, p)
		}
	}
	return out
}

// CrossesMidnight reports whether the window wraps past hour 23.
func (w Window) CrossesMidnight() bool {
	return w.Start != nil && w.End != nil && *w.Start > *w.End
}

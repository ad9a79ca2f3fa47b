package prices

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/cheaphours/core/model"
)

const (
	cheapColor     = "#2e7d32"
	expensiveColor = "#c62828"
	regularColor   = "#5470c6"
)

// RenderChart writes an HTML bar chart of the day's hourly prices, with the
// cheapest and most expensive hours highlighted.
func RenderChart(w io.Writer, prices model.DailyPrices) error {
	sorted := prices.Sorted()
	st := ComputeStats(sorted)
	color := map[int]string{}
	if st != nil {
		for _, p := range st.MostExpensive {
			color[p.Hour] = expensiveColor
		}
		for _, p := range st.Cheapest {
			color[p.Hour] = cheapColor
		}
	}

	hours := make([]string, 0, len(sorted))
	items := make([]opts.BarData, 0, len(sorted))
	for _, p := range sorted {
		c, ok := color[p.Hour]
		if !ok {
			c = regularColor
		}
		hours = append(hours, fmt.Sprintf("%02d:00", p.Hour))
		items = append(items, opts.BarData{Value: p.Price, ItemStyle: &opts.ItemStyle{Color: c}})
	}

	bar := charts.NewBar()
	subtitle := ""
	if st != nil {
		subtitle = fmt.Sprintf("min %.4f / avg %.4f / max %.4f EUR/kWh", st.Min, st.Avg, st.Max)
	}
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "PVPC " + model.DateKey(prices.Date), Subtitle: subtitle}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hour"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "EUR/kWh"}),
	)
	bar.SetXAxis(hours).AddSeries("Price", items)
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render price chart: %w", err)
	}
	return nil
}

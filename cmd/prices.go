package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cheaphours/api/prices"
	"github.com/kilianp07/cheaphours/app"
	"github.com/kilianp07/cheaphours/core/model"
)

var chartPath string

var pricesCmd = &cobra.Command{
	Use:   "prices [today|tomorrow|YYYY-MM-DD]",
	Short: "Show the hourly PVPC prices of a day",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day := "today"
		if len(args) == 1 {
			day = args[0]
		}
		return withService(func(ctx context.Context, svc *app.Service) error {
			date, err := resolveDate(day, svc.Clock.Now())
			if err != nil {
				return err
			}
			daily, err := svc.Prices.ForDate(ctx, date)
			if err != nil {
				return err
			}
			if chartPath != "" {
				f, err := os.Create(chartPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", chartPath, err)
				}
				defer func() { _ = f.Close() }()
				if err := prices.RenderChart(f, daily); err != nil {
					return err
				}
			}
			sorted := daily.Sorted()
			return printJSON(cmd.OutOrStdout(), prices.Response{
				Date:   model.DateKey(daily.Date),
				Prices: sorted,
				Stats:  prices.ComputeStats(sorted),
			})
		})
	},
}

func init() {
	pricesCmd.Flags().StringVar(&chartPath, "chart", "", "also write an HTML chart to this file")
	rootCmd.AddCommand(pricesCmd)
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cheaphours/app"
	"github.com/kilianp07/cheaphours/core/model"
)

var calcOpts struct {
	ruleID        string
	date          string
	maxHours      int
	minContinuous int
	windowStart   int
	windowEnd     int
}

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Compute the cheapest hours for a rule without storing them",
	Long: "Compute the selection of a stored rule (--rule) or of an ad hoc rule\n" +
		"built from --max-hours, --min-continuous and --window-start/--window-end.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			return runCalculate(ctx, cmd, svc)
		})
	},
}

func init() {
	f := calculateCmd.Flags()
	f.StringVar(&calcOpts.ruleID, "rule", "", "stored rule id")
	f.StringVar(&calcOpts.date, "date", "tomorrow", "today, tomorrow or YYYY-MM-DD")
	f.IntVar(&calcOpts.maxHours, "max-hours", 4, "hours to select for an ad hoc rule")
	f.IntVar(&calcOpts.minContinuous, "min-continuous", 1, "minimum contiguous hours for an ad hoc rule")
	f.IntVar(&calcOpts.windowStart, "window-start", -1, "first allowed hour, -1 for none")
	f.IntVar(&calcOpts.windowEnd, "window-end", -1, "last allowed hour, -1 for none")
	rootCmd.AddCommand(calculateCmd)
}

func runCalculate(ctx context.Context, cmd *cobra.Command, svc *app.Service) error {
	date, err := resolveDate(calcOpts.date, svc.Clock.Now())
	if err != nil {
		return err
	}
	var rule model.Rule
	if calcOpts.ruleID != "" {
		if rule, err = svc.Rules.Get(ctx, calcOpts.ruleID); err != nil {
			return err
		}
	} else {
		rule = model.Rule{
			Name:               "ad hoc",
			DeviceID:           "cli",
			MaxHours:           calcOpts.maxHours,
			MinContinuousHours: calcOpts.minContinuous,
			Enabled:            true,
		}
		if calcOpts.windowStart >= 0 {
			rule.WindowStart = model.Hour(calcOpts.windowStart)
		}
		if calcOpts.windowEnd >= 0 {
			rule.WindowEnd = model.Hour(calcOpts.windowEnd)
		}
		rule.SetDefaults()
		if err := rule.Validate(); err != nil {
			return err
		}
	}
	sel, prices, err := svc.Regenerator.Calculate(ctx, rule, date)
	if err != nil {
		return fmt.Errorf("calculate %s: %w", model.DateKey(date), err)
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"date":      model.DateKey(date),
		"rule":      rule,
		"selection": sel,
		"prices":    prices.Sorted(),
	})
}

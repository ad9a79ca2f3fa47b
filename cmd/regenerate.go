package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cheaphours/app"
	"github.com/kilianp07/cheaphours/core/events"
)

var regenOpts struct {
	ruleID string
	date   string
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Regenerate scheduled actions for a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			date, err := resolveDate(regenOpts.date, svc.Clock.Now())
			if err != nil {
				return err
			}
			if regenOpts.ruleID == "" {
				b, err := svc.Orchestrator.GenerateForDate(ctx, date, events.TriggerManual)
				if perr := printJSON(cmd.OutOrStdout(), b); perr != nil {
					return perr
				}
				return err
			}
			rule, err := svc.Rules.Get(ctx, regenOpts.ruleID)
			if err != nil {
				return err
			}
			out, err := svc.Regenerator.Regenerate(ctx, rule, date, events.TriggerManual)
			if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
				return perr
			}
			return err
		})
	},
}

func init() {
	regenerateCmd.Flags().StringVar(&regenOpts.ruleID, "rule", "", "only regenerate this rule")
	regenerateCmd.Flags().StringVar(&regenOpts.date, "date", "today", "today, tomorrow or YYYY-MM-DD")
	rootCmd.AddCommand(regenerateCmd)
}

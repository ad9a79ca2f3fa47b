package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cheaphours/app"
	"github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/core/store"
)

var importSync bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Rule related commands",
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create the rules listed in a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := schedule.LoadRules(args[0])
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		return withService(func(ctx context.Context, svc *app.Service) error {
			out := cmd.OutOrStdout()
			for _, r := range rules {
				created, err := svc.Rules.Create(ctx, r)
				if err != nil {
					return fmt.Errorf("create rule %s: %w", r.Name, err)
				}
				msg := "created"
				if importSync {
					sum, err := svc.Rules.Sync(ctx, created)
					if err != nil {
						return fmt.Errorf("sync rule %s: %w", created.ID, err)
					}
					msg = sum.Message
				}
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", created.ID, created.Name, msg); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var rulesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			rules, err := svc.Rules.List(ctx, store.RuleFilter{})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDEVICE\tNAME\tHOURS\tENABLED")
			for _, r := range rules {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", r.ID, r.DeviceID, r.Name, r.MaxHours, r.Enabled)
			}
			return tw.Flush()
		})
	},
}

func init() {
	rulesImportCmd.Flags().BoolVar(&importSync, "sync", true, "generate today and tomorrow for each imported rule")
	rulesCmd.AddCommand(rulesImportCmd, rulesLsCmd)
	rootCmd.AddCommand(rulesCmd)
}

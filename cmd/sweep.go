package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cheaphours/app"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark elapsed pending actions as missed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			n, err := svc.Orchestrator.Sweep(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d actions marked missed\n", n)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

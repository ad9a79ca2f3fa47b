package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cheaphours/app"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/store"
	"github.com/kilianp07/cheaphours/pkg/export"
)

var exportOpts struct {
	date   string
	ruleID string
	status string
	format string
	output string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scheduled actions as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(exportOpts.format)
		if err != nil {
			return err
		}
		return withService(func(ctx context.Context, svc *app.Service) error {
			f := store.ActionFilter{RuleID: exportOpts.ruleID}
			if exportOpts.date != "all" {
				if f.Date, err = resolveDate(exportOpts.date, svc.Clock.Now()); err != nil {
					return err
				}
			}
			if exportOpts.status != "" {
				if f.Status, err = model.ParseStatus(exportOpts.status); err != nil {
					return err
				}
			}
			actions, err := svc.Store.ListActions(ctx, f)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if exportOpts.output != "" && exportOpts.output != "-" {
				file, err := os.Create(exportOpts.output)
				if err != nil {
					return fmt.Errorf("create %s: %w", exportOpts.output, err)
				}
				defer func() { _ = file.Close() }()
				w = file
			}
			return export.Write(w, format, actions)
		})
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOpts.date, "date", "today", "today, tomorrow, YYYY-MM-DD or all")
	f.StringVar(&exportOpts.ruleID, "rule", "", "only export this rule")
	f.StringVar(&exportOpts.status, "status", "", "only export this status")
	f.StringVarP(&exportOpts.format, "format", "f", "csv", "csv or json")
	f.StringVarP(&exportOpts.output, "output", "o", "-", "output file, - for stdout")
	rootCmd.AddCommand(exportCmd)
}

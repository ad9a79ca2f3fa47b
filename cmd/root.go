package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cheaphours/app"
	"github.com/kilianp07/cheaphours/config"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "cheaphours",
	Short:        "Schedule devices on the cheapest PVPC hours",
	RunE:         run,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openService()
	if err != nil {
		return err
	}
	defer closeService(svc)
	return svc.Run(ctx)
}

func openService() (*app.Service, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

func closeService(svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("service close: %v", err)
	}
}

// withService runs fn against a service whose mock price server, when
// configured, is serving for the duration of the call.
func withService(fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	spawn := func(f func() error) {
		go func() {
			if err := f(); err != nil {
				logger.New("main").Errorf("price mock: %v", err)
			}
		}()
	}
	if err := svc.ServePriceMock(ctx, spawn); err != nil {
		return err
	}
	return fn(ctx, svc)
}

// resolveDate parses today, tomorrow or YYYY-MM-DD relative to now.
func resolveDate(s string, now time.Time) (time.Time, error) {
	today := model.Day(now)
	switch s {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}
	d, err := model.ParseDate(s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be today, tomorrow or YYYY-MM-DD: %w", err)
	}
	return d, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

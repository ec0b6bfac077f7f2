// Package cli wires the feedsim command tree: init-db, simulate, replay,
// kpis, events.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rodolfodpk/feedsim/internal/config"
	"github.com/rodolfodpk/feedsim/internal/logging"
	"github.com/rodolfodpk/feedsim/pkg/feed"
	"github.com/rodolfodpk/feedsim/pkg/feed/postgres"
)

// Exit codes per the driver contract: 0 success, 2 usage error, 1 runtime
// failure.
const (
	exitOK      = 0
	exitUsage   = 2
	exitFailure = 1
)

var rootCmd = &cobra.Command{
	Use:   "feedsim",
	Short: color.CyanString("feedsim") + " - deterministic event-sourced feed simulator",
}

func init() {
	rootCmd.AddCommand(initDBCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(kpisCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if _, ok := err.(*usageError); ok {
			return exitUsage
		}
		return exitFailure
	}
	return exitOK
}

// usageError marks a cobra error as a usage problem rather than a runtime
// failure, so Execute maps it to exit code 2.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func newUsageError(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// openStore loads config, initializes logging, and opens the Postgres
// store — the common setup every subcommand needs.
func openStore(ctx context.Context) (feed.Store, *feed.Metrics, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.Log.Level)

	metrics := feed.NewMetrics(prometheus.NewRegistry())
	store, err := postgres.Open(ctx, cfg.DB.DSN(), metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return store, metrics, nil
}

func fatalf(format string, args ...any) {
	logging.Error().Msgf(format, args...)
	fmt.Fprintln(os.Stderr, color.RedString(format, args...))
}

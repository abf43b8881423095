// Package main provides the qac-eval binary: offline evaluation of query
// auto-completion rankings plus the data preparation steps that feed it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ricesearch/qac-eval/internal/bus"
	"github.com/ricesearch/qac-eval/internal/config"
	"github.com/ricesearch/qac-eval/internal/history"
	"github.com/ricesearch/qac-eval/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries state shared by subcommands. The constructors are swapped in tests.
type app struct {
	newBus   func(config.BusConfig, *logger.Logger) (bus.Bus, error)
	newStore func(config.HistoryConfig) (history.Store, error)
}

func newApp() *app {
	return &app{
		newBus:   bus.NewBus,
		newStore: history.NewStore,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qac-eval",
		Short: "Offline evaluation of query auto-completion rankings",
		Long: `qac-eval scores a completion model's ranked candidates against target
queries with Mean Reciprocal Rank and Success Rate at a cutoff, split by
whether each query was seen in a reference set.

Run 'qac-eval eval --help' for the evaluation flags.
Run 'qac-eval normalize|split|prefix' to prepare query logs.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		a.evalCmd(),
		a.normalizeCmd(),
		a.splitCmd(),
		a.prefixCmd(),
		a.historyCmd(),
		a.recordCmd(),
		versionCmd(),
	)

	return rootCmd
}

// loadConfig loads configuration and builds the logger for cmd.
// Logs go to the command's stderr so stdout carries only results.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	return cfg, logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "qac-eval %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studiowebux/chatload/internal/cli"
	"github.com/studiowebux/chatload/internal/config"
	"github.com/studiowebux/chatload/internal/scenario"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatload",
	Short: "chatload - load generator for the chat API",
	Long: `chatload drives the chat API with simulated users: session creation,
context-aware chat, history paging, session statistics and session listing.

Three user profiles run side by side (chat, high-frequency, low-frequency),
spread across the requested user count by weight.

Examples:
  chatload run --host http://localhost:3000                   # 1 user until Ctrl+C
  chatload run --host http://localhost:3000 -u 50 -r 10 -t 2m # Spike shape
  chatload run --preset load                                  # Use the 'load' preset
  chatload run --preset spike -t 30s                          # Preset with a shorter run
  chatload runs                                               # List past runs
  chatload mock --port 3000 --failure-rate 0.05               # Local chat API`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test",
	Long: `Run a load test against the chat API.

Values are taken from flags first, then from the settings file
(./chatload.yaml, ~/.chatload/settings.yaml or --config), then from the
preset, then from defaults.

Profiles: ` + strings.Join(scenario.ClassNames(), ", "),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runOpts.RunTimeSet = cmd.Flags().Changed("run-time")
		runOpts.Out = cmd.OutOrStdout()
		return cli.Run(context.Background(), runOpts)
	},
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the built-in run presets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cli.Presets(cmd.OutOrStdout())
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, show or delete past runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runsOpts.Out = cmd.OutOrStdout()
		return cli.Runs(runsOpts)
	},
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve an in-memory chat API for local runs",
	Long: `Serve an in-memory implementation of the chat endpoints.

Latency and failure injection make it useful for trying out runs
without a real backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mockOpts.Out = cmd.OutOrStdout()
		return cli.Mock(context.Background(), mockOpts)
	},
}

var (
	runOpts  cli.RunOptions
	runsOpts cli.RunsOptions
	mockOpts cli.MockOptions
)

func init() {
	// run flags
	f := runCmd.Flags()
	f.StringVar(&runOpts.Host, "host", "", "Target host (default http://localhost:3000)")
	f.IntVarP(&runOpts.Users, "users", "u", 0, "Number of simulated users (default 1)")
	f.Float64VarP(&runOpts.SpawnRate, "spawn-rate", "r", 0, "Users started per second (default 1)")
	f.DurationVarP(&runOpts.RunTime, "run-time", "t", 0, "Stop after this long, e.g. 2m (default: until interrupted)")
	f.StringVar(&runOpts.Preset, "preset", "", "Run preset: "+strings.Join(scenario.PresetNames(), ", "))
	f.StringVar(&runOpts.Name, "name", "", "Run name stored in the history")
	f.StringVar(&runOpts.Model, "model", "", "Model sent with chat requests")
	f.StringVarP(&runOpts.ConfigPath, "config", "c", "", "Settings file")
	f.StringVar(&runOpts.DBPath, "db", "", "SQLite database for run history")
	f.BoolVar(&runOpts.NoDB, "no-db", false, "Do not record the run")
	f.StringVar(&runOpts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.DurationVar(&runOpts.RequestTimeout, "request-timeout", 0, "Per-request timeout (default 30s)")
	f.StringSliceVar(&runOpts.Profiles, "profiles", nil, "Only run these profiles (comma-separated)")

	// runs flags
	runsCmd.Flags().StringVar(&runsOpts.DBPath, "db", "", "SQLite database for run history")
	runsCmd.Flags().IntVarP(&runsOpts.Limit, "limit", "n", 20, "Number of runs to list (0 for all)")
	runsCmd.Flags().Int64Var(&runsOpts.Show, "show", 0, "Show one run in detail")
	runsCmd.Flags().Int64Var(&runsOpts.Delete, "delete", 0, "Delete one run and its metrics")
	runsCmd.MarkFlagsMutuallyExclusive("show", "delete")

	// mock flags
	mockCmd.Flags().StringVarP(&mockOpts.ConfigPath, "config", "c", "", "Mock config file (.yaml or .json)")
	mockCmd.Flags().StringVar(&mockOpts.InitPath, "init", "", "Write a starter config to this path and exit")
	mockCmd.Flags().StringVar(&mockOpts.Host, "host", "", "Listen host (default localhost)")
	mockCmd.Flags().IntVarP(&mockOpts.Port, "port", "p", 0, "Listen port (default 3000)")
	mockCmd.Flags().DurationVar(&mockOpts.Delay, "delay", 0, "Latency added to every response")
	mockCmd.Flags().Float64Var(&mockOpts.FailureRate, "failure-rate", 0, "Share of requests answered with a failure (0-1)")

	// Logging flags shared by run and mock
	for _, cmd := range []*cobra.Command{runCmd, mockCmd} {
		level := &runOpts.LogLevel
		dev := &runOpts.Development
		if cmd == mockCmd {
			level, dev = &mockOpts.LogLevel, &mockOpts.Development
		}
		cmd.Flags().StringVar(level, "log-level", "", "Log level (debug, info, warn, error)")
		cmd.Flags().BoolVar(dev, "dev-log", false, "Human-readable console logs")
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mockCmd)
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/studiowebux/chatload/internal/config"
	"github.com/studiowebux/chatload/internal/loadtest"
	"github.com/studiowebux/chatload/internal/logging"
	"github.com/studiowebux/chatload/internal/report"
	"github.com/studiowebux/chatload/internal/scenario"
	"github.com/studiowebux/chatload/internal/types"
)

// RunOptions contains the flags of the run command.
// Zero values mean the flag was not given.
type RunOptions struct {
	Name           string
	Host           string
	Model          string
	Users          int
	SpawnRate      float64
	RunTime        time.Duration
	RunTimeSet     bool // RunTime was given explicitly, zero included
	Preset         string
	ConfigPath     string
	DBPath         string
	NoDB           bool
	MetricsAddr    string
	LogLevel       string
	Development    bool
	RequestTimeout time.Duration
	Profiles       []string

	Out io.Writer // Console output, defaults to stdout
}

// runPlan is everything Run needs once flags, settings and defaults are merged
type runPlan struct {
	config      *loadtest.Config
	settings    *config.Settings
	classes     []*loadtest.UserClass
	dbPath      string
	metricsAddr string
}

// Run executes a load test until the run time elapses or the process is interrupted
func Run(ctx context.Context, opts RunOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	settings, err := loadSettings(opts.ConfigPath)
	if err != nil {
		return err
	}
	plan, err := buildPlan(opts, settings)
	if err != nil {
		return err
	}

	logger, err := logging.New(plan.settings.LogLevel, plan.settings.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var manager *loadtest.Manager
	if plan.dbPath != "" {
		manager, err = loadtest.NewManager(plan.dbPath)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer manager.Close()
	}

	env := loadtest.NewEnvironment(loadtest.EnvironmentOptions{
		Host:           plan.config.Host,
		RequestTimeout: plan.config.GetRequestTimeout(),
		MaxConns:       plan.config.Users,
		Logger:         logger,
	})
	report.Register(env, out)

	runner, err := loadtest.NewRunner(env, plan.config, plan.classes, manager)
	if err != nil {
		return err
	}

	if plan.metricsAddr != "" {
		exporter := loadtest.NewExporter(env)
		exporter.TrackUsers(runner.ActiveUsers)
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()
		go func() {
			if err := exporter.Serve(metricsCtx, plan.metricsAddr); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("starting load test",
		zap.String("host", plan.config.Host),
		zap.String("preset", plan.config.Preset),
		zap.Int("users", plan.config.Users),
		zap.Float64("spawn_rate", plan.config.SpawnRate),
		zap.Duration("run_time", plan.config.RunTime))

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("load test failed: %w", err)
	}

	run := runner.GetRun()
	if manager != nil {
		fmt.Fprintf(out, "\nRun #%d saved (%s)\n", run.ID, run.Status)
	}
	return nil
}

// loadSettings reads the explicit settings file, or the local/global one if present
func loadSettings(path string) (*config.Settings, error) {
	if path != "" {
		return config.LoadSettings(path, true)
	}
	return config.LoadSettings(config.GetSettingsFilePath(), false)
}

// buildPlan applies flag > settings file > preset > default precedence
func buildPlan(opts RunOptions, settings *config.Settings) (*runPlan, error) {
	settings.Merge()

	if opts.Host != "" {
		settings.Host = opts.Host
	}
	if opts.Model != "" {
		settings.Model = opts.Model
	}
	if opts.RequestTimeout > 0 {
		settings.RequestTimeout = opts.RequestTimeout
	}
	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}
	if opts.Development {
		settings.Development = true
	}
	if opts.DBPath != "" {
		settings.Database = opts.DBPath
	}
	if opts.MetricsAddr != "" {
		settings.MetricsAddr = opts.MetricsAddr
	}

	cfg := &loadtest.Config{
		Name:           opts.Name,
		Host:           settings.Host,
		Users:          1,
		SpawnRate:      1,
		RequestTimeout: settings.RequestTimeout,
	}
	if opts.Preset != "" {
		preset, err := scenario.LookupPreset(opts.Preset)
		if err != nil {
			return nil, err
		}
		runTime, err := preset.Duration()
		if err != nil {
			return nil, err
		}
		cfg.Preset = preset.Name
		cfg.Users = preset.Users
		cfg.SpawnRate = preset.SpawnRate
		cfg.RunTime = runTime
	}
	if opts.Users > 0 {
		cfg.Users = opts.Users
	}
	if opts.SpawnRate > 0 {
		cfg.SpawnRate = opts.SpawnRate
	}
	if opts.RunTimeSet {
		cfg.RunTime = opts.RunTime
	}
	if cfg.Name == "" {
		cfg.Name = defaultRunName(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	classes, err := scenario.Classes(scenario.Options{
		Model:     settings.Model,
		Overrides: settings.Profiles,
	})
	if err != nil {
		return nil, err
	}
	classes, err = scenario.Select(classes, opts.Profiles)
	if err != nil {
		return nil, err
	}

	plan := &runPlan{
		config:      cfg,
		settings:    settings,
		classes:     classes,
		metricsAddr: settings.MetricsAddr,
	}
	if !opts.NoDB {
		plan.dbPath = settings.Database
	}
	return plan, nil
}

func defaultRunName(cfg *loadtest.Config) string {
	if cfg.Preset != "" {
		return cfg.Preset + " " + time.Now().Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%du %s", cfg.Users, time.Now().Format("2006-01-02 15:04"))
}

// RunsOptions contains the flags of the runs command
type RunsOptions struct {
	DBPath string
	Limit  int
	Show   int64 // Print one run in detail
	Delete int64 // Delete one run
	Out    io.Writer
}

// Runs lists, shows or deletes persisted runs
func Runs(opts RunsOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = config.DatabasePath
	}

	manager, err := loadtest.NewManager(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer manager.Close()

	switch {
	case opts.Delete > 0:
		if _, err := manager.GetRun(opts.Delete); err != nil {
			return err
		}
		if err := manager.DeleteRun(opts.Delete); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run #%d\n", opts.Delete)
		return nil
	case opts.Show > 0:
		run, err := manager.GetRun(opts.Show)
		if err != nil {
			return err
		}
		endpoints, err := manager.GetEndpointSummary(run.ID)
		if err != nil {
			return err
		}
		report.PrintRunDetails(out, run, endpoints)
		return nil
	}

	runs, err := manager.ListRuns(opts.Limit)
	if err != nil {
		return err
	}
	report.PrintRuns(out, runs)
	return nil
}

// Presets prints the built-in presets
func Presets(out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	names := scenario.PresetNames()
	presets := make([]types.Preset, 0, len(names))
	for _, name := range names {
		presets = append(presets, scenario.Presets[name])
	}
	report.PrintPresets(out, presets)
}

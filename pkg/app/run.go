// Package app provides the shared entry point for the cadence binary:
// configuration loading, component wiring, the long-running daemon loop,
// and one-shot job execution for the run subcommand.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flemzord/cadence/internal/config"
	"github.com/flemzord/cadence/internal/jobs"
	"github.com/flemzord/cadence/internal/runner"
	"github.com/flemzord/cadence/internal/scheduler"
)

// shutdownGrace bounds how long in-flight jobs may run after a shutdown
// signal before the process exits anyway.
const shutdownGrace = 30 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.DefaultPath is used.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, wires and starts every component, and blocks
// until SIGINT or SIGTERM.
func Run(params RunParams) error {
	cfg, logger, err := load(params)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sys, err := buildSystem(ctx, cfg, params.Version, logger)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := sys.Start(ctx); err != nil {
		return err
	}
	logger.Info("cadence started",
		"version", params.Version,
		"timezone", cfg.Timezone,
		"jobs", config.EnabledJobs(cfg),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	sys.Stop(stopCtx)

	logger.Info("shutdown complete")
	return nil
}

// RunOnce executes one job immediately and returns once it finishes.
// date simulates a capsule job's usual firing instant for the given
// civil day; dryRun prints the would-be writes instead of storing them.
// An empty window is a normal completion, not an error.
func RunOnce(params RunParams, jobID, date string, dryRun bool) error {
	cfg, logger, err := load(params)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sys, err := buildSystem(ctx, cfg, params.Version, logger)
	if err != nil {
		return err
	}
	defer sys.Close()

	deps := sys.deps
	if date != "" {
		now, err := simulatedNow(jobID, date, sys.loc)
		if err != nil {
			return err
		}
		logger.Info("simulating firing instant", "now", now)
		deps.Now = func() time.Time { return now }
	}
	if dryRun {
		deps.Summaries = printSummaries{}
		deps.Cache = printCache{}
	}

	job := buildJob(jobID, cfg, deps, logger)
	if job == nil {
		return fmt.Errorf("app: unknown job %q (known: %v)", jobID, knownJobs())
	}

	timeout := time.Duration(0)
	if tj, ok := job.(interface{ Timeout() time.Duration }); ok {
		timeout = tj.Timeout()
	}

	outcome := sys.runner.Run(ctx, job.ID(), timeout, job.Run)
	if outcome.Status != runner.StatusSuccess {
		return fmt.Errorf("app: job %s ended with status %s: %w", jobID, outcome.Status, outcome.Err)
	}
	return nil
}

// CheckConfig loads and validates the configuration without starting
// anything.
func CheckConfig(path string) error {
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	return config.Validate(cfg)
}

func load(params RunParams) (*config.Config, *slog.Logger, error) {
	path := params.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	}))
	return cfg, logger, nil
}

// simulatedNow maps a civil date to the instant a capsule job would
// normally fire for it: 22:00 that day for daytime, 06:00 the next
// morning for nighttime.
func simulatedNow(jobID, date string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("app: parse date %q: %w", date, err)
	}

	switch jobID {
	case "capsule-daytime":
		return time.Date(day.Year(), day.Month(), day.Day(), 22, 0, 0, 0, loc), nil
	case "capsule-nighttime":
		next := day.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), 6, 0, 0, 0, loc), nil
	default:
		return time.Time{}, errors.New("app: --date is only meaningful for capsule jobs")
	}
}

func knownJobs() []string {
	return []string{"capsule-daytime", "capsule-nighttime", "today-so-far", "hud", "backup"}
}

// printSummaries and printCache are the dry-run sinks: they write the
// would-be records to stdout instead of the stores.
type printSummaries struct{}

func (printSummaries) Upsert(_ context.Context, start, end time.Time, text string, count int) error {
	fmt.Printf("--- would store summary [%s, %s) (%d memories) ---\n%s\n",
		start.Format(time.RFC3339), end.Format(time.RFC3339), count, text)
	return nil
}

type printCache struct{}

func (printCache) SetWithExpiry(_ context.Context, key, value string, ttl time.Duration) error {
	fmt.Printf("--- would cache %s (ttl %s) ---\n%s\n", key, ttl, value)
	return nil
}

func (printCache) SetAll(_ context.Context, entries map[string]string, ttl time.Duration) error {
	for key, value := range entries {
		fmt.Printf("--- would cache %s (ttl %s) ---\n%s\n", key, ttl, value)
	}
	return nil
}

var (
	_ jobs.SummaryWriter = printSummaries{}
	_ jobs.CacheWriter   = printCache{}
	_ scheduler.Job      = (*jobs.Capsule)(nil)
)

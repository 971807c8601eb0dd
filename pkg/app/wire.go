package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/flemzord/cadence/internal/admin"
	"github.com/flemzord/cadence/internal/config"
	"github.com/flemzord/cadence/internal/continuity"
	"github.com/flemzord/cadence/internal/jobs"
	"github.com/flemzord/cadence/internal/kv"
	"github.com/flemzord/cadence/internal/memstore"
	"github.com/flemzord/cadence/internal/observe"
	"github.com/flemzord/cadence/internal/reflect"
	"github.com/flemzord/cadence/internal/runner"
	"github.com/flemzord/cadence/internal/scheduler"
	"github.com/flemzord/cadence/internal/storage"
)

// system holds every wired component. Construction is all-or-nothing:
// any boundary that cannot be reached is a setup failure, reported
// before the scheduler ever starts.
type system struct {
	cfg    *config.Config
	loc    *time.Location
	logger *slog.Logger

	obs   *observe.Observer
	db    *storage.DB
	mem   *memstore.Gateway
	cache *kv.Cache

	runner *runner.Runner
	sched  *scheduler.Scheduler
	admin  *admin.Server

	deps jobs.Deps
	jobs []scheduler.Job
}

// buildSystem opens every boundary and constructs the jobs the config
// enables. Nothing is started yet.
func buildSystem(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*system, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app: load timezone %q: %w", cfg.Timezone, err)
	}

	obs, err := observe.Setup(ctx, cfg.Observability, logger)
	if err != nil {
		return nil, err
	}

	sys := &system{cfg: cfg, loc: loc, logger: logger, obs: obs}

	sys.db, err = storage.Open(cfg.Storage, cfg.DataDir, logger)
	if err != nil {
		sys.Close()
		return nil, err
	}

	sys.mem, err = memstore.Open(ctx, cfg.Memory.DSN, loc)
	if err != nil {
		sys.Close()
		return nil, err
	}

	if cfg.Cache.URL != "" {
		sys.cache, err = kv.Open(cfg.Cache)
		if err != nil {
			sys.Close()
			return nil, err
		}
	}

	identity, err := loadIdentity(cfg.Reflection.IdentityPath, logger)
	if err != nil {
		sys.Close()
		return nil, err
	}

	sys.deps = jobs.Deps{
		Memory:     sys.mem,
		Summaries:  sys.db.Summaries(),
		Continuity: continuity.NewResolver(sys.db.Summaries()),
		Reflector:  reflect.NewInvoker(cfg.Reflection, identity),
		Now:        func() time.Time { return time.Now().In(loc) },
		Logger:     logger,
	}
	if sys.cache != nil {
		sys.deps.Cache = sys.cache
	}

	sys.jobs = buildJobs(cfg, sys.deps, logger)

	sys.runner = runner.New(obs)
	sys.sched = scheduler.New(scheduler.Config{
		TickInterval: cfg.Scheduler.TickInterval,
		MisfireGrace: cfg.Scheduler.MisfireGrace,
		Location:     loc,
		Logger:       logger,
	}, runner.NewExecutor(sys.runner), sys.db.Fires())

	for _, job := range sys.jobs {
		if err := sys.sched.Register(job); err != nil {
			sys.Close()
			return nil, err
		}
	}

	if !cfg.Admin.Disabled {
		var pinger admin.CachePinger
		if sys.cache != nil {
			pinger = sys.cache
		}
		sys.admin = admin.New(admin.Options{
			Addr:      cfg.Admin.Addr,
			Version:   version,
			Jobs:      config.EnabledJobs(cfg),
			Summaries: sys.db.Summaries(),
			Cache:     pinger,
			Metrics:   obs.Metrics.Handler(),
			Logger:    logger,
		})
	}

	return sys, nil
}

// buildJobs constructs the enabled jobs in registration order.
func buildJobs(cfg *config.Config, deps jobs.Deps, logger *slog.Logger) []scheduler.Job {
	var out []scheduler.Job
	for _, id := range config.EnabledJobs(cfg) {
		out = append(out, buildJob(id, cfg, deps, logger))
	}
	return out
}

// buildJob constructs one job by id. Ids come from config.EnabledJobs or
// the run subcommand; an unknown id is a programming error upstream.
func buildJob(id string, cfg *config.Config, deps jobs.Deps, logger *slog.Logger) scheduler.Job {
	switch id {
	case "capsule-daytime":
		return jobs.NewDaytimeCapsule(deps)
	case "capsule-nighttime":
		return jobs.NewNighttimeCapsule(deps)
	case "today-so-far":
		return jobs.NewToday(deps)
	case "hud":
		return jobs.NewHUD(cfg.Jobs.HUD, deps.Cache, nil, deps)
	case "backup":
		return jobs.NewBackup(cfg.Jobs.Backup, logger)
	default:
		return nil
	}
}

// loadIdentity reads the optional identity file used as the generation
// system prompt.
func loadIdentity(path string, logger *slog.Logger) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("app: read identity file: %w", err)
	}
	logger.Info("identity loaded", "path", path, "size", len(raw))
	return string(raw), nil
}

// Start launches the scheduler and, when enabled, the admin listener.
func (s *system) Start(ctx context.Context) error {
	if err := s.sched.Start(ctx); err != nil {
		return err
	}
	if s.admin != nil {
		if err := s.admin.Start(ctx); err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = s.sched.Stop(stopCtx)
			return err
		}
	}
	return nil
}

// Stop shuts components down in reverse order, bounded by ctx.
func (s *system) Stop(ctx context.Context) {
	if s.admin != nil {
		if err := s.admin.Stop(ctx); err != nil {
			s.logger.Error("admin shutdown failed", "error", err)
		}
	}
	if err := s.sched.Stop(ctx); err != nil {
		s.logger.Error("scheduler shutdown failed", "error", err)
	}
	if err := s.obs.Shutdown(ctx); err != nil {
		s.logger.Error("trace flush failed", "error", err)
	}
}

// Close releases connections. Safe on a partially built system.
func (s *system) Close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("cache close failed", "error", err)
		}
	}
	if s.mem != nil {
		s.mem.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("storage close failed", "error", err)
		}
	}
}

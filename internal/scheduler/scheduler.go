// Package scheduler is cadence's trigger engine. A single dispatch loop
// ticks on a sub-minute granularity and compares the clock against each
// registered job's cron schedule. Job bodies run on their own goroutines;
// per-job overlap is prevented structurally with an atomic Idle→Running
// compare-and-set, never a global lock.
//
// Missed firings are coalesced: however many trigger instants elapsed
// while the process was stalled or down, at most one catch-up run is
// dispatched, and only if the most recent missed instant is still inside
// the misfire grace window. Older misses are dropped silently.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one schedulable unit of work.
type Job interface {
	// ID returns a unique, stable identifier (used for run suppression,
	// the fire journal, and observability correlation).
	ID() string

	// Schedule returns a 5-field cron expression ("30 7-21 * * *") or an
	// interval descriptor ("@every 10m").
	Schedule() string

	// Run executes the job body. The context carries the job's deadline;
	// implementations must honor cancellation at every blocking call.
	Run(ctx context.Context) error
}

// Executor runs one job firing to completion. The implementation owns
// failure containment: Execute must never panic and never propagate a
// job failure back into the dispatch loop.
type Executor interface {
	Execute(ctx context.Context, job Job)
}

// FireJournal persists the last handled trigger instant per job so that
// a restarted scheduler can see firings it slept through.
type FireJournal interface {
	LastFire(ctx context.Context, jobID string) (time.Time, bool, error)
	RecordFire(ctx context.Context, jobID string, firedAt time.Time) error
}

// Sentinel errors.
var (
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrStarted        = errors.New("scheduler: cannot register after start")
)

// Config holds scheduler configuration.
type Config struct {
	// TickInterval is the dispatch loop granularity. Default 10s.
	TickInterval time.Duration

	// MisfireGrace is the maximum lateness after a missed trigger within
	// which a catch-up run is still dispatched. Default 1h.
	MisfireGrace time.Duration

	// Location is the timezone cron expressions are evaluated in.
	// Default UTC.
	Location *time.Location

	// Now is the clock, injectable for testing. Default time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 10 * time.Second
	}
	if c.MisfireGrace <= 0 {
		c.MisfireGrace = time.Hour
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// specParser accepts standard 5-field expressions plus @every descriptors.
var specParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// entry is the per-job state machine: Idle -> Running -> Idle.
type entry struct {
	job      Job
	schedule cron.Schedule
	running  atomic.Bool // true while a run is in flight
	next     time.Time   // next trigger instant; zero until primed
}

// Scheduler owns the job registry and the dispatch loop.
type Scheduler struct {
	cfg     Config
	exec    Executor
	journal FireJournal

	mu      sync.Mutex
	entries []*entry
	ids     map[string]struct{}
	started bool
	cancel  context.CancelFunc

	wg sync.WaitGroup // in-flight job bodies
}

// New creates a Scheduler dispatching through exec and journaling fires
// through journal.
func New(cfg Config, exec Executor, journal FireJournal) *Scheduler {
	return &Scheduler{
		cfg:     cfg.withDefaults(),
		exec:    exec,
		journal: journal,
		ids:     make(map[string]struct{}),
	}
}

// Register adds a job. Must be called before Start; duplicate ids and
// invalid schedule expressions are rejected.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrStarted
	}

	id := job.ID()
	if _, exists := s.ids[id]; exists {
		return fmt.Errorf("scheduler: duplicate job id %q", id)
	}

	schedule, err := specParser.Parse(job.Schedule())
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule for job %q: %w", id, err)
	}

	s.ids[id] = struct{}{}
	s.entries = append(s.entries, &entry{job: job, schedule: schedule})
	return nil
}

// Start primes each job from the fire journal (dispatching at most one
// catch-up run per job) and launches the dispatch loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	now := s.cfg.Now().In(s.cfg.Location)

	for _, e := range s.entries {
		s.prime(ctx, e, now)
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.cfg.Logger.Info("scheduler started",
		"jobs", len(s.entries),
		"tick", s.cfg.TickInterval,
		"misfire_grace", s.cfg.MisfireGrace,
	)
	return nil
}

// Stop cancels the dispatch loop and waits for in-flight job bodies,
// bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cfg.Logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

// prime establishes e.next and, when the journal shows trigger instants
// elapsed while the process was down, dispatches at most one catch-up run.
func (s *Scheduler) prime(ctx context.Context, e *entry, now time.Time) {
	e.next = e.schedule.Next(now)

	if s.journal == nil {
		return
	}

	last, ok, err := s.journal.LastFire(ctx, e.job.ID())
	if err != nil {
		s.cfg.Logger.Error("fire journal read failed, skipping catch-up",
			"job", e.job.ID(), "error", err)
		return
	}
	if !ok {
		// First run ever: nothing was missed.
		return
	}

	missed, count := elapsed(e.schedule, last.In(s.cfg.Location), now)
	if count == 0 {
		return
	}

	if now.Sub(missed) > s.cfg.MisfireGrace {
		// Too stale for a catch-up; drop without error.
		s.cfg.Logger.Debug("missed firing outside grace window, dropped",
			"job", e.job.ID(), "missed", missed, "count", count)
		return
	}

	s.cfg.Logger.Info("dispatching catch-up run for missed firings",
		"job", e.job.ID(), "missed_count", count, "latest_missed", missed)
	s.dispatch(ctx, e, missed)
}

// loop is the single trigger-evaluation loop.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, s.cfg.Now().In(s.cfg.Location))
		}
	}
}

// tick evaluates every job's trigger against now and dispatches the due
// ones. If several trigger instants elapsed since the previous tick they
// coalesce into a single firing at the most recent instant.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	entries := s.entries
	s.mu.Unlock()

	for _, e := range entries {
		if e.next.IsZero() || now.Before(e.next) {
			continue
		}

		// Coalesce everything due up to now into the latest instant.
		fireAt := e.next
		if latest, n := elapsed(e.schedule, e.next, now); n > 0 {
			fireAt = latest
			s.cfg.Logger.Warn("coalescing missed firings",
				"job", e.job.ID(), "missed", n+1, "fire_at", fireAt)
		}
		e.next = e.schedule.Next(now)

		if now.Sub(fireAt) > s.cfg.MisfireGrace {
			s.cfg.Logger.Debug("firing outside grace window, dropped",
				"job", e.job.ID(), "fire_at", fireAt)
			continue
		}

		s.dispatch(ctx, e, fireAt)
	}
}

// dispatch moves the entry Idle -> Running and starts the body. A firing
// that arrives while the previous run is still in flight is dropped
// entirely, not queued.
func (s *Scheduler) dispatch(ctx context.Context, e *entry, fireAt time.Time) {
	if !e.running.CompareAndSwap(false, true) {
		s.cfg.Logger.Warn("job still running, dropping firing",
			"job", e.job.ID(), "fire_at", fireAt)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer e.running.Store(false)

		s.exec.Execute(ctx, e.job)

		if s.journal != nil {
			if err := s.journal.RecordFire(ctx, e.job.ID(), fireAt); err != nil {
				s.cfg.Logger.Error("fire journal write failed",
					"job", e.job.ID(), "error", err)
			}
		}
	}()
}

// elapsed returns the most recent trigger instant in (after, now] and
// how many instants fall in that interval. Zero count means no trigger
// elapsed.
func elapsed(schedule cron.Schedule, after, now time.Time) (time.Time, int) {
	var latest time.Time
	count := 0
	for t := schedule.Next(after); !t.IsZero() && !t.After(now); t = schedule.Next(t) {
		latest = t
		count++
	}
	return latest, count
}

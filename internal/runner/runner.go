// Package runner wraps a single job execution: it opens an observability
// span, enforces the job's timeout ceiling, classifies the terminal
// outcome, and records it. No failure of any kind escapes this boundary
// into the scheduler — that is the failure-containment contract the rest
// of the system relies on.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime/debug"
	"strings"
	"time"

	"github.com/flemzord/cadence/internal/observe"
)

// Status is the terminal classification of one job run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusProcessFailure Status = "process_failure"
	StatusTimeout        Status = "timeout"
	StatusException      Status = "exception"
)

// stderrTailLines bounds how much captured process output is kept for
// diagnosis.
const stderrTailLines = 10

// Outcome describes how a job run ended. It is transient: consumed by
// observability, never persisted.
type Outcome struct {
	Status     Status
	Duration   time.Duration
	ExitCode   int      // set for StatusProcessFailure
	StderrTail []string // set for StatusProcessFailure
	Err        error    // set for every non-success status
}

// ProcessError reports a non-zero exit of an external process invoked
// inside a job body. Jobs that shell out wrap the failure in one of
// these so the runner can classify it and keep the error output tail.
type ProcessError struct {
	Cmd      string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("runner: %s exited with code %d", e.Cmd, e.ExitCode)
}

// Runner executes job bodies under the containment contract.
type Runner struct {
	obs *observe.Observer
}

// New creates a Runner reporting through obs.
func New(obs *observe.Observer) *Runner {
	return &Runner{obs: obs}
}

// Run executes body with a deadline of timeout and classifies the result.
// It never returns an error and never panics; whatever happens inside the
// body ends up in the Outcome and the observability stream.
func (r *Runner) Run(ctx context.Context, jobID string, timeout time.Duration, body func(context.Context) error) Outcome {
	ctx, span := r.obs.Tracer.Start(ctx, "cadence.job."+jobID)
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := r.invoke(ctx, body)
	outcome := classify(err)
	outcome.Duration = time.Since(start)

	span.SetAttributes(observe.StatusAttr(string(outcome.Status)))
	r.obs.Metrics.JobRuns.WithLabelValues(jobID, string(outcome.Status)).Inc()
	r.obs.Metrics.JobDuration.WithLabelValues(jobID).Observe(outcome.Duration.Seconds())

	switch outcome.Status {
	case StatusSuccess:
		r.obs.Logger.Info("job completed", "job", jobID, "duration", outcome.Duration)
	case StatusTimeout:
		r.obs.Logger.Warn("job timed out", "job", jobID, "timeout", timeout)
	case StatusProcessFailure:
		r.obs.Logger.Error("job process failed",
			"job", jobID,
			"exit_code", outcome.ExitCode,
		)
		for _, line := range outcome.StderrTail {
			r.obs.Logger.Error("  ! " + line)
		}
	case StatusException:
		r.obs.Logger.Error("job failed", "job", jobID, "error", outcome.Err)
	}

	return outcome
}

// invoke runs the body, converting a panic into an error.
func (r *Runner) invoke(ctx context.Context, body func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("runner: job panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	return body(ctx)
}

// classify maps a body error onto a terminal status.
func classify(err error) Outcome {
	if err == nil {
		return Outcome{Status: StatusSuccess}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Status: StatusTimeout, Err: err}
	}

	var procErr *ProcessError
	if errors.As(err, &procErr) {
		return Outcome{
			Status:     StatusProcessFailure,
			ExitCode:   procErr.ExitCode,
			StderrTail: tail(procErr.Stderr, stderrTailLines),
			Err:        err,
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Outcome{
			Status:     StatusProcessFailure,
			ExitCode:   exitErr.ExitCode(),
			StderrTail: tail(string(exitErr.Stderr), stderrTailLines),
			Err:        err,
		}
	}

	return Outcome{Status: StatusException, Err: err}
}

// tail returns the last n non-empty-trimmed lines of s.
func tail(s string, n int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

package runner

import (
	"context"
	"time"

	"github.com/flemzord/cadence/internal/scheduler"
)

// Executor adapts the Runner to the scheduler's dispatch interface,
// picking up each job's own timeout ceiling when it declares one.
type Executor struct {
	runner *Runner
}

// NewExecutor wraps r for scheduler dispatch.
func NewExecutor(r *Runner) *Executor {
	return &Executor{runner: r}
}

var _ scheduler.Executor = (*Executor)(nil)

// Execute runs one firing of job under the containment contract.
func (e *Executor) Execute(ctx context.Context, job scheduler.Job) {
	var timeout time.Duration
	if tj, ok := job.(interface{ Timeout() time.Duration }); ok {
		timeout = tj.Timeout()
	}
	e.runner.Run(ctx, job.ID(), timeout, job.Run)
}

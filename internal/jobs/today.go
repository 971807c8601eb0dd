package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/cadence/internal/period"
	"github.com/flemzord/cadence/internal/reflect"
)

const (
	todayTimeout = 5 * time.Minute

	// todayKey is where the rolling summary lands for the downstream
	// prompt assembler to pick up.
	todayKey = "systemprompt:past:today"

	emptyTodayText = "Today just started—no memories stored yet."
)

// Today is the rolling "today so far" job. It runs hourly through the
// day, summarizes everything stored since 06:00, and stashes the result
// in the KV cache. It bridges the gap between working context and
// yesterday's capsule: without it, the morning is forgotten by afternoon.
type Today struct {
	deps Deps
}

// NewToday creates the rolling summary job.
func NewToday(deps Deps) *Today {
	return &Today{deps: deps.withDefaults()}
}

func (t *Today) ID() string             { return "today-so-far" }
func (t *Today) Schedule() string       { return "30 7-21 * * *" }
func (t *Today) Timeout() time.Duration { return todayTimeout }

// Run summarizes [06:00, now) and writes the result to the cache. Before
// 06:00 there is no "today" yet; that is a quiet no-op, not a failure.
func (t *Today) Run(ctx context.Context) error {
	now := t.deps.Now()

	p, err := period.Rolling(now)
	if errors.Is(err, period.ErrBeforeDayStart) {
		t.deps.Logger.Debug("before start of day, skipping rolling summary", "now", now)
		return nil
	}
	if err != nil {
		return fmt.Errorf("today-so-far: %w", err)
	}

	records, err := t.deps.Memory.FetchSince(ctx, p.Start)
	if err != nil {
		return fmt.Errorf("today-so-far: %w", err)
	}

	var summary string
	if len(records) == 0 {
		summary = emptyTodayText
	} else {
		t.deps.Logger.Info("summarizing today so far", "memories", len(records))
		prompt := reflect.BuildRollingPrompt(toMemories(records), now)
		summary, err = t.deps.Reflector.Reflect(ctx, prompt, todayTimeout)
		if err != nil {
			return fmt.Errorf("today-so-far: %w", err)
		}
	}

	full := fmt.Sprintf("**Today so far** (%s):\n\n%s", now.Format("3:04 PM"), summary)
	if err := t.deps.Cache.SetWithExpiry(ctx, todayKey, full, cacheTTL); err != nil {
		return fmt.Errorf("today-so-far: %w", err)
	}
	return nil
}

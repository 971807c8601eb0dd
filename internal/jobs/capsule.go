package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/flemzord/cadence/internal/period"
	"github.com/flemzord/cadence/internal/reflect"
)

// capsuleTimeout is the wall-clock ceiling for one capsule run, fetch
// through store.
const capsuleTimeout = 10 * time.Minute

// Capsule summarizes one fixed period of the day into a stored narrative.
// The daytime capsule fires at 22:00 and covers 06:00-22:00; the
// nighttime capsule fires at 06:00 and covers 22:00-06:00.
type Capsule struct {
	kind     period.Kind
	id       string
	schedule string
	deps     Deps
}

// NewDaytimeCapsule creates the 22:00 job summarizing today's daytime.
func NewDaytimeCapsule(deps Deps) *Capsule {
	return &Capsule{
		kind:     period.Daytime,
		id:       "capsule-daytime",
		schedule: "0 22 * * *",
		deps:     deps.withDefaults(),
	}
}

// NewNighttimeCapsule creates the 06:00 job summarizing last night.
func NewNighttimeCapsule(deps Deps) *Capsule {
	return &Capsule{
		kind:     period.Nighttime,
		id:       "capsule-nighttime",
		schedule: "0 6 * * *",
		deps:     deps.withDefaults(),
	}
}

func (c *Capsule) ID() string             { return c.id }
func (c *Capsule) Schedule() string       { return c.schedule }
func (c *Capsule) Timeout() time.Duration { return capsuleTimeout }

// Run summarizes the period containing the current instant. An empty
// window stores a deterministic placeholder without calling the backend;
// a failed generation stores nothing, leaving any earlier record intact.
func (c *Capsule) Run(ctx context.Context) error {
	now := c.deps.Now()

	p, err := period.Compute(c.kind, now)
	if err != nil {
		return fmt.Errorf("%s: %w", c.id, err)
	}

	records, err := c.deps.Memory.FetchWindow(ctx, p.Start, p.End)
	if err != nil {
		return fmt.Errorf("%s: %w", c.id, err)
	}

	if len(records) == 0 {
		c.deps.Logger.Info("no memories in period, storing placeholder",
			"job", c.id, "period", p.Label)
		text := fmt.Sprintf("No memories from %s.", p.Label)
		if err := c.deps.Summaries.Upsert(ctx, p.Start, p.End, text, 0); err != nil {
			return fmt.Errorf("%s: %w", c.id, err)
		}
		return nil
	}

	prior, err := c.deps.Continuity.Resolve(ctx, c.kind, now)
	if err != nil {
		return fmt.Errorf("%s: %w", c.id, err)
	}
	c.deps.Logger.Info("summarizing period",
		"job", c.id, "period", p.Label, "memories", len(records), "prior", len(prior))

	prompt := reflect.BuildCapsulePrompt(toMemories(records), p.Label, prior)
	text, err := c.deps.Reflector.Reflect(ctx, prompt, capsuleTimeout)
	if err != nil {
		return fmt.Errorf("%s: %w", c.id, err)
	}

	if err := c.deps.Summaries.Upsert(ctx, p.Start, p.End, text, len(records)); err != nil {
		return fmt.Errorf("%s: %w", c.id, err)
	}
	return nil
}

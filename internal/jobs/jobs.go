// Package jobs defines the concrete scheduled jobs: the two period
// capsules, the rolling today-so-far summary, the ambient HUD refresh,
// and the repository backup. Each job is a small orchestration over the
// boundary packages; jobs report failure by returning an error and rely
// on the runner for classification and containment.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/flemzord/cadence/internal/continuity"
	"github.com/flemzord/cadence/internal/memstore"
	"github.com/flemzord/cadence/internal/period"
	"github.com/flemzord/cadence/internal/reflect"
)

// cacheTTL is the lifetime of every cached prompt fragment: a bit longer
// than the producing job's hourly cadence, so one missed refresh ages the
// fragment out instead of pinning stale context.
const cacheTTL = 65 * time.Minute

// MemorySource reads the memory log.
type MemorySource interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]memstore.Record, error)
	FetchSince(ctx context.Context, start time.Time) ([]memstore.Record, error)
}

// SummaryWriter persists period summaries.
type SummaryWriter interface {
	Upsert(ctx context.Context, start, end time.Time, text string, memoryCount int) error
}

// ContinuitySource fetches prior periods' summaries.
type ContinuitySource interface {
	Resolve(ctx context.Context, kind period.Kind, ref time.Time) ([]continuity.Entry, error)
}

// Reflector turns a prompt into narrative prose.
type Reflector interface {
	Reflect(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// CacheWriter writes prompt fragments to the KV cache.
type CacheWriter interface {
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	SetAll(ctx context.Context, entries map[string]string, ttl time.Duration) error
}

// Deps bundles the shared dependencies the summary jobs draw from.
type Deps struct {
	Memory     MemorySource
	Summaries  SummaryWriter
	Continuity ContinuitySource
	Reflector  Reflector
	Cache      CacheWriter

	// Now is the clock, injectable for testing. Default time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// toMemories converts log records into prompt memories.
func toMemories(records []memstore.Record) []reflect.Memory {
	out := make([]reflect.Memory, len(records))
	for i, r := range records {
		out[i] = reflect.Memory{When: r.CreatedAt, Content: r.Content}
	}
	return out
}

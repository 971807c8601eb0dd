// Package continuity chains summarization periods together: before a new
// period is summarized, the stored summaries of the immediately preceding
// periods are fetched so the new narrative can pick up where the last one
// left off.
package continuity

import (
	"context"
	"fmt"
	"time"

	"github.com/flemzord/cadence/internal/period"
)

// SummaryLookup is the subset of the summary store the resolver needs.
type SummaryLookup interface {
	Lookup(ctx context.Context, start, end time.Time) (text string, ok bool, err error)
}

// Entry is one prior period's stored summary.
type Entry struct {
	Label string
	Start time.Time
	End   time.Time
	Text  string
}

// Resolver fetches continuity context from the summary store.
type Resolver struct {
	store SummaryLookup
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store SummaryLookup) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the stored summaries of the periods preceding the one
// being summarized at ref, most recent first. Periods with no stored
// summary are omitted; the system having just started is not an error.
func (r *Resolver) Resolve(ctx context.Context, kind period.Kind, ref time.Time) ([]Entry, error) {
	previous, err := period.Previous(kind, ref)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, p := range previous {
		text, ok, err := r.store.Lookup(ctx, p.Start, p.End)
		if err != nil {
			return nil, fmt.Errorf("continuity: lookup %s: %w", p.Label, err)
		}
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Label: p.Label,
			Start: p.Start,
			End:   p.End,
			Text:  text,
		})
	}
	return entries, nil
}

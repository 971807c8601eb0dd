package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// SummaryStore persists one summary record per distinct [start, end)
// window. Re-running a job for the same window replaces the record.
type SummaryStore struct {
	db *sql.DB
}

// Summary is a stored period summary.
type Summary struct {
	Start       time.Time
	End         time.Time
	Text        string
	MemoryCount int
	UpdatedAt   time.Time
}

// Upsert inserts a record for the (start, end) key or replaces the
// existing one's text, count, and timestamp. A single statement, so
// concurrent readers never observe a half-written record.
func (s *SummaryStore) Upsert(ctx context.Context, start, end time.Time, text string, memoryCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (period_start, period_end, summary, memory_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (period_start, period_end)
		DO UPDATE SET summary      = excluded.summary,
		              memory_count = excluded.memory_count,
		              updated_at   = excluded.updated_at`,
		keyInstant(start), keyInstant(end), text, memoryCount,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: upsert summary: %w", err)
	}
	return nil
}

// Lookup returns the summary text for the exact (start, end) key.
// Absence is a normal outcome, reported via ok=false.
func (s *SummaryStore) Lookup(ctx context.Context, start, end time.Time) (text string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT summary FROM summaries
		WHERE period_start = ? AND period_end = ?`,
		keyInstant(start), keyInstant(end),
	).Scan(&text)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("storage: lookup summary: %w", err)
	}
	return text, true, nil
}

// Get returns the full record for the exact key, for inspection tooling.
func (s *SummaryStore) Get(ctx context.Context, start, end time.Time) (Summary, bool, error) {
	var (
		sum                         Summary
		startStr, endStr, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT period_start, period_end, summary, memory_count, updated_at
		FROM summaries
		WHERE period_start = ? AND period_end = ?`,
		keyInstant(start), keyInstant(end),
	).Scan(&startStr, &endStr, &sum.Text, &sum.MemoryCount, &updatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Summary{}, false, nil
	case err != nil:
		return Summary{}, false, fmt.Errorf("storage: get summary: %w", err)
	}

	if sum.Start, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
		return Summary{}, false, fmt.Errorf("storage: parse period_start: %w", err)
	}
	if sum.End, err = time.Parse(time.RFC3339Nano, endStr); err != nil {
		return Summary{}, false, fmt.Errorf("storage: parse period_end: %w", err)
	}
	if sum.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Summary{}, false, fmt.Errorf("storage: parse updated_at: %w", err)
	}
	return sum, true, nil
}

// Count returns the number of stored summaries.
func (s *SummaryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM summaries").Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count summaries: %w", err)
	}
	return n, nil
}

// keyInstant normalizes an instant into the canonical key representation.
// Keys are compared as exact instants, so the zone is normalized to UTC
// before formatting; two times naming the same instant in different
// zones produce the same key.
func keyInstant(t time.Time) driver.Value {
	return t.UTC().Format(time.RFC3339Nano)
}

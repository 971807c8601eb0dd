// Package memstore is the read-only gateway to the external Postgres
// memory log. Queries return non-forgotten records ordered ascending by
// creation time; the log itself is owned by another process and is never
// written from here.
package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one memory entry from the log. CreatedAt carries the zone of
// the reference timezone the gateway was opened with.
type Record struct {
	ID        string
	Content   string
	CreatedAt time.Time
}

// Gateway reads memory records from Postgres.
type Gateway struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// Open connects to the memory log and verifies the connection. Timestamps
// on returned records are converted into loc for display.
func Open(ctx context.Context, dsn string, loc *time.Location) (*Gateway, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("memstore: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("memstore: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memstore: ping: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}

	return &Gateway{pool: pool, loc: loc}, nil
}

// Close releases the connection pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// FetchWindow returns all non-forgotten records with created_at in
// [start, end), ascending. Zero matches yields an empty slice, not an
// error.
func (g *Gateway) FetchWindow(ctx context.Context, start, end time.Time) ([]Record, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, content, created_at
		FROM memories
		WHERE NOT forgotten
		  AND created_at >= $1
		  AND created_at < $2
		ORDER BY created_at ASC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("memstore: fetch window: %w", err)
	}
	defer rows.Close()

	return g.scan(rows)
}

// FetchSince is the open-ended variant used by the rolling window: no
// upper bound, so the effective end of the half-open range is the moment
// the query executes.
func (g *Gateway) FetchSince(ctx context.Context, start time.Time) ([]Record, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, content, created_at
		FROM memories
		WHERE NOT forgotten
		  AND created_at >= $1
		ORDER BY created_at ASC`,
		start,
	)
	if err != nil {
		return nil, fmt.Errorf("memstore: fetch since: %w", err)
	}
	defer rows.Close()

	return g.scan(rows)
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func (g *Gateway) scan(rows pgRows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Content, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("memstore: scan record: %w", err)
		}
		r.CreatedAt = r.CreatedAt.In(g.loc)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memstore: iterate records: %w", err)
	}
	return records, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FireJournal records the last completed trigger instant per job id.
// The scheduler replays each job's cron schedule from this instant at
// startup to find triggers that elapsed while the process was down.
type FireJournal struct {
	db *sql.DB
}

// LastFire returns the most recent recorded fire instant for the job.
// ok is false when the job has never fired.
func (j *FireJournal) LastFire(ctx context.Context, jobID string) (time.Time, bool, error) {
	var firedAt string
	err := j.db.QueryRowContext(ctx,
		"SELECT fired_at FROM job_fires WHERE job_id = ?", jobID,
	).Scan(&firedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("storage: last fire: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, firedAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("storage: parse fired_at: %w", err)
	}
	return t, true, nil
}

// RecordFire stores firedAt as the job's most recent trigger instant,
// replacing any previous entry.
func (j *FireJournal) RecordFire(ctx context.Context, jobID string, firedAt time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO job_fires (job_id, fired_at) VALUES (?, ?)
		ON CONFLICT (job_id) DO UPDATE SET fired_at = excluded.fired_at`,
		jobID, firedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: record fire: %w", err)
	}
	return nil
}

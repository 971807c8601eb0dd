// Package storage implements cadence's persistent SQLite store. It backs
// two concerns over a single database: the period summary store (one
// record per summarized window, replaced on re-run) and the scheduler's
// fire journal (last completed trigger instant per job, used for missed
// trigger catch-up across restarts). Uses modernc.org/sqlite (pure Go,
// no CGO) with WAL mode.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "cadence.db"
)

// Config holds the SQLite store configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/cadence.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

// DB owns the SQLite handle and hands out the stores built on it.
type DB struct {
	db        *sql.DB
	logger    *slog.Logger
	summaries *SummaryStore
	fires     *FireJournal
}

// Open opens (creating if necessary) the database at cfg.Path, applies
// PRAGMAs, and migrates the schema.
func Open(cfg Config, dataDir string, logger *slog.Logger) (*DB, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Path == "" {
		cfg.Path = filepath.Join(dataDir, defaultDBFile)
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("storage: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(context.TODO(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(context.TODO(), fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db:        db,
		logger:    logger,
		summaries: &SummaryStore{db: db},
		fires:     &FireJournal{db: db},
	}

	logger.Info("storage opened", "path", cfg.Path, "wal", cfg.walEnabled())
	return s, nil
}

// Summaries returns the period summary store.
func (d *DB) Summaries() *SummaryStore { return d.summaries }

// Fires returns the scheduler fire journal.
func (d *DB) Fires() *FireJournal { return d.fires }

// Close closes the underlying database.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

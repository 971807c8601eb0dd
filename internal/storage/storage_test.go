package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, "", slog.Default())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_MigrationIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.db")
	for range 2 {
		db, err := Open(Config{Path: path}, "", slog.Default())
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}
}

func TestSummaryStore_UpsertReplaces(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	store := db.Summaries()

	start := time.Date(2025, 5, 20, 6, 0, 0, 0, time.UTC)
	end := time.Date(2025, 5, 20, 22, 0, 0, 0, time.UTC)

	if err := store.Upsert(ctx, start, end, "first draft", 3); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, start, end, "second draft", 5); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("record count = %d, want exactly 1 (replace, not duplicate)", n)
	}

	sum, ok, err := store.Get(ctx, start, end)
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if sum.Text != "second draft" || sum.MemoryCount != 5 {
		t.Errorf("record = %q/%d, want latest text and count", sum.Text, sum.MemoryCount)
	}
}

func TestSummaryStore_LookupAbsent(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	_, ok, err := db.Summaries().Lookup(ctx,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("lookup on unwritten key must not fail: %v", err)
	}
	if ok {
		t.Error("lookup on unwritten key must report absent")
	}
}

func TestSummaryStore_KeyIsInstantNotZone(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	store := db.Summaries()

	pacific, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}

	// Written with Pacific-zoned times, read back with the same instants
	// expressed in UTC. Exact-instant key equality must hold.
	start := time.Date(2025, 5, 19, 22, 0, 0, 0, pacific)
	end := time.Date(2025, 5, 20, 6, 0, 0, 0, pacific)
	if err := store.Upsert(ctx, start, end, "night summary", 2); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	text, ok, err := store.Lookup(ctx, start.UTC(), end.UTC())
	if err != nil || !ok {
		t.Fatalf("lookup by UTC instants failed: ok=%v err=%v", ok, err)
	}
	if text != "night summary" {
		t.Errorf("text = %q", text)
	}
}

func TestFireJournal_RoundTrip(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	journal := db.Fires()

	_, ok, err := journal.LastFire(ctx, "capsule-daytime")
	if err != nil {
		t.Fatalf("last fire on empty journal failed: %v", err)
	}
	if ok {
		t.Error("empty journal must report no last fire")
	}

	first := time.Date(2025, 5, 20, 22, 0, 0, 0, time.UTC)
	if err := journal.RecordFire(ctx, "capsule-daytime", first); err != nil {
		t.Fatalf("record fire failed: %v", err)
	}

	second := first.Add(24 * time.Hour)
	if err := journal.RecordFire(ctx, "capsule-daytime", second); err != nil {
		t.Fatalf("record fire (replace) failed: %v", err)
	}

	got, ok, err := journal.LastFire(ctx, "capsule-daytime")
	if err != nil || !ok {
		t.Fatalf("last fire failed: ok=%v err=%v", ok, err)
	}
	if !got.Equal(second) {
		t.Errorf("last fire = %v, want %v", got, second)
	}
}

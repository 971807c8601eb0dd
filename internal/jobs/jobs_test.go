package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/cadence/internal/continuity"
	"github.com/flemzord/cadence/internal/memstore"
	"github.com/flemzord/cadence/internal/period"
)

// failingTransport refuses every request, so the ambient fetches fail
// fast without touching the network.
type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("no network in tests")
}

func unroutableClient() *http.Client {
	return &http.Client{Transport: failingTransport{}}
}

func pacific(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

// --- fakes ---

type fakeMemory struct {
	records  []memstore.Record
	err      error
	gotStart time.Time
	gotEnd   time.Time
	calls    int
}

func (f *fakeMemory) FetchWindow(_ context.Context, start, end time.Time) ([]memstore.Record, error) {
	f.calls++
	f.gotStart, f.gotEnd = start, end
	return f.records, f.err
}

func (f *fakeMemory) FetchSince(_ context.Context, start time.Time) ([]memstore.Record, error) {
	f.calls++
	f.gotStart = start
	return f.records, f.err
}

type upsertCall struct {
	start, end time.Time
	text       string
	count      int
}

type fakeSummaries struct {
	err     error
	upserts []upsertCall
}

func (f *fakeSummaries) Upsert(_ context.Context, start, end time.Time, text string, count int) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, upsertCall{start, end, text, count})
	return nil
}

type fakeContinuity struct {
	entries []continuity.Entry
	err     error
}

func (f *fakeContinuity) Resolve(context.Context, period.Kind, time.Time) ([]continuity.Entry, error) {
	return f.entries, f.err
}

type fakeReflector struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeReflector) Reflect(_ context.Context, prompt string, _ time.Duration) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

type fakeCache struct {
	err     error
	singles map[string]string
	batches []map[string]string
	ttl     time.Duration
}

func (f *fakeCache) SetWithExpiry(_ context.Context, key, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	if f.singles == nil {
		f.singles = map[string]string{}
	}
	f.singles[key] = value
	f.ttl = ttl
	return nil
}

func (f *fakeCache) SetAll(_ context.Context, entries map[string]string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, entries)
	f.ttl = ttl
	return nil
}

func testDeps(now time.Time, mem *fakeMemory, sums *fakeSummaries, cont *fakeContinuity, refl *fakeReflector, cache *fakeCache) Deps {
	return Deps{
		Memory:     mem,
		Summaries:  sums,
		Continuity: cont,
		Reflector:  refl,
		Cache:      cache,
		Now:        func() time.Time { return now },
		Logger:     slog.New(slog.DiscardHandler),
	}
}

// --- capsule ---

func TestCapsule_EmptyWindowStoresPlaceholder(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 16, 22, 0, 0, 0, pacific(t))
	mem := &fakeMemory{}
	sums := &fakeSummaries{}
	refl := &fakeReflector{}
	job := NewDaytimeCapsule(testDeps(now, mem, sums, &fakeContinuity{}, refl, nil))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(refl.prompts) != 0 {
		t.Error("empty window must not call the backend")
	}
	if len(sums.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(sums.upserts))
	}
	up := sums.upserts[0]
	if up.count != 0 {
		t.Errorf("count = %d, want 0", up.count)
	}
	if !strings.HasPrefix(up.text, "No memories from ") {
		t.Errorf("placeholder text = %q", up.text)
	}
	wantStart := time.Date(2025, 6, 16, 6, 0, 0, 0, pacific(t))
	if !up.start.Equal(wantStart) || !up.end.Equal(now) {
		t.Errorf("window = [%v, %v), want [%v, %v)", up.start, up.end, wantStart, now)
	}
}

func TestCapsule_SummarizesAndStores(t *testing.T) {
	t.Parallel()

	loc := pacific(t)
	now := time.Date(2025, 6, 16, 22, 0, 0, 0, loc)
	mem := &fakeMemory{records: []memstore.Record{
		{ID: "1", Content: "morning walk", CreatedAt: time.Date(2025, 6, 16, 8, 15, 0, 0, loc)},
		{ID: "2", Content: "shipped the release", CreatedAt: time.Date(2025, 6, 16, 16, 40, 0, 0, loc)},
	}}
	sums := &fakeSummaries{}
	cont := &fakeContinuity{entries: []continuity.Entry{
		{Label: "Last night", Text: "Quiet night, slept well."},
	}}
	refl := &fakeReflector{text: "Today I walked and shipped."}
	job := NewDaytimeCapsule(testDeps(now, mem, sums, cont, refl, nil))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(refl.prompts) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(refl.prompts))
	}
	prompt := refl.prompts[0]
	for _, want := range []string{"Quiet night, slept well.", "morning walk", "shipped the release", "2 memories"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if len(sums.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(sums.upserts))
	}
	if got := sums.upserts[0]; got.text != "Today I walked and shipped." || got.count != 2 {
		t.Errorf("stored (%q, %d)", got.text, got.count)
	}
}

func TestCapsule_GenerationFailureStoresNothing(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 16, 22, 0, 0, 0, pacific(t))
	mem := &fakeMemory{records: []memstore.Record{{ID: "1", Content: "x", CreatedAt: now.Add(-time.Hour)}}}
	sums := &fakeSummaries{}
	refl := &fakeReflector{err: context.DeadlineExceeded}
	job := NewDaytimeCapsule(testDeps(now, mem, sums, &fakeContinuity{}, refl, nil))

	err := job.Run(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded in chain", err)
	}
	if len(sums.upserts) != 0 {
		t.Error("failed generation must not touch the store")
	}
}

func TestCapsule_Identity(t *testing.T) {
	t.Parallel()

	day := NewDaytimeCapsule(Deps{})
	night := NewNighttimeCapsule(Deps{})

	if day.ID() != "capsule-daytime" || day.Schedule() != "0 22 * * *" {
		t.Errorf("daytime = (%q, %q)", day.ID(), day.Schedule())
	}
	if night.ID() != "capsule-nighttime" || night.Schedule() != "0 6 * * *" {
		t.Errorf("nighttime = (%q, %q)", night.ID(), night.Schedule())
	}
}

func TestNighttimeCapsule_WindowIsLastNight(t *testing.T) {
	t.Parallel()

	loc := pacific(t)
	now := time.Date(2025, 6, 17, 6, 0, 0, 0, loc)
	mem := &fakeMemory{}
	sums := &fakeSummaries{}
	job := NewNighttimeCapsule(testDeps(now, mem, sums, &fakeContinuity{}, &fakeReflector{}, nil))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantStart := time.Date(2025, 6, 16, 22, 0, 0, 0, loc)
	if !mem.gotStart.Equal(wantStart) || !mem.gotEnd.Equal(now) {
		t.Errorf("fetched [%v, %v), want [%v, %v)", mem.gotStart, mem.gotEnd, wantStart, now)
	}
}

// --- today so far ---

func TestToday_BeforeDayStartIsNoOp(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 16, 5, 30, 0, 0, pacific(t))
	mem := &fakeMemory{}
	cache := &fakeCache{}
	job := NewToday(testDeps(now, mem, nil, nil, &fakeReflector{}, cache))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("before-6AM run must be a no-op, got %v", err)
	}
	if mem.calls != 0 {
		t.Error("no fetch should happen before start of day")
	}
	if len(cache.singles) != 0 {
		t.Error("no cache write should happen before start of day")
	}
}

func TestToday_EmptyDayWritesCannedText(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 16, 7, 30, 0, 0, pacific(t))
	refl := &fakeReflector{}
	cache := &fakeCache{}
	job := NewToday(testDeps(now, &fakeMemory{}, nil, nil, refl, cache))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(refl.prompts) != 0 {
		t.Error("empty day must not call the backend")
	}
	got := cache.singles["systemprompt:past:today"]
	want := "**Today so far** (7:30 AM):\n\n" + emptyTodayText
	if got != want {
		t.Errorf("cached = %q, want %q", got, want)
	}
	if cache.ttl != 65*time.Minute {
		t.Errorf("ttl = %v, want 65m", cache.ttl)
	}
}

func TestToday_SummarizesAndCaches(t *testing.T) {
	t.Parallel()

	loc := pacific(t)
	now := time.Date(2025, 6, 16, 14, 30, 0, 0, loc)
	mem := &fakeMemory{records: []memstore.Record{
		{ID: "1", Content: "coffee with Dana", CreatedAt: time.Date(2025, 6, 16, 9, 0, 0, 0, loc)},
	}}
	refl := &fakeReflector{text: "A social morning."}
	cache := &fakeCache{}
	job := NewToday(testDeps(now, mem, nil, nil, refl, cache))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantStart := time.Date(2025, 6, 16, 6, 0, 0, 0, loc)
	if !mem.gotStart.Equal(wantStart) {
		t.Errorf("fetch start = %v, want %v", mem.gotStart, wantStart)
	}
	got := cache.singles["systemprompt:past:today"]
	if got != "**Today so far** (2:30 PM):\n\nA social morning." {
		t.Errorf("cached = %q", got)
	}
}

func TestToday_GenerationFailureWritesNothing(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 16, 14, 30, 0, 0, pacific(t))
	mem := &fakeMemory{records: []memstore.Record{{ID: "1", Content: "x", CreatedAt: now}}}
	cache := &fakeCache{}
	job := NewToday(testDeps(now, mem, nil, nil, &fakeReflector{err: errors.New("backend down")}, cache))

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(cache.singles) != 0 {
		t.Error("failed generation must not write the cache")
	}
}

// --- hud ---

func TestHUD_WritesAtomicBatch(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 16, 9, 5, 0, 0, pacific(t))
	cache := &fakeCache{}
	deps := Deps{Now: func() time.Time { return now }, Logger: slog.New(slog.DiscardHandler)}

	// No calendars and no Todoist token configured; the weather fetch
	// fails fast against an unroutable host. The HUD still renders with
	// every section omitted.
	job := NewHUD(HUDConfig{}, cache, unroutableClient(), deps)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(cache.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(cache.batches))
	}
	batch := cache.batches[0]
	if got := batch["systemprompt:hud"]; !strings.Contains(got, "*Refreshed 2025-06-16 09:05*") {
		t.Errorf("hud = %q", got)
	}
	if _, ok := batch["systemprompt:updated"]; !ok {
		t.Error("missing updated stamp")
	}
	if cache.ttl != 65*time.Minute {
		t.Errorf("ttl = %v, want 65m", cache.ttl)
	}
}

func TestHUD_CacheFailureFailsJob(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{err: errors.New("connection refused")}
	job := NewHUD(HUDConfig{}, cache, unroutableClient(), Deps{Logger: slog.New(slog.DiscardHandler)})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("cache write failure must fail the job")
	}
}

// --- backup ---

func TestBackup_ArgsCarryExcludesAndRetention(t *testing.T) {
	t.Parallel()

	job := NewBackup(BackupConfig{
		Repository: "s3:bucket/repo",
		Path:       "/data",
		Excludes:   []string{"node_modules", "*.tmp"},
	}, nil)

	got := strings.Join(job.backupArgs(), " ")
	if got != "backup /data --exclude node_modules --exclude *.tmp" {
		t.Errorf("backup args = %q", got)
	}

	forget := strings.Join(forgetArgs(), " ")
	for _, want := range []string{"--keep-hourly 24", "--keep-daily 7", "--keep-weekly 4", "--keep-monthly 6", "--prune"} {
		if !strings.Contains(forget, want) {
			t.Errorf("forget args missing %q", want)
		}
	}
}

func TestBackup_Identity(t *testing.T) {
	t.Parallel()

	job := NewBackup(BackupConfig{}, nil)
	if job.ID() != "backup" || job.Schedule() != "*/10 * * * *" {
		t.Errorf("backup = (%q, %q)", job.ID(), job.Schedule())
	}
	if job.Timeout() != time.Hour {
		t.Errorf("timeout = %v", job.Timeout())
	}
}

package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/cadence/internal/config"
	"github.com/flemzord/cadence/internal/jobs"
)

func TestSimulatedNow_CapsuleInstants(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}

	day, err := simulatedNow("capsule-daytime", "2025-06-16", loc)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2025, 6, 16, 22, 0, 0, 0, loc); !day.Equal(want) {
		t.Errorf("daytime now = %v, want %v", day, want)
	}

	// Nighttime for a date fires the next morning at 06:00.
	night, err := simulatedNow("capsule-nighttime", "2025-06-16", loc)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2025, 6, 17, 6, 0, 0, 0, loc); !night.Equal(want) {
		t.Errorf("nighttime now = %v, want %v", night, want)
	}
}

func TestSimulatedNow_RejectsNonCapsuleJobs(t *testing.T) {
	t.Parallel()

	if _, err := simulatedNow("today-so-far", "2025-06-16", time.UTC); err == nil {
		t.Fatal("--date must be rejected for non-capsule jobs")
	}
	if _, err := simulatedNow("capsule-daytime", "June 16", time.UTC); err == nil {
		t.Fatal("malformed date must be rejected")
	}
}

func TestCheckConfig(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("version: \"1\"\nmemory:\n  dsn: postgres://localhost/m\ncache:\n  url: redis://localhost:6379/0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := CheckConfig(good); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("version: \"9\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := CheckConfig(bad)
	if err == nil || !strings.Contains(err.Error(), "unsupported version") {
		t.Errorf("err = %v", err)
	}
}

func TestBuildJob_CoversEveryKnownID(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	logger := slog.New(slog.DiscardHandler)

	for _, id := range knownJobs() {
		job := buildJob(id, cfg, jobs.Deps{Logger: logger}, logger)
		if job == nil {
			t.Errorf("buildJob(%q) = nil", id)
			continue
		}
		if job.ID() != id {
			t.Errorf("buildJob(%q).ID() = %q", id, job.ID())
		}
	}

	if job := buildJob("nope", cfg, jobs.Deps{}, logger); job != nil {
		t.Error("unknown id must yield nil")
	}
}

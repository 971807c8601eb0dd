package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/cadence/internal/kv"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cadence.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
version: "1"
memory:
  dsn: postgres://localhost/memories
cache:
  url: redis://localhost:6379/0
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Timezone != "America/Los_Angeles" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if cfg.Admin.Addr != "127.0.0.1:7677" {
		t.Errorf("admin addr = %q", cfg.Admin.Addr)
	}
	if cfg.DataDir == "" {
		t.Error("data dir not defaulted")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("minimal config must validate: %v", err)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_MEMORY_DSN", "postgres://db.internal/memories")

	cfg, err := Load(writeConfig(t, `
version: "1"
memory:
  dsn: ${TEST_MEMORY_DSN}
cache:
  url: ${TEST_CACHE_URL:-redis://localhost:6379/0}
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Memory.DSN != "postgres://db.internal/memories" {
		t.Errorf("dsn = %q", cfg.Memory.DSN)
	}
	if cfg.Cache.URL != "redis://localhost:6379/0" {
		t.Errorf("default not applied: %q", cfg.Cache.URL)
	}
}

func TestLoad_UnresolvedVariableFails(t *testing.T) {
	_, err := Load(writeConfig(t, "version: \"1\"\nmemory:\n  dsn: ${DEFINITELY_NOT_SET_ANYWHERE}\n"))
	if err == nil || !strings.Contains(err.Error(), "DEFINITELY_NOT_SET_ANYWHERE") {
		t.Fatalf("err = %v, want unresolved variable", err)
	}
}

func TestLoad_ParsesDurations(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
scheduler:
  tick_interval: 5s
  misfire_grace: 30m
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.TickInterval != 5*time.Second {
		t.Errorf("tick = %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.MisfireGrace != 30*time.Minute {
		t.Errorf("grace = %v", cfg.Scheduler.MisfireGrace)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Version:  "2",
		Timezone: "Mars/Olympus_Mons",
		Admin:    AdminConfig{Addr: "no-port"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	for _, want := range []string{
		"unsupported version",
		"unknown timezone",
		"memory.dsn is required",
		"cache.url is required",
		"not host:port",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in: %v", want, err)
		}
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	t.Parallel()

	err := Validate(&Config{})
	if err == nil || !strings.Contains(err.Error(), "version field is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate_BackupNeedsPath(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Version: "1",
		Memory:  MemoryConfig{DSN: "x"},
		Cache:   kv.Config{URL: "redis://localhost:6379/0"},
	}
	cfg.Jobs.Backup.Repository = "s3:bucket/repo"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "backup.path is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate_DisabledCacheJobsNeedNoCache(t *testing.T) {
	t.Parallel()

	off := false
	cfg := &Config{Version: "1", Memory: MemoryConfig{DSN: "x"}}
	cfg.Jobs.Today = &off

	if err := Validate(cfg); err != nil {
		t.Fatalf("cache url must be optional when cache jobs are off: %v", err)
	}
}

func TestEnabledJobs(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	got := EnabledJobs(cfg)
	want := []string{"capsule-daytime", "capsule-nighttime", "today-so-far"}
	if len(got) != len(want) {
		t.Fatalf("jobs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("jobs[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	cfg.Jobs.HUD.Weather.Name = "Portland"
	cfg.Jobs.Backup.Repository = "s3:bucket/repo"
	got = EnabledJobs(cfg)
	if len(got) != 5 || got[3] != "hud" || got[4] != "backup" {
		t.Errorf("jobs = %v", got)
	}

	off := false
	cfg.Jobs.Capsules = &off
	got = EnabledJobs(cfg)
	if len(got) != 3 || got[0] != "today-so-far" {
		t.Errorf("jobs with capsules off = %v", got)
	}
}

// Package config handles YAML configuration loading, environment
// variable expansion, and structural validation for cadence.
package config

import (
	"time"

	"github.com/flemzord/cadence/internal/jobs"
	"github.com/flemzord/cadence/internal/kv"
	"github.com/flemzord/cadence/internal/observe"
	"github.com/flemzord/cadence/internal/reflect"
	"github.com/flemzord/cadence/internal/storage"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Timezone is the IANA reference timezone every window is computed
	// in. Default America/Los_Angeles.
	Timezone string `yaml:"timezone"`

	// DataDir is where cadence keeps its own state (summary database,
	// fire journal). Default ~/.local/share/cadence.
	DataDir string `yaml:"data_dir"`

	// Memory configures the external memory log connection.
	Memory MemoryConfig `yaml:"memory"`

	// Storage configures the local summary database.
	Storage storage.Config `yaml:"storage"`

	// Cache configures the KV cache the prompt fragments land in.
	Cache kv.Config `yaml:"cache"`

	// Reflection configures the generation backend.
	Reflection reflect.Config `yaml:"reflection"`

	// Scheduler configures trigger evaluation.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Jobs toggles individual jobs and holds their job-specific settings.
	Jobs JobsConfig `yaml:"jobs"`

	// Admin configures the local admin HTTP listener.
	Admin AdminConfig `yaml:"admin"`

	// Observability configures trace export.
	Observability observe.Config `yaml:"observability"`
}

// MemoryConfig locates the external memory log.
type MemoryConfig struct {
	// DSN is the Postgres connection string of the memory log.
	DSN string `yaml:"dsn"`
}

// SchedulerConfig tunes the trigger engine.
type SchedulerConfig struct {
	// TickInterval is the trigger evaluation granularity. Default 10s.
	TickInterval time.Duration `yaml:"tick_interval"`

	// MisfireGrace is how late a missed firing may still run. Default 1h.
	MisfireGrace time.Duration `yaml:"misfire_grace"`
}

// JobsConfig enables jobs and carries their settings. Jobs default to
// enabled; an explicit false disables one.
type JobsConfig struct {
	Capsules *bool `yaml:"capsules"`
	Today    *bool `yaml:"today"`

	// HUD is enabled by configuring at least one of its sources.
	HUD jobs.HUDConfig `yaml:"hud"`

	// Backup is enabled by configuring a repository.
	Backup jobs.BackupConfig `yaml:"backup"`
}

// AdminConfig configures the admin HTTP listener.
type AdminConfig struct {
	// Addr is the listen address. Default 127.0.0.1:7677; empty string
	// after defaulting is not possible, set Disabled to turn it off.
	Addr string `yaml:"addr"`

	// Disabled turns the admin listener off entirely.
	Disabled bool `yaml:"disabled"`
}

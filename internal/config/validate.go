package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/flemzord/cadence/internal/jobs"
)

// Validate checks the structural validity of a Config: the version
// field, the reference timezone, required connection settings, and the
// scheduler tuning ranges. It returns every problem found, joined, so a
// broken config is fixed in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("config: unknown timezone %q", cfg.Timezone))
		}
	}

	if cfg.Memory.DSN == "" {
		errs = append(errs, errors.New("config: memory.dsn is required"))
	}

	if cfg.Cache.URL == "" && (cfg.Jobs.todayEnabled() || cfg.Jobs.hudEnabled()) {
		errs = append(errs, errors.New("config: cache.url is required when the today or hud job is enabled"))
	}

	if cfg.Scheduler.TickInterval < 0 {
		errs = append(errs, errors.New("config: scheduler.tick_interval must not be negative"))
	}
	if cfg.Scheduler.MisfireGrace < 0 {
		errs = append(errs, errors.New("config: scheduler.misfire_grace must not be negative"))
	}

	if !cfg.Admin.Disabled && cfg.Admin.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Admin.Addr); err != nil {
			errs = append(errs, fmt.Errorf("config: admin.addr %q is not host:port", cfg.Admin.Addr))
		}
	}

	errs = append(errs, validateBackup(cfg.Jobs.Backup)...)

	return errors.Join(errs...)
}

func validateBackup(b jobs.BackupConfig) []error {
	if b.Repository == "" {
		// Backup job disabled; path and excludes are irrelevant.
		return nil
	}
	var errs []error
	if b.Path == "" {
		errs = append(errs, errors.New("config: jobs.backup.path is required when a repository is set"))
	}
	return errs
}

package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/flemzord/cadence/internal/runner"
)

// backupTimeout covers the backup and the follow-up prune together.
const backupTimeout = time.Hour

// BackupConfig configures the restic invocation.
type BackupConfig struct {
	// Repository is the restic repository URL (passed as -r).
	Repository string `yaml:"repository"`

	// Path is the directory tree to back up.
	Path string `yaml:"path"`

	// Excludes are restic --exclude patterns for reconstructible or
	// ephemeral files.
	Excludes []string `yaml:"excludes"`

	// Binary overrides the restic executable; defaults to "restic".
	Binary string `yaml:"binary"`
}

// Backup shells out to restic every ten minutes: one snapshot of the
// configured path, then a retention prune. It is the one job running a
// genuinely external process; non-zero exits surface as process
// failures with the stderr tail preserved.
type Backup struct {
	cfg    BackupConfig
	logger *slog.Logger
}

// NewBackup creates the backup job.
func NewBackup(cfg BackupConfig, logger *slog.Logger) *Backup {
	if cfg.Binary == "" {
		cfg.Binary = "restic"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backup{cfg: cfg, logger: logger}
}

func (b *Backup) ID() string             { return "backup" }
func (b *Backup) Schedule() string       { return "*/10 * * * *" }
func (b *Backup) Timeout() time.Duration { return backupTimeout }

// Run takes a snapshot and, only if that succeeded, prunes old snapshots
// per the retention policy. A failed prune after a good snapshot is a
// warning, not a job failure: the data is safe.
func (b *Backup) Run(ctx context.Context) error {
	b.logger.Info("starting backup", "path", b.cfg.Path)
	if err := b.restic(ctx, b.backupArgs()); err != nil {
		return err
	}
	b.logger.Info("backup complete")

	if err := b.restic(ctx, forgetArgs()); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		b.logger.Warn("prune failed, snapshot succeeded", "error", err)
		return nil
	}
	b.logger.Info("prune complete")
	return nil
}

// backupArgs builds the snapshot command line.
func (b *Backup) backupArgs() []string {
	args := []string{"backup", b.cfg.Path}
	for _, pattern := range b.cfg.Excludes {
		args = append(args, "--exclude", pattern)
	}
	return args
}

// forgetArgs builds the retention prune command line: keep 24 hourly,
// 7 daily, 4 weekly, and 6 monthly snapshots.
func forgetArgs() []string {
	return []string{
		"forget",
		"--keep-hourly", "24",
		"--keep-daily", "7",
		"--keep-weekly", "4",
		"--keep-monthly", "6",
		"--prune",
	}
}

// restic runs one restic command against the configured repository. A
// non-zero exit becomes a ProcessError carrying the stderr output; a
// kill due to the job deadline surfaces as the deadline error so it is
// classified as a timeout, not a process failure.
func (b *Backup) restic(ctx context.Context, args []string) error {
	full := append([]string{"-r", b.cfg.Repository}, args...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.cfg.Binary, full...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("backup: %s %s: %w", b.cfg.Binary, args[0], ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("backup: %w", &runner.ProcessError{
			Cmd:      b.cfg.Binary + " " + strings.Join(args, " "),
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
		})
	}
	return fmt.Errorf("backup: run %s: %w", b.cfg.Binary, err)
}

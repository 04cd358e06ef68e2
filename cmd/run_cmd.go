package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kebairia/snapback/internal/config"
	"github.com/kebairia/snapback/internal/fsutil"
	"github.com/kebairia/snapback/internal/operations"
	"github.com/kebairia/snapback/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the backup and cleanup schedules until interrupted",
	RunE:  runScheduler,
}

// runScheduler blocks until SIGINT or SIGTERM. The only fatal error after
// startup is failing to create the backup folder.
func runScheduler(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fsutil.EnsureDirectoryExist(afero.NewOsFs(), cfg.BackupFolder); err != nil {
		return fmt.Errorf("prepare backup folder: %w", err)
	}

	opts := []operations.Option{
		operations.WithLogger(log),
		operations.WithStatusWriter(cmd.OutOrStdout()),
	}
	backup, err := operations.NewBackup(cfg, opts...)
	if err != nil {
		return err
	}
	cleanup := operations.NewCleanup(cfg, opts...)

	backupSchedule, err := backupScheduleFor(cfg)
	if err != nil {
		return err
	}

	s, err := scheduler.New(log,
		scheduler.Job{
			Name:       "backup",
			Schedule:   backupSchedule,
			RunOnStart: cfg.BackupOnStart,
			Task:       func(ctx context.Context) { _, _ = backup.Run(ctx) },
		},
		scheduler.Job{
			Name:     "cleanup",
			Schedule: scheduler.Every(cfg.CleanupInterval()),
			Task:     func(ctx context.Context) { _, _ = cleanup.Run(ctx) },
		},
	)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// backupScheduleFor prefers a cron expression over the fixed interval.
func backupScheduleFor(c *config.Config) (cron.Schedule, error) {
	if c.BackupSchedule == "" {
		return scheduler.Every(c.BackupInterval()), nil
	}
	sched, err := cron.ParseStandard(c.BackupSchedule)
	if err != nil {
		return nil, fmt.Errorf("parse backup_schedule %q: %w", c.BackupSchedule, err)
	}
	return sched, nil
}

package operations

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/kebairia/snapback/internal/config"
	"github.com/kebairia/snapback/internal/fsutil"
	"github.com/kebairia/snapback/internal/retention"
	"github.com/kebairia/snapback/internal/snapshot"
)

// Cleanup deletes the oldest snapshots beyond cfg.MaxBackups.
type Cleanup struct {
	common
	cfg *config.Config
}

// NewCleanup returns a Cleanup reading its keep-count from cfg on every run.
func NewCleanup(cfg *config.Config, opts ...Option) *Cleanup {
	return &Cleanup{common: newCommon(opts), cfg: cfg}
}

// Preview computes the retention decision without deleting anything.
// A missing backup folder yields an empty decision.
func (c *Cleanup) Preview(_ context.Context) (retention.Decision, error) {
	snaps, _, err := c.list()
	if err != nil {
		return retention.Decision{}, err
	}
	return retention.Plan(snaps, c.cfg.MaxBackups)
}

// Run deletes the snapshots the retention policy selects and returns how
// many were actually removed. A non-positive keep-count or a missing backup
// folder is a no-op. Individual deletion failures are logged, skipped and
// returned together, wrapped in ErrDelete.
func (c *Cleanup) Run(ctx context.Context) (int, error) {
	folder := c.cfg.BackupFolder
	maxKeep := c.cfg.MaxBackups

	if maxKeep <= 0 {
		c.log.Warn("cleanup skipped",
			"folder", folder,
			"max_backups", maxKeep,
			"reason", "max_backups must be positive",
		)
		c.statusf("⚠️ cleanup skipped: max_backups must be positive (got %d)", maxKeep)
		return 0, nil
	}

	snaps, exists, err := c.list()
	if err != nil {
		c.log.Error("cleanup failed", "folder", folder, "error", err.Error())
		c.statusf("❌ cleanup failed: %v", err)
		return 0, err
	}
	if !exists {
		c.log.Info("cleanup no-op", "folder", folder, "reason", "backup folder does not exist")
		c.statusf("🧹 cleanup: backup folder %s does not exist", folder)
		return 0, nil
	}

	victims, err := retention.SelectForDeletion(snaps, maxKeep)
	if err != nil {
		c.log.Warn("cleanup skipped", "folder", folder, "max_backups", maxKeep, "reason", err.Error())
		c.statusf("⚠️ cleanup skipped: %v", err)
		return 0, nil
	}
	if len(victims) == 0 {
		c.log.Info("cleanup no-op",
			"folder", folder,
			"snapshots", len(snaps),
			"max_backups", maxKeep,
		)
		c.statusf("🧹 cleanup: nothing to delete (%d snapshot(s), max_backups %d)", len(snaps), maxKeep)
		return 0, nil
	}

	deleted, errs := c.remove(ctx, victims)

	c.log.Info("cleanup completed",
		"folder", folder,
		"deleted", deleted,
		"failed", len(multierr.Errors(errs)),
		"kept", len(snaps)-len(victims),
	)
	c.statusf("🧹 cleanup removed %d snapshot(s), kept %d", deleted, len(snaps)-len(victims))
	return deleted, errs
}

func (c *Cleanup) remove(ctx context.Context, victims []snapshot.Snapshot) (int, error) {
	var (
		deleted int
		errs    error
	)
	for _, s := range victims {
		if err := fsutil.Remove(ctx, c.fs, s.Path); err != nil {
			c.log.Error("snapshot deletion failed",
				"snapshot", s.Name,
				"path", s.Path,
				"error", err.Error(),
			)
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: %w", ErrDelete, s.Path, err))
			continue
		}
		deleted++
		c.log.Info("snapshot deleted",
			"snapshot", s.Name,
			"path", s.Path,
			"created_at", s.CreatedAt,
		)
	}
	return deleted, errs
}

// list returns the snapshots currently in the backup folder and whether
// the folder exists at all.
func (c *Cleanup) list() ([]snapshot.Snapshot, bool, error) {
	folder := c.cfg.BackupFolder
	ok, err := fsutil.DirExists(c.fs, folder)
	if err != nil {
		return nil, false, fmt.Errorf("stat backup folder %q: %w", folder, err)
	}
	if !ok {
		return nil, false, nil
	}
	snaps, err := snapshot.List(c.fs, folder, c.cfg.ArchiveFormat.Extension())
	return snaps, true, err
}

// IsDeleteError reports whether err carries at least one per-file deletion
// failure.
func IsDeleteError(err error) bool {
	return errors.Is(err, ErrDelete)
}

package operations

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kebairia/snapback/internal/archive"
	"github.com/kebairia/snapback/internal/config"
	"github.com/kebairia/snapback/internal/fsutil"
	"github.com/kebairia/snapback/internal/snapshot"
)

// maxNameAttempts bounds the _1, _2, ... suffixes tried when several
// backups start within the same second.
const maxNameAttempts = 100

// Backup archives the source folder into a new timestamped snapshot.
type Backup struct {
	common
	archiver *archive.Archiver
	source   string
	folder   string
}

// NewBackup returns a Backup for cfg's source and backup folders.
func NewBackup(cfg *config.Config, opts ...Option) (*Backup, error) {
	c := newCommon(opts)
	a, err := archive.New(c.fs, cfg.ArchiveFormat)
	if err != nil {
		return nil, fmt.Errorf("create archiver: %w", err)
	}
	return &Backup{
		common:   c,
		archiver: a,
		source:   cfg.SourceFolder,
		folder:   cfg.BackupFolder,
	}, nil
}

// Run creates one snapshot. Failures are logged and reported on the status
// writer before being returned; they never panic or exit.
func (b *Backup) Run(ctx context.Context) (snapshot.Snapshot, error) {
	start := time.Now()
	b.log.Info("backup started",
		"source", b.source,
		"folder", b.folder,
		"format", b.archiver.Extension(),
	)

	snap, err := b.create(ctx)
	if err != nil {
		b.log.Error("backup failed",
			"source", b.source,
			"folder", b.folder,
			"error", err.Error(),
		)
		b.statusf("❌ backup failed: %v", err)
		return snapshot.Snapshot{}, fmt.Errorf("backup of %q: %w", b.source, err)
	}

	b.log.Info("backup completed",
		"snapshot", snap.Name,
		"path", snap.Path,
		"size_bytes", snap.Size,
		"duration", time.Since(start).String(),
	)
	b.statusf("✅ backup created: %s", snap.Path)
	return snap, nil
}

func (b *Backup) create(ctx context.Context) (snapshot.Snapshot, error) {
	if err := fsutil.EnsureDirectoryExist(b.fs, b.folder); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %w", archive.ErrIO, err)
	}

	ts := b.now()
	var err error
	for seq := 0; seq < maxNameAttempts; seq++ {
		name := snapshot.Name(ts, seq)
		dest := filepath.Join(b.folder, snapshot.FileName(name, b.archiver.Extension()))

		var snap snapshot.Snapshot
		snap, err = b.archiver.Create(ctx, b.source, dest)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, archive.ErrAlreadyExists) {
			return snapshot.Snapshot{}, err
		}
		b.log.Debug("snapshot name taken", "path", dest)
	}
	return snapshot.Snapshot{}, err
}

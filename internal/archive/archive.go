// Package archive turns a directory tree into a single compressed snapshot
// file. A snapshot only ever appears at its final path once it is complete:
// the archive is written to a hidden ".partial" file next to the destination
// and renamed into place on success.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/kebairia/snapback/internal/config"
	"github.com/kebairia/snapback/internal/fsutil"
	"github.com/kebairia/snapback/internal/snapshot"
)

var (
	// ErrIO covers an unreadable source or an unwritable destination.
	ErrIO = errors.New("archive: i/o error")
	// ErrArchive means the container or compressor failed mid-stream.
	ErrArchive = errors.New("archive: compression failed")
	// ErrAlreadyExists means the destination path is occupied.
	ErrAlreadyExists = errors.New("archive: destination already exists")
)

const (
	// PartialSuffix marks in-progress archives. It never matches a snapshot
	// extension, so listings and cleanup ignore these files.
	PartialSuffix = ".partial"
	// FileMode is applied to every finished snapshot.
	FileMode os.FileMode = 0o644
)

// Archiver writes snapshots in one archive format.
type Archiver struct {
	fs     afero.Fs
	format config.ArchiveFormat
}

// New returns an Archiver for format on fs. A nil fs means the OS filesystem.
func New(fs afero.Fs, format config.ArchiveFormat) (*Archiver, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported archive format %q", format)
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Archiver{fs: fs, format: format}, nil
}

// Extension returns the file suffix of the snapshots this Archiver writes.
func (a *Archiver) Extension() string { return a.format.Extension() }

// Create archives the full contents of sourceDir into destPath. Entry names
// are relative to sourceDir, so extracting reproduces the tree.
func (a *Archiver) Create(ctx context.Context, sourceDir, destPath string) (snapshot.Snapshot, error) {
	info, err := a.fs.Stat(sourceDir)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: source %q: %w", ErrIO, sourceDir, err)
	}
	if !info.IsDir() {
		return snapshot.Snapshot{}, fmt.Errorf("%w: source %q is not a directory", ErrIO, sourceDir)
	}
	if err := a.checkFree(destPath); err != nil {
		return snapshot.Snapshot{}, err
	}

	destDir, base := filepath.Split(destPath)
	tmp, err := afero.TempFile(a.fs, destDir, "."+base+".*"+PartialSuffix)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: create temporary file in %q: %w", ErrIO, destDir, err)
	}
	tmpPath := tmp.Name()

	if err := a.writeArchive(ctx, tmp, sourceDir); err != nil {
		_ = tmp.Close()
		_ = a.fs.Remove(tmpPath)
		return snapshot.Snapshot{}, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = a.fs.Remove(tmpPath)
		return snapshot.Snapshot{}, fmt.Errorf("%w: sync %q: %w", ErrIO, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = a.fs.Remove(tmpPath)
		return snapshot.Snapshot{}, fmt.Errorf("%w: close %q: %w", ErrIO, tmpPath, err)
	}
	// temp files are created 0600
	if err := a.fs.Chmod(tmpPath, FileMode); err != nil {
		_ = a.fs.Remove(tmpPath)
		return snapshot.Snapshot{}, fmt.Errorf("%w: chmod %q: %w", ErrIO, tmpPath, err)
	}

	// Rename replaces silently on POSIX; look again right before it.
	if err := a.checkFree(destPath); err != nil {
		_ = a.fs.Remove(tmpPath)
		return snapshot.Snapshot{}, err
	}
	if err := fsutil.Rename(ctx, a.fs, tmpPath, destPath); err != nil {
		_ = a.fs.Remove(tmpPath)
		return snapshot.Snapshot{}, fmt.Errorf("%w: finalize %q: %w", ErrIO, destPath, err)
	}

	final, err := a.fs.Stat(destPath)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: stat %q: %w", ErrIO, destPath, err)
	}
	return snapshot.Snapshot{
		Name:      trimExt(filepath.Base(destPath), a.Extension()),
		Path:      destPath,
		CreatedAt: final.ModTime(),
		Size:      final.Size(),
	}, nil
}

func (a *Archiver) checkFree(destPath string) error {
	exists, err := afero.Exists(a.fs, destPath)
	if err != nil {
		return fmt.Errorf("%w: stat %q: %w", ErrIO, destPath, err)
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, destPath)
	}
	return nil
}

// writeArchive streams every entry under sourceDir into out.
func (a *Archiver) writeArchive(ctx context.Context, out io.Writer, sourceDir string) (err error) {
	ew, err := newEntryWriter(a.format, out)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	defer func() {
		if closeErr := ew.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: finish archive: %w", ErrArchive, closeErr)
		}
	}()

	return afero.Walk(a.fs, sourceDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: walk %q: %w", ErrIO, path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.Mode()&os.ModeSymlink != 0 {
			// Follow links to regular files; skip links to directories.
			target, err := a.fs.Stat(path)
			if err != nil {
				return fmt.Errorf("%w: follow link %q: %w", ErrIO, path, err)
			}
			if !target.Mode().IsRegular() {
				return nil
			}
			info = target
		}

		switch {
		case info.IsDir():
			if err := ew.AddDir(rel, info); err != nil {
				return fmt.Errorf("%w: add directory %q: %w", ErrArchive, rel, err)
			}
			return nil
		case info.Mode().IsRegular():
			return a.addFile(ew, path, rel, info)
		default:
			// sockets, devices, fifos
			return nil
		}
	})
}

func (a *Archiver) addFile(ew entryWriter, path, rel string, info os.FileInfo) error {
	f, err := a.fs.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open %q: %w", ErrIO, path, err)
	}
	defer f.Close()

	src := &trackedReader{r: f}
	if err := ew.AddFile(rel, info, src); err != nil {
		if src.err != nil {
			return fmt.Errorf("%w: read %q: %w", ErrIO, path, src.err)
		}
		return fmt.Errorf("%w: add file %q: %w", ErrArchive, rel, err)
	}
	return nil
}

// trackedReader remembers the first read error so a failed copy can be
// blamed on the source rather than the compressor.
type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

func trimExt(fileName, ext string) string {
	return strings.TrimSuffix(fileName, "."+ext)
}

// Package snapshot describes archived copies of the source folder as they
// appear in the backup folder. The filesystem is the only record: names and
// creation times are always read back from disk, never remembered.
package snapshot

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	// Prefix starts every snapshot name.
	Prefix = "backup_"
	// TimestampFormat is embedded after Prefix, second resolution.
	TimestampFormat = "2006-01-02_15-04-05"
)

// Snapshot represents a single archived snapshot.
type Snapshot struct {
	Name      string // file name without extension, e.g. backup_2026-10-19_22-00-00
	Path      string // full path inside the backup folder
	CreatedAt time.Time
	Size      int64
}

// Name returns the snapshot name for t. A non-zero seq disambiguates
// snapshots started within the same second.
func Name(t time.Time, seq int) string {
	name := Prefix + t.Format(TimestampFormat)
	if seq > 0 {
		name = fmt.Sprintf("%s_%d", name, seq)
	}
	return name
}

// FileName joins a snapshot name and an archive extension.
func FileName(name, ext string) string {
	return name + "." + ext
}

// HasExtension reports whether fileName ends in "."+ext.
func HasExtension(fileName, ext string) bool {
	return strings.HasSuffix(fileName, "."+ext)
}

// List returns the snapshots in dir carrying extension ext, oldest first.
// Directories and files with any other suffix are ignored. CreatedAt is the
// file's modification time.
func List(fs afero.Fs, dir, ext string) ([]Snapshot, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading folder %q: %w", dir, err)
	}

	var snaps []Snapshot
	for _, info := range entries {
		if info.IsDir() || !info.Mode().IsRegular() {
			continue
		}
		fileName := info.Name()
		if !HasExtension(fileName, ext) {
			continue
		}
		snaps = append(snaps, Snapshot{
			Name:      strings.TrimSuffix(fileName, "."+ext),
			Path:      filepath.Join(dir, fileName),
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}

	SortOldestFirst(snaps)
	return snaps, nil
}

// SortOldestFirst orders snaps by CreatedAt, then Name, in place.
func SortOldestFirst(snaps []Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
		}
		return snaps[i].Name < snaps[j].Name
	})
}

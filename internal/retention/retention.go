// Package retention decides which snapshots survive a cleanup. It never
// touches the filesystem.
package retention

import (
	"errors"
	"fmt"

	"github.com/kebairia/snapback/internal/snapshot"
)

// ErrInvalidMaxKeep is returned when the keep-count is zero or negative.
// Callers must treat it as "skip this cleanup", never as "delete everything".
var ErrInvalidMaxKeep = errors.New("retention: max_backups must be positive")

// Decision partitions a set of snapshots, both halves oldest first.
type Decision struct {
	Keep   []snapshot.Snapshot
	Delete []snapshot.Snapshot
}

// Plan orders snaps oldest first (ties broken by name) and keeps the newest
// maxKeep of them. The input slice is not modified.
func Plan(snaps []snapshot.Snapshot, maxKeep int) (Decision, error) {
	if maxKeep <= 0 {
		return Decision{}, fmt.Errorf("%w: got %d", ErrInvalidMaxKeep, maxKeep)
	}

	ordered := make([]snapshot.Snapshot, len(snaps))
	copy(ordered, snaps)
	snapshot.SortOldestFirst(ordered)

	if len(ordered) <= maxKeep {
		return Decision{Keep: ordered}, nil
	}
	cut := len(ordered) - maxKeep
	return Decision{
		Keep:   ordered[cut:],
		Delete: ordered[:cut],
	}, nil
}

// SelectForDeletion returns the oldest len(snaps)-maxKeep snapshots, or
// nothing when there are at most maxKeep.
func SelectForDeletion(snaps []snapshot.Snapshot, maxKeep int) ([]snapshot.Snapshot, error) {
	d, err := Plan(snaps, maxKeep)
	if err != nil {
		return nil, err
	}
	return d.Delete, nil
}

// Package fsutil holds the small filesystem helpers shared by the archiver
// and the backup/cleanup tasks. Everything goes through afero so callers can
// swap in an in-memory filesystem.
package fsutil

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"
)

const maxRetries = 4

// EnsureDirectoryExist creates dirPath and any missing parents. An existing
// directory is not an error.
func EnsureDirectoryExist(fs afero.Fs, dirPath string) error {
	if err := fs.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dirPath, err)
	}
	return nil
}

// DirExists reports whether path exists and is a directory.
func DirExists(fs afero.Fs, path string) (bool, error) {
	return afero.DirExists(fs, path)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

// Rename moves oldPath to newPath, retrying transient failures.
func Rename(ctx context.Context, fs afero.Fs, oldPath, newPath string) error {
	return retry(ctx, func() error { return fs.Rename(oldPath, newPath) })
}

// Remove deletes path, retrying transient failures. A path that is already
// gone is reported as os.ErrNotExist, unchanged.
func Remove(ctx context.Context, fs afero.Fs, path string) error {
	return retry(ctx, func() error { return fs.Remove(path) })
}

func retry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second

	op := func() error {
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}

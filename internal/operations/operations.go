// Package operations holds the two units of work the scheduler dispatches:
// Backup archives the source folder once, Cleanup prunes the backup folder
// down to the configured keep-count. Both catch their own failures and turn
// them into a log record plus one status line; callers only get the error
// back for reporting.
package operations

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/kebairia/snapback/internal/logger"
)

// ErrDelete wraps each snapshot that could not be removed during cleanup.
var ErrDelete = errors.New("snapshot deletion failed")

// Option overrides a collaborator of Backup or Cleanup.
type Option func(*common)

// common is shared by both tasks.
type common struct {
	fs     afero.Fs
	log    logger.Logger
	status io.Writer
	now    func() time.Time
}

func newCommon(opts []Option) common {
	c := common{
		fs:     afero.NewOsFs(),
		log:    logger.Nop(),
		status: io.Discard,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithFs overrides the filesystem.
func WithFs(fs afero.Fs) Option {
	return func(c *common) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log logger.Logger) Option {
	return func(c *common) {
		if log != nil {
			c.log = log
		}
	}
}

// WithStatusWriter sets where the human-readable status lines go.
func WithStatusWriter(w io.Writer) Option {
	return func(c *common) {
		if w != nil {
			c.status = w
		}
	}
}

// WithClock overrides time.Now, used for snapshot names.
func WithClock(now func() time.Time) Option {
	return func(c *common) {
		if now != nil {
			c.now = now
		}
	}
}

func (c *common) statusf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.status, format+"\n", args...)
}

package operations

import (
	"bytes"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kebairia/snapback/internal/config"
	"github.com/kebairia/snapback/internal/logger"
)

// testEnv bundles an in-memory filesystem, an observed logger and a status
// buffer for one test.
type testEnv struct {
	fs     afero.Fs
	logs   *observer.ObservedLogs
	status *bytes.Buffer
	cfg    *config.Config
	opts   []Option
}

func newTestEnv() *testEnv {
	core, logs := observer.New(zapcore.DebugLevel)
	env := &testEnv{
		fs:     afero.NewMemMapFs(),
		logs:   logs,
		status: &bytes.Buffer{},
		cfg: &config.Config{
			SourceFolder:           "/data",
			BackupFolder:           "/backups",
			BackupIntervalMinutes:  1,
			CleanupIntervalMinutes: 60,
			MaxBackups:             5,
			ArchiveFormat:          config.FormatZip,
		},
	}
	env.opts = []Option{
		WithFs(env.fs),
		WithLogger(logger.FromZap(zap.New(core))),
		WithStatusWriter(env.status),
	}
	return env
}

func (e *testEnv) messages(level zapcore.Level) []string {
	var out []string
	for _, entry := range e.logs.All() {
		if entry.Level == level {
			out = append(out, entry.Message)
		}
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

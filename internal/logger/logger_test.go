package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.log")

	log, sync, err := New(Options{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("backup completed", "path", "/tmp/x.zip")
	_ = sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"backup completed"`)
	assert.Contains(t, string(data), `"path":"/tmp/x.zip"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_ConsoleFileHasNoColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.log")

	log, sync, err := New(Options{Level: "info", Format: "console", File: path})
	require.NoError(t, err)
	log.Warn("cleanup skipped", "max_backups", 0)
	_ = sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "WARN")
	assert.Contains(t, string(data), "cleanup skipped")
	assert.NotContains(t, string(data), "\x1b[")
}

func TestNew_JSONKeepsEveryEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.log")

	log, sync, err := New(Options{Level: "info", Format: "json", File: path})
	require.NoError(t, err)
	for i := 0; i < 250; i++ {
		log.Info("snapshot deleted", "n", i)
	}
	_ = sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 250, strings.Count(string(data), `"msg":"snapshot deleted"`))
}

func TestNew_RejectsBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, _, err = New(Options{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestFromZap_KeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.Warn("cleanup skipped", "max_backups", 0)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "cleanup skipped", entry.Message)
	assert.EqualValues(t, 0, entry.ContextMap()["max_backups"])
}

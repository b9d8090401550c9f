package tui

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplog_Console(t *testing.T) {
	t.Setenv("DEBUG", "")
	var buf bytes.Buffer
	splog, err := NewSplogWithConfig(&buf, "")
	require.NoError(t, err)

	splog.Info("merging %s", "feature")
	splog.Warn("merged locally only")
	splog.Error("push failed")
	splog.Tip("run mergeguard sweep")
	splog.Debug("hidden")

	assert.Equal(t, "merging feature\n⚠️  merged locally only\n❌ push failed\n💡 run mergeguard sweep\n", buf.String())

	buf.Reset()
	splog.SetDebug(true)
	splog.Debug("shown %d", 1)
	assert.Equal(t, "shown 1\n", buf.String())
}

func TestSplog_DebugFile(t *testing.T) {
	t.Setenv("DEBUG", "")
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "mergeguard", DebugLogName)

	splog, err := NewSplogWithConfig(&buf, path)
	require.NoError(t, err)
	splog.Debug("scratch branch created")
	splog.Info("done")
	require.NoError(t, splog.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scratch branch created")
	assert.Contains(t, string(data), "level=INFO")
	assert.Equal(t, "done\n", buf.String())
}

func TestCreateLumberjackLogger(t *testing.T) {
	t.Setenv("MERGEGUARD_LOG_MAX_SIZE", "5")
	t.Setenv("MERGEGUARD_LOG_MAX_BACKUPS", "0")
	t.Setenv("MERGEGUARD_LOG_MAX_AGE", "bogus")

	l := createLumberjackLogger("x.log")
	assert.Equal(t, 5, l.MaxSize)
	assert.Equal(t, 0, l.MaxBackups)
	assert.Equal(t, 30, l.MaxAge)
}

func TestGetLogFilePath(t *testing.T) {
	t.Setenv("MERGEGUARD_LOG_FILE", "")
	assert.Equal(t, filepath.Join("state", DebugLogName), GetLogFilePath("state"))
	assert.Equal(t, "", GetLogFilePath(""))

	t.Setenv("MERGEGUARD_LOG_FILE", "/tmp/custom.log")
	assert.Equal(t, "/tmp/custom.log", GetLogFilePath("state"))
}

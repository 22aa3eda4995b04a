package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesTimestampedFile(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	log, err := New(Config{File: path, Level: "info"})
	require.NoError(t, err)
	log.Info("client connected")
	log.Debug("hidden at info level")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO")
	assert.Contains(t, string(data), "client connected")
	assert.NotContains(t, string(data), "hidden at info level")
	assert.Regexp(t, `^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}`, string(data))
}

func TestNewEnvOverridesLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	path := filepath.Join(t.TempDir(), "server.log")

	log, err := New(Config{File: path, Level: "error"})
	require.NoError(t, err)
	log.Debug("debug line")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug line")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWithoutSinksIsNop(t *testing.T) {
	log, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(0))
}

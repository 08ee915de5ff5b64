package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 180, cfg.SessionTimeoutSeconds)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 300, cfg.LockoutCooldownSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("session_timeout_seconds: 60\n"), 0600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 60, cfg.SessionTimeoutSeconds)
	// Untouched fields keep their defaults.
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.SessionTimeout())
}

func TestLoadRejectsOutOfRangeTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("session_timeout_seconds: 10\n"), 0600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	require.NoError(t, os.WriteFile(path, []byte("session_timeout_seconds: 9999\n"), 0600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	cfg := Default()
	cfg.SessionTimeoutSeconds = 300
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.SessionTimeoutSeconds = 5

	err := cfg.Save(filepath.Join(t.TempDir(), FileName))
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HABITS_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "habits.db"), cfg.DatabasePath)
	assert.Empty(t, cfg.RemoteURL)
	assert.Empty(t, cfg.UserID)
	assert.Equal(t, 5*time.Second, cfg.SyncInterval)
	assert.Equal(t, 15*time.Second, cfg.ProbeInterval)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HABITS_DIR", dir)

	want := &Config{
		DatabasePath:  filepath.Join(dir, "custom.db"),
		RemoteURL:     "https://habits.example.com",
		APIKey:        "secret-key",
		UserID:        "u1",
		SyncInterval:  30 * time.Second,
		ProbeInterval: time.Minute,
		LogFile:       filepath.Join(dir, "daemon.log"),
	}
	require.NoError(t, Save(want))

	info, err := os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".habits")
	t.Setenv("HABITS_DIR", dir)

	require.NoError(t, Save(&Config{SyncInterval: 5 * time.Second, ProbeInterval: 15 * time.Second}))
	_, err := os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HABITS_DIR", dir)

	require.NoError(t, Save(&Config{
		RemoteURL:     "https://from-file.example.com",
		SyncInterval:  5 * time.Second,
		ProbeInterval: 15 * time.Second,
	}))

	t.Setenv("HABITS_REMOTE_URL", "https://from-env.example.com")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com", cfg.RemoteURL)
}

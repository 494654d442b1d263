package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestLoad_CreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("JUKEBOX_CACHE_PATH", filepath.Join(dir, "cache"))

	manager, err := Load(path)
	require.NoError(t, err)

	cfg := manager.Get()
	assert.Equal(t, "local", cfg.Requests.DefaultSource)
	assert.Equal(t, 4, cfg.Jobs.Workers)
	assert.Equal(t, filepath.Join(dir, "cache"), cfg.CachePath)
	assert.FileExists(t, path)
	assert.DirExists(t, cfg.CachePath)
}

func TestLoad_AppliesDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, `
cachePath: `+filepath.Join(dir, "cache")+`
database:
  path: `+filepath.Join(dir, "archive.db")+`
requests:
  max_download_size_mb: 25
queue:
  voting: true
telegram:
  enabled: false
`)
	t.Setenv("TELEGRAM_TOKEN", "secret-token")

	manager, err := Load(path)
	require.NoError(t, err)

	cfg := manager.Get()
	assert.Equal(t, 25, cfg.Requests.MaxDownloadSizeMB)
	assert.True(t, cfg.Queue.Voting)
	assert.Equal(t, "local", cfg.Requests.DefaultSource)
	assert.Equal(t, "mp3", cfg.Sources.Remote.Extension)
	assert.Equal(t, "secret-token", cfg.Telegram.Token)
	assert.NotContains(t, manager.GetJSON(), "secret-token")
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, `
cachePath: `+filepath.Join(dir, "cache")+`
database:
  path: `+filepath.Join(dir, "archive.db")+`
requests:
  default_source: napster
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	base := `
cachePath: ` + filepath.Join(dir, "cache") + `
database:
  path: ` + filepath.Join(dir, "archive.db") + `
`
	writeConfig(t, path, base+"queue:\n  voting: false\n")

	manager, err := Load(path)
	require.NoError(t, err)
	require.False(t, manager.Get().Queue.Voting)

	reloaded := make(chan *Config, 1)
	watcher, err := NewWatcher(path, manager, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	writeConfig(t, path, base+"queue:\n  voting: true\n")

	select {
	case cfg := <-reloaded:
		assert.True(t, cfg.Queue.Voting)
		assert.True(t, manager.Get().Queue.Voting)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

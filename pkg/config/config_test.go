package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	// Run Init from an empty directory so a developer's local
	// config.yaml never leaks into the test.
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(cwd) })

	Init()
}

func TestDefaults(t *testing.T) {
	initConfig(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Roots, 2)
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".claude", "skills"), cfg.Roots[0])

	assert.Equal(t, filepath.Join(".", ".skillcortex", "index.json"), cfg.CachePath)
	assert.Equal(t, "json", cfg.CacheBackend)
	assert.Equal(t, filepath.Join(".", "tags.yaml"), cfg.TagsPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:8317", cfg.HTTP.Addr)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SKILLCORTEX_LOG_LEVEL", "debug")
	t.Setenv("SKILLCORTEX_CACHE_BACKEND", "sqlite")
	t.Setenv("SKILLCORTEX_HTTP_ADDR", "0.0.0.0:9000")
	initConfig(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.CacheBackend)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTP.Addr)
}

func TestConfigFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	content := `roots:
  - /srv/skills
cache_backend: sqlite
log_level: warn
http:
  addr: 127.0.0.1:9999
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(cwd) })

	Init()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/skills"}, cfg.Roots)
	assert.Equal(t, "sqlite", cfg.CacheBackend)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
}

func TestExpandHome(t *testing.T) {
	initConfig(t)
	viper.Set("roots", []string{"~/skills"})
	viper.Set("tags_path", "~/tags.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "skills"), cfg.Roots[0])
	assert.Equal(t, filepath.Join(home, "tags.yaml"), cfg.TagsPath)
}

func TestMergeOverrides(t *testing.T) {
	initConfig(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.Merge(map[string]interface{}{
		"cache_backend": "sqlite",
		"log_level":     "debug",
	}))
	assert.Equal(t, "sqlite", cfg.CacheBackend)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Zero values in the overrides leave existing fields alone.
	require.NoError(t, cfg.Merge(map[string]interface{}{}))
	assert.Equal(t, "sqlite", cfg.CacheBackend)
}

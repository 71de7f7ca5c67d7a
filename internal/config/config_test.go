package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the XDG directories and the working directory at a temp dir
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, float64(10), cfg.API.RateLimit)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(dir, "data", "pmt", "pmt.db"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join(dir, "data", "pmt", "pmt.log"), cfg.Log.File)
	assert.False(t, cfg.Policy.DevelopersActForOthers)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://pm.example.com/api
  timeout: 30s
storage:
  driver: sqlite
policy:
  developers_act_for_others: true
`), 0600))
	t.Setenv("PMT_API_BASE_URL", "https://override.example.com/api")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.True(t, cfg.Policy.DevelopersActForOthers)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep their defaults")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PMT_LOG_LEVEL=debug\n"), 0600))
	t.Setenv("PMT_LOG_LEVEL", "")
	os.Unsetenv("PMT_LOG_LEVEL")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad url", map[string]string{"PMT_API_BASE_URL": "localhost:8080"}, "api.base_url"},
		{"bad driver", map[string]string{"PMT_STORAGE_DRIVER": "postgres"}, "storage.driver"},
		{"bad timeout", map[string]string{"PMT_API_TIMEOUT": "0s"}, "api.timeout"},
		{"negative rate", map[string]string{"PMT_API_RATE_LIMIT": "-1"}, "api.rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config", "pmt", "config.yaml")

	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false), "existing file is kept")
	require.NoError(t, WriteDefault(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url: http://localhost:8080/api")
	assert.Contains(t, string(data), "timeout: 10s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg, "written defaults load back unchanged")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "pmt.db"), expandPath("~/pmt.db"))
	assert.Equal(t, "/tmp/pmt.db", expandPath("/tmp/pmt.db"))
}

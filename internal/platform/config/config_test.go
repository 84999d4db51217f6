package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithDevAuth(t *testing.T) {
	t.Setenv("CARNET_AUTH_MODE", "dev")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "store", cfg.Sequence.Backend)
	assert.Equal(t, "mark_ready", cfg.Notify.ReadyOn)
	assert.False(t, cfg.Photo.PurgeOnReject)
	assert.Equal(t, 5<<20, cfg.Photo.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, cfg.Auth.ClockSkew)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CARNET_AUTH_MODE", "dev")
	t.Setenv("CARNET_STORAGE_BACKEND", "postgres")
	t.Setenv("CARNET_STORAGE_DATABASE_URL", "postgres://carnet@localhost/carnet")
	t.Setenv("CARNET_NOTIFY_READY_ON", "confirm_print")
	t.Setenv("CARNET_PHOTO_PURGE_ON_REJECT", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "postgres://carnet@localhost/carnet", cfg.Storage.DatabaseURL)
	assert.Equal(t, "confirm_print", cfg.Notify.ReadyOn)
	assert.True(t, cfg.Photo.PurgeOnReject)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: sqlite
  sqlite_path: /tmp/carnet.db
auth:
  mode: dev
batch:
  notify_concurrency: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 3, cfg.Batch.NotifyConcurrency)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("CARNET_AUTH_MODE", "dev")
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"postgres without url": func(c *Config) { c.Storage.Backend = "postgres" },
		"unknown storage":      func(c *Config) { c.Storage.Backend = "mongo" },
		"redis without url":    func(c *Config) { c.Sequence.Backend = "redis" },
		"s3 without bucket":    func(c *Config) { c.Blob.Backend = "s3" },
		"smtp without host":    func(c *Config) { c.Notify.Backend = "smtp" },
		"bad ready_on":         func(c *Config) { c.Notify.ReadyOn = "approve" },
		"short jwt secret":     func(c *Config) { c.Auth.Mode = "jwt"; c.Auth.JWTSecret = "short" },
		"zero concurrency":     func(c *Config) { c.Batch.NotifyConcurrency = 0 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, base.Validate())
}

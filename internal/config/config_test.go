package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Regulatory.RefreshInterval)
	assert.Equal(t, 1000, cfg.Alerts.BaselineVolume)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comply.yaml"), []byte(`
server:
  port: 9090
cache:
  backend: memory
  size: 500
`), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Cache.Size)
}

func TestLoadRejectsRedisWithoutURL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comply.yaml"), []byte(`
cache:
  backend: redis
`), 0o644))
	chdir(t, dir)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsKafkaWithoutBrokers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comply.yaml"), []byte(`
kafka:
  enabled: true
`), 0o644))
	chdir(t, dir)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comply.yaml"), []byte(`
server:
  port: -1
`), 0o644))
	chdir(t, dir)

	_, err := Load()
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/related-world/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  name: annex-host
  rest_port: 9000
hooks:
  enabled: false
simulation:
  tick_ms: 50
  loopback_observer: true
storage:
  backend: badger
  path: /tmp/relworld
worlds:
  - name: Annex
    origin: {x: 1000, y: 0, z: 0}
    networked: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "annex-host", cfg.Server.Name)
	assert.Equal(t, 9000, cfg.Server.GetRESTPort())
	assert.False(t, cfg.Hooks.Enabled)
	assert.Equal(t, 50, cfg.Simulation.TickMillis)
	assert.True(t, cfg.Simulation.LoopbackObserver)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	require.Len(t, cfg.Worlds, 1)
	assert.Equal(t, vec.Vec3{X: 1000}, cfg.Worlds[0].Origin)
	assert.True(t, cfg.Worlds[0].Networked)
	assert.Equal(t, 256, cfg.Sync.BatchSize, "Незаданные поля берутся из значений по умолчанию")
}

func TestLoad_FromEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  name: from-env\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Server.Name)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
simulation:
  tick_ms: 0
storage:
  backend: mongo
worlds:
  - name: a
  - name: a
  - name: ""
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_ms")
	assert.Contains(t, err.Error(), "mongo")
	assert.Contains(t, err.Error(), "повтор имени a")
	assert.Contains(t, err.Error(), "пустое имя")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestPortEnvFallback(t *testing.T) {
	t.Setenv("RELWORLD_METRICS_PORT", "9100")
	s := ServerConfig{}
	assert.Equal(t, 9100, s.GetMetricsPort())
	assert.Equal(t, 8088, s.GetRESTPort())
}

func TestAdminTokenEnvFallback(t *testing.T) {
	t.Setenv("RELWORLD_ADMIN_TOKEN", "from-env")

	s := ServerConfig{}
	assert.Equal(t, "from-env", s.GetAdminToken())

	s.AdminToken = "from-file"
	assert.Equal(t, "from-file", s.GetAdminToken())
}

package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/linker/internal/resolver"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)

	require.Equal(t, 8, cfg.Links.CodeLength)
	require.Equal(t, resolver.DefaultAlphabet, cfg.Links.CodeAlphabet)
	require.Equal(t, 5, cfg.Links.MaxAttempts)
	require.Equal(t, 3*time.Second, cfg.Links.StoreTimeout)

	require.Equal(t, 1000, cfg.Cache.Capacity)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.Equal(t, time.Minute, cfg.Cache.IdleTTL)

	require.True(t, cfg.Maintenance.Purge.Enabled)
	require.Equal(t, "@daily", cfg.Maintenance.Purge.Schedule)
	require.Equal(t, 720*time.Hour, cfg.Maintenance.Purge.Retention)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := `
server:
  port: 9090
  base_url: https://sho.rt
links:
  code_length: 10
  max_attempts: 8
cache:
  capacity: 50
  ttl: 30s
maintenance:
  purge:
    enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "https://sho.rt", cfg.Server.BaseURL)
	require.Equal(t, 10, cfg.Links.CodeLength)
	require.Equal(t, 8, cfg.Links.MaxAttempts)
	require.Equal(t, 50, cfg.Cache.Capacity)
	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
	require.False(t, cfg.Maintenance.Purge.Enabled)

	// Untouched keys keep their defaults.
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, time.Minute, cfg.Cache.IdleTTL)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LINKER_SERVER_PORT", "7070")
	t.Setenv("LINKER_LINKS_STORE_TIMEOUT", "750ms")
	t.Setenv("LINKER_DATABASE_DRIVER", "postgres")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 750*time.Millisecond, cfg.Links.StoreTimeout)
	require.Equal(t, "postgres", cfg.Database.Driver)
}

func TestEngineConfigMapping(t *testing.T) {
	cfg := &Config{
		Links: LinksConfig{MaxAttempts: 7, StoreTimeout: 2 * time.Second},
		Cache: CacheConfig{Capacity: 128, TTL: time.Minute, IdleTTL: 30 * time.Second},
	}

	engineCfg := cfg.EngineConfig()
	require.Equal(t, 7, engineCfg.MaxAttempts)
	require.Equal(t, 2*time.Second, engineCfg.StoreTimeout)
	require.Equal(t, 128, engineCfg.Cache.Capacity)
	require.Equal(t, time.Minute, engineCfg.Cache.TTL)
	require.Equal(t, 30*time.Second, engineCfg.Cache.IdleTTL)
}

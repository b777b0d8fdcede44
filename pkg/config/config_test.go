package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, "raw_fetches", cfg.Snapshot.Dir)
	assert.Equal(t, 5, cfg.Snapshot.MaxFiles)
	assert.Equal(t, "Tamil Nadu", cfg.Upstream.Region)
	assert.Equal(t, 10000, cfg.Upstream.Limit)
	assert.Equal(t, "mgnrega-tn-app/1.0", cfg.Geocode.UserAgent)
	assert.Equal(t, 900, cfg.Ingestion.LockTTLSeconds)
}

func TestLoadPrefixedEnv(t *testing.T) {
	t.Setenv("MGNREGA_CACHE_BACKEND", "memory")
	t.Setenv("MGNREGA_UPSTREAM_APIKEY", "k-123")
	t.Setenv("MGNREGA_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "k-123", cfg.Upstream.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CACHE_TTL", "60")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/mgnrega?sslmode=disable")
	t.Setenv("RAW_DIR", "/var/lib/mgnrega/raw")
	t.Setenv("STATE_NAME", "Kerala")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, time.Minute, cfg.Cache.TTL())
	assert.Equal(t, "postgres://u:p@db/mgnrega?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, "/var/lib/mgnrega/raw", cfg.Snapshot.Dir)
	assert.Equal(t, "Kerala", cfg.Upstream.Region)
}

func TestLoadPrefixedEnvBeatsLegacy(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://legacy:6379")
	t.Setenv("MGNREGA_CACHE_REDISURL", "redis://new:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis://new:6379", cfg.Cache.RedisURL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
cache:
  ttlSeconds: -5
snapshot:
  maxFiles: 0
upstream:
  region: Karnataka
`), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Karnataka", cfg.Upstream.Region)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, 5, cfg.Snapshot.MaxFiles)
}

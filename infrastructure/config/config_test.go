package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server_address: ":9090"
log_level: debug
store_backend: redis
redis_url: redis://cache:6379/2
search_backend: sqlite
snapshot_interval: 45s
enable_cors: false
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	assert.Equal(t, SearchSQLite, cfg.SearchBackend)
	assert.Equal(t, 45*time.Second, cfg.SnapshotInterval)
	assert.False(t, cfg.EnableCORS)
	assert.Equal(t, path, cfg.File)

	// untouched fields keep their defaults
	assert.Equal(t, "kgraph.json", cfg.SnapshotPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, "log_level: debug\nstore_backend: redis\n")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("STORE_BACKEND", "dynamodb")
	t.Setenv("SNAPSHOT_INTERVAL", "120")
	t.Setenv("ENABLE_METRICS", "false")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "300")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, StoreDynamoDB, cfg.StoreBackend)
	assert.Equal(t, 2*time.Minute, cfg.SnapshotInterval)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, 300, cfg.RateLimitPerMinute)
}

func TestLoadFile_Malformed(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "log_level: [unclosed"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		t.Setenv("KGRAPH_CONFIG", writeConfig(t, "search_backend: sqlite\n"))
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, SearchSQLite, cfg.SearchBackend)
	})

	t.Run("explicit file missing", func(t *testing.T) {
		t.Setenv("KGRAPH_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("invalid file is rejected", func(t *testing.T) {
		t.Setenv("KGRAPH_CONFIG", writeConfig(t, "store_backend: etcd\n"))
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "unknown store backend")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown store", func(c *Config) { c.StoreBackend = "etcd" }, true},
		{"unknown search", func(c *Config) { c.SearchBackend = "elastic" }, true},
		{"zero interval", func(c *Config) { c.SnapshotInterval = 0 }, true},
		{"negative interval", func(c *Config) { c.SnapshotInterval = -time.Second }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"redis without url", func(c *Config) { c.StoreBackend = StoreRedis; c.RedisURL = "" }, true},
		{"dynamodb without table", func(c *Config) { c.StoreBackend = StoreDynamoDB; c.DynamoDBTable = "" }, true},
		{"negative rate limit", func(c *Config) { c.RateLimitPerMinute = -1 }, true},
		{"tracing without endpoint", func(c *Config) { c.EnableTracing = true; c.OTLPEndpoint = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_INTERVAL", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_INTERVAL", time.Second))

	t.Setenv("TEST_INTERVAL", "15")
	assert.Equal(t, 15*time.Second, getEnvDuration("TEST_INTERVAL", time.Second))

	t.Setenv("TEST_INTERVAL", "soon")
	assert.Equal(t, time.Second, getEnvDuration("TEST_INTERVAL", time.Second))
}

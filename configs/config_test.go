package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 10, cfg.Redis.ConnectRetries)
	assert.Equal(t, 1500*time.Millisecond, cfg.Redis.DialTimeout)
	assert.Equal(t, MaxLifetime, cfg.Cache.LifetimeLimit)
	assert.Equal(t, 1024, cfg.Cache.CompressThreshold)
	assert.False(t, cfg.Cache.NotMatchingTags)
	assert.Empty(t, cfg.Cache.PersistentTags)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("REDIS_HOST", "/var/run/redis.sock")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("CACHE_COMPRESSION_LIB", "snappy")
	t.Setenv("CACHE_NOT_MATCHING_TAGS", "true")
	t.Setenv("CACHE_PERSISTENT_TAGS", "CONFIG, TRANSLATIONS,,")
	t.Setenv("CACHE_LIFETIME_LIMIT", "2000h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Redis.IsUnixSocket())
	assert.Equal(t, "/var/run/redis.sock", cfg.Redis.Addr())
	assert.Equal(t, "snappy", cfg.Cache.CompressionLib)
	assert.True(t, cfg.Cache.NotMatchingTags)
	assert.Equal(t, []string{"CONFIG", "TRANSLATIONS"}, cfg.Cache.PersistentTags)
	assert.Equal(t, MaxLifetime, cfg.Cache.LifetimeLimit, "limit is capped")
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		return &Config{
			Redis: RedisConfig{Host: "localhost", Port: "6379", ConnectRetries: 1},
			Cache: CacheConfig{CompressionLib: "gzip", LifetimeLimit: time.Hour, GCBatchSize: 100},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"missing host":     func(c *Config) { c.Redis.Host = "" },
		"missing port":     func(c *Config) { c.Redis.Port = "" },
		"no retries":       func(c *Config) { c.Redis.ConnectRetries = 0 },
		"negative level":   func(c *Config) { c.Cache.CompressData = -1 },
		"unknown lib":      func(c *Config) { c.Cache.CompressionLib = "brotli" },
		"zero limit":       func(c *Config) { c.Cache.LifetimeLimit = 0 },
		"default too long": func(c *Config) { c.Cache.DefaultLifetime = MaxLifetime + time.Second },
		"zero batch":       func(c *Config) { c.Cache.GCBatchSize = 0 },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		err := cfg.Validate()
		require.ErrorIs(t, err, cache.ErrConfiguration, name)
	}
}

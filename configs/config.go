package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
)

// MaxLifetime is the longest TTL the backend will ever set on a record.
const MaxLifetime = cache.MaxLifetime

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Cache   CacheConfig
	Content ContentConfig
	Admin   AdminConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
	// MaxBodySize limits request bodies, in echo's BodyLimit notation ("16M").
	MaxBodySize string
}

type RedisConfig struct {
	// Host is a hostname or, when it starts with "/", a unix socket path.
	Host     string
	Port     string
	Password string
	DB       int
	// Connection establishment
	ConnectRetries int
	RetryBackoff   time.Duration
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

// IsUnixSocket reports whether Host names a unix socket.
func (r RedisConfig) IsUnixSocket() bool { return strings.HasPrefix(r.Host, "/") }

// Addr returns the dial address for the configured transport.
func (r RedisConfig) Addr() string {
	if r.IsUnixSocket() {
		return r.Host
	}
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type CacheConfig struct {
	KeyPrefix         string
	CompressionLib    string
	CompressData      int
	CompressTags      int
	CompressThreshold int
	DefaultLifetime   time.Duration
	LifetimeLimit     time.Duration
	NotMatchingTags   bool
	PersistentTags    []string
	// PersistentTagPrefix is prepended to every entry of PersistentTags.
	PersistentTagPrefix     string
	AutomaticCleaningFactor int
	GCBatchSize             int
	// GCInterval schedules periodic garbage collection in the server; 0 disables it.
	GCInterval time.Duration
	// HealthFillThreshold marks the service unhealthy at this memory filling percentage.
	HealthFillThreshold int
}

type ContentConfig struct {
	StoreID  string
	Lifetime time.Duration
}

type AdminConfig struct {
	// JWTSecret signs admin bearer tokens; admin routes are disabled when empty.
	JWTSecret string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:  getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:   getEnv("TLS_KEY_FILE", ""),
			MaxBodySize:  getEnv("SERVER_MAX_BODY_SIZE", "16M"),
		},
		Redis: RedisConfig{
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getIntEnv("REDIS_DB", 0),
			ConnectRetries: getIntEnv("REDIS_CONNECT_RETRIES", 10),
			RetryBackoff:   getDurationEnv("REDIS_RETRY_BACKOFF", 0),
			PoolSize:       getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns:   getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:    getDurationEnv("REDIS_DIAL_TIMEOUT", 1500*time.Millisecond),
			ReadTimeout:    getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:   getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:    getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:    getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Cache: CacheConfig{
			KeyPrefix:               getEnv("CACHE_KEY_PREFIX", ""),
			CompressionLib:          getEnv("CACHE_COMPRESSION_LIB", "gzip"),
			CompressData:            getIntEnv("CACHE_COMPRESS_DATA", 6),
			CompressTags:            getIntEnv("CACHE_COMPRESS_TAGS", 6),
			CompressThreshold:       getIntEnv("CACHE_COMPRESS_THRESHOLD", 1024),
			DefaultLifetime:         getDurationEnv("CACHE_DEFAULT_LIFETIME", time.Hour),
			LifetimeLimit:           getDurationEnv("CACHE_LIFETIME_LIMIT", MaxLifetime),
			NotMatchingTags:         getBoolEnv("CACHE_NOT_MATCHING_TAGS", false),
			PersistentTags:          getListEnv("CACHE_PERSISTENT_TAGS"),
			PersistentTagPrefix:     getEnv("CACHE_PERSISTENT_TAG_PREFIX", ""),
			AutomaticCleaningFactor: getIntEnv("CACHE_AUTOMATIC_CLEANING_FACTOR", 0),
			GCBatchSize:             getIntEnv("CACHE_GC_BATCH_SIZE", 100),
			GCInterval:              getDurationEnv("CACHE_GC_INTERVAL", 0),
			HealthFillThreshold:     getIntEnv("CACHE_HEALTH_FILL_THRESHOLD", 95),
		},
		Content: ContentConfig{
			StoreID:  getEnv("CONTENT_STORE_ID", "1"),
			Lifetime: getDurationEnv("CONTENT_LIFETIME", time.Hour),
		},
		Admin: AdminConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Cache.LifetimeLimit > MaxLifetime {
		cfg.Cache.LifetimeLimit = MaxLifetime
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting as a cache.ErrConfiguration.
func (c *Config) Validate() error {
	switch {
	case c.Redis.Host == "":
		return fmt.Errorf("%w: redis host not specified", cache.ErrConfiguration)
	case c.Redis.Port == "" && !c.Redis.IsUnixSocket():
		return fmt.Errorf("%w: redis port not specified", cache.ErrConfiguration)
	case c.Redis.ConnectRetries < 1:
		return fmt.Errorf("%w: connect retries must be at least 1", cache.ErrConfiguration)
	case c.Cache.CompressData < 0 || c.Cache.CompressTags < 0:
		return fmt.Errorf("%w: compression levels must not be negative", cache.ErrConfiguration)
	case c.Cache.CompressThreshold < 0:
		return fmt.Errorf("%w: compression threshold must not be negative", cache.ErrConfiguration)
	case c.Cache.LifetimeLimit <= 0:
		return fmt.Errorf("%w: lifetime limit must be positive", cache.ErrConfiguration)
	case c.Cache.DefaultLifetime > MaxLifetime:
		return fmt.Errorf("%w: default lifetime exceeds the %s limit", cache.ErrConfiguration, MaxLifetime)
	case c.Cache.GCBatchSize < 1:
		return fmt.Errorf("%w: gc batch size must be at least 1", cache.ErrConfiguration)
	}
	switch c.Cache.CompressionLib {
	case "", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("%w: unsupported compression lib %q", cache.ErrConfiguration, c.Cache.CompressionLib)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated variable, dropping blanks.
func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/tagcache/go/configs"
	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
)

// NewRedisClient creates a Redis client and verifies the connection, retrying
// up to cfg.ConnectRetries times with cfg.RetryBackoff between attempts.
// A rejected credential fails immediately.
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = logrus.New()
	}
	network := "tcp"
	if cfg.IsUnixSocket() {
		network = "unix"
	}
	client := redis.NewClient(&redis.Options{
		Network:      network,
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   -1,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	})

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+cfg.ReadTimeout+time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err == nil {
			return client, nil
		}
		if isAuthError(err) {
			_ = client.Close()
			return nil, fmt.Errorf("%w: unable to authenticate with redis at %s: %w", cache.ErrConnection, cfg.Addr(), err)
		}
		lastErr = err
		logger.WithFields(logrus.Fields{"addr": cfg.Addr(), "attempt": attempt, "max_attempts": retries}).WithError(err).Warn("redis connect attempt failed")
		if attempt < retries && cfg.RetryBackoff > 0 {
			time.Sleep(cfg.RetryBackoff)
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("%w: unable to connect to redis at %s after %d tries: %w", cache.ErrConnection, cfg.Addr(), retries, lastErr)
}

func isAuthError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "NOAUTH") ||
		strings.HasPrefix(msg, "WRONGPASS") ||
		strings.Contains(msg, "invalid password")
}

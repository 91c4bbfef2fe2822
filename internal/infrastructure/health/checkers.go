package health

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/tagcache/go/internal/core/ports"
)

// redisHealthChecker pings the cache store.
type redisHealthChecker struct{ client redis.Cmdable }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client redis.Cmdable) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

// fillingChecker fails once the store's memory use reaches a threshold.
type fillingChecker struct {
	cache     ports.TagCache
	threshold int
}

func (f *fillingChecker) Name() string { return "cache_filling" }
func (f *fillingChecker) Check(ctx context.Context) error {
	pct, err := f.cache.GetFillingPercentage(ctx)
	if err != nil {
		return err
	}
	if pct >= f.threshold {
		return &FillingError{Percentage: pct, Threshold: f.threshold}
	}
	return nil
}

// FillingError reports a store above its filling threshold.
type FillingError struct {
	Percentage int
	Threshold  int
}

func (e *FillingError) Error() string {
	return fmt.Sprintf("cache store is %d%% full (threshold %d%%)", e.Percentage, e.Threshold)
}

// NewFillingChecker reports unhealthy when the store is at least threshold percent full.
// A threshold outside 1..100 disables the check by returning nil.
func NewFillingChecker(cache ports.TagCache, threshold int) ports.HealthChecker {
	if threshold < 1 || threshold > 100 {
		return nil
	}
	return &fillingChecker{cache: cache, threshold: threshold}
}

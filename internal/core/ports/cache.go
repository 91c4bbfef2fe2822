package ports

import (
	"context"
	"time"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
)

// TagCache is the tag-indexed cache backend contract.
// Misses are reported with ok=false and a nil error; every other failure is an error.
type TagCache interface {
	// Save stores payload under id, tagged with tags, for the given lifetime.
	Save(ctx context.Context, payload []byte, id string, tags []string, lifetime cache.Lifetime) error
	// Load returns the payload stored under id.
	Load(ctx context.Context, id string, skipValidity bool) ([]byte, bool, error)
	// Test returns the record's last modification time as Unix seconds.
	Test(ctx context.Context, id string) (int64, bool, error)
	// Remove deletes the record and its index memberships. It reports whether the record existed.
	Remove(ctx context.Context, id string) (bool, error)
	// Touch extends the TTL of a finite-lifetime record.
	Touch(ctx context.Context, id string, extra time.Duration) (bool, error)
	GetMetadata(ctx context.Context, id string) (*cache.Metadata, bool, error)

	Clean(ctx context.Context, mode cache.CleanMode, tags []string) error
	Flush(ctx context.Context) error
	CollectGarbage(ctx context.Context) (cache.GCStats, error)

	GetIds(ctx context.Context) ([]string, error)
	GetTags(ctx context.Context) ([]string, error)
	GetIdsMatchingTags(ctx context.Context, tags []string) ([]string, error)
	GetIdsNotMatchingTags(ctx context.Context, tags []string) ([]string, error)
	GetIdsMatchingAnyTags(ctx context.Context, tags []string) ([]string, error)

	GetCapabilities() cache.Capabilities
	GetFillingPercentage(ctx context.Context) (int, error)
}

// ContentCacheService maps rendered content and its reset conditions onto the tag cache.
type ContentCacheService interface {
	Put(ctx context.Context, cacheID string, content []byte, resetOn string) error
	Get(ctx context.Context, cacheID string) ([]byte, bool, error)
	CacheID(ctx context.Context, cacheID string) (int64, bool, error)
	Reset(ctx context.Context) error
	ResetOn(ctx context.Context, conditions map[string]string, useAnd bool) error
	CollectGarbage(ctx context.Context) (cache.GCStats, error)
}

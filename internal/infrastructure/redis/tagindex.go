package redis

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
)

// deleteBatchSize bounds the number of keys passed to one DEL or SREM.
const deleteBatchSize = 500

// Clean invalidates entries according to mode. Tag modes with no tags are no-ops.
func (b *Backend) Clean(ctx context.Context, mode cache.CleanMode, tags []string) (err error) {
	start := time.Now()
	defer func() { observe("clean", start, "", err) }()

	switch mode {
	case cache.CleanAll:
		return b.Flush(ctx)
	case cache.CleanOld:
		_, err = b.CollectGarbage(ctx)
		return err
	case cache.CleanMatchingTag, cache.CleanNotMatchingTag, cache.CleanMatchingAnyTag:
	default:
		return fmt.Errorf("%w: %q", cache.ErrInvalidMode, mode)
	}

	if len(tags) == 0 {
		return nil
	}
	switch mode {
	case cache.CleanMatchingTag:
		return b.removeByMatchingTags(ctx, tags)
	case cache.CleanNotMatchingTag:
		return b.removeByNotMatchingTags(ctx, tags)
	default:
		return b.removeByMatchingAnyTags(ctx, tags)
	}
}

// GetIdsMatchingTags returns the ids tagged with every tag (AND).
func (b *Backend) GetIdsMatchingTags(ctx context.Context, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}
	ids, err := b.client.SInter(ctx, b.keys.tagSets(tags)...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to intersect tag sets: %w", err)
	}
	return ids, nil
}

// GetIdsNotMatchingTags returns the ids tagged with none of tags. It needs the
// global id set and fails with cache.ErrUnsupportedOperation without it.
func (b *Backend) GetIdsNotMatchingTags(ctx context.Context, tags []string) ([]string, error) {
	if !b.opts.NotMatchingTags {
		return nil, fmt.Errorf("%w: not matching tag queries need global id tracking", cache.ErrUnsupportedOperation)
	}
	if len(tags) == 0 {
		return b.GetIds(ctx)
	}
	keys := append([]string{b.keys.allIds()}, b.keys.tagSets(tags)...)
	ids, err := b.client.SDiff(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to diff tag sets: %w", err)
	}
	return ids, nil
}

// GetIdsMatchingAnyTags returns the ids tagged with at least one tag (OR).
func (b *Backend) GetIdsMatchingAnyTags(ctx context.Context, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}
	ids, err := b.client.SUnion(ctx, b.keys.tagSets(tags)...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to union tag sets: %w", err)
	}
	return ids, nil
}

func (b *Backend) removeByMatchingTags(ctx context.Context, tags []string) error {
	ids, err := b.GetIdsMatchingTags(ctx, tags)
	if err != nil || len(ids) == 0 {
		return err
	}
	return b.atomically(ctx, "clean matching tags", func(pipe redis.Pipeliner) error {
		b.queueRecordDeletes(ctx, pipe, ids)
		return nil
	})
}

func (b *Backend) removeByNotMatchingTags(ctx context.Context, tags []string) error {
	ids, err := b.GetIdsNotMatchingTags(ctx, tags)
	if err != nil || len(ids) == 0 {
		return err
	}
	return b.atomically(ctx, "clean not matching tags", func(pipe redis.Pipeliner) error {
		b.queueRecordDeletes(ctx, pipe, ids)
		return nil
	})
}

// removeByMatchingAnyTags also retires the tags themselves, whether or not any id matched.
func (b *Backend) removeByMatchingAnyTags(ctx context.Context, tags []string) error {
	ids, err := b.GetIdsMatchingAnyTags(ctx, tags)
	if err != nil {
		return err
	}
	return b.atomically(ctx, "clean matching any tag", func(pipe redis.Pipeliner) error {
		b.queueRecordDeletes(ctx, pipe, ids)
		pipe.Del(ctx, b.keys.tagSets(tags)...)
		pipe.SRem(ctx, b.keys.allTags(), toArgs(tags)...)
		return nil
	})
}

// queueRecordDeletes deletes the records of ids and drops them from the global id set.
func (b *Backend) queueRecordDeletes(ctx context.Context, pipe redis.Pipeliner, ids []string) {
	for part := range slices.Chunk(ids, deleteBatchSize) {
		pipe.Del(ctx, b.keys.records(part)...)
		if b.opts.NotMatchingTags {
			pipe.SRem(ctx, b.keys.allIds(), toArgs(part)...)
		}
	}
}

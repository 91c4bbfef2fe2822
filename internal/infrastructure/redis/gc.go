package redis

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
)

// CollectGarbage removes index references to ids whose record Redis has
// already expired. Tags left without a live member are retired. When the
// global id set is maintained it is swept as well, which also covers ids saved
// without tags.
func (b *Backend) CollectGarbage(ctx context.Context) (stats cache.GCStats, err error) {
	start := time.Now()
	defer func() { observe("gc", start, "", err) }()

	tags, err := b.client.SMembers(ctx, b.keys.allTags()).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to list cache tags: %w", err)
	}

	exists := make(map[string]bool)
	for _, tag := range tags {
		stats.TagsScanned++
		expired, retired, err := b.collectTag(ctx, tag, exists)
		if err != nil {
			return stats, err
		}
		stats.IdsExpired += expired
		if retired {
			stats.TagsRemoved++
		}
	}

	if b.opts.NotMatchingTags {
		pruned, err := b.pruneIds(ctx, exists)
		if err != nil {
			return stats, err
		}
		stats.IdsPruned = pruned
	}

	gcRemovedTotal.WithLabelValues("tag").Add(float64(stats.TagsRemoved))
	gcRemovedTotal.WithLabelValues("tag_member").Add(float64(stats.IdsExpired))
	gcRemovedTotal.WithLabelValues("id").Add(float64(stats.IdsPruned))
	b.logger.WithFields(logrus.Fields{
		"tags_scanned": stats.TagsScanned,
		"tags_removed": stats.TagsRemoved,
		"ids_expired":  stats.IdsExpired,
		"ids_pruned":   stats.IdsPruned,
		"duration":     time.Since(start).String(),
	}).Info("cache garbage collection finished")
	return stats, nil
}

// collectTag sweeps one tag set and reports how many members were stale and
// whether the tag itself was retired.
func (b *Backend) collectTag(ctx context.Context, tag string, exists map[string]bool) (int, bool, error) {
	setKey := b.keys.tagIds(tag)
	members, err := b.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read members of tag %q: %w", tag, err)
	}
	if err := b.resolveExistence(ctx, members, exists); err != nil {
		return 0, false, err
	}
	var expired []string
	for _, id := range members {
		if !exists[id] {
			expired = append(expired, id)
		}
	}

	if len(expired) == len(members) {
		err := b.atomically(ctx, "gc retire tag", func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, setKey)
			pipe.SRem(ctx, b.keys.allTags(), tag)
			if b.opts.NotMatchingTags {
				for part := range slices.Chunk(expired, b.opts.GCBatchSize) {
					pipe.SRem(ctx, b.keys.allIds(), toArgs(part)...)
				}
			}
			return nil
		})
		if err != nil {
			return 0, false, err
		}
		return len(expired), true, nil
	}

	for part := range slices.Chunk(expired, b.opts.GCBatchSize) {
		err := b.atomically(ctx, "gc prune tag", func(pipe redis.Pipeliner) error {
			pipe.SRem(ctx, setKey, toArgs(part)...)
			if b.opts.NotMatchingTags {
				pipe.SRem(ctx, b.keys.allIds(), toArgs(part)...)
			}
			return nil
		})
		if err != nil {
			return 0, false, err
		}
	}
	return len(expired), false, nil
}

// pruneIds drops ids from the global id set whose record no longer exists.
func (b *Backend) pruneIds(ctx context.Context, exists map[string]bool) (int, error) {
	pruned := 0
	var cursor uint64
	for {
		ids, next, err := b.client.SScan(ctx, b.keys.allIds(), cursor, "*", int64(b.opts.GCBatchSize)).Result()
		if err != nil {
			return pruned, fmt.Errorf("failed to scan cache ids: %w", err)
		}
		if err := b.resolveExistence(ctx, ids, exists); err != nil {
			return pruned, err
		}
		var stale []string
		for _, id := range ids {
			if !exists[id] {
				stale = append(stale, id)
			}
		}
		if len(stale) > 0 {
			if err := b.client.SRem(ctx, b.keys.allIds(), toArgs(stale)...).Err(); err != nil {
				return pruned, fmt.Errorf("failed to prune cache ids: %w", err)
			}
			pruned += len(stale)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return pruned, nil
}

// resolveExistence fills exists for every id not yet checked, pipelining
// EXISTS calls in batches.
func (b *Backend) resolveExistence(ctx context.Context, ids []string, exists map[string]bool) error {
	var pending []string
	for _, id := range ids {
		if _, checked := exists[id]; !checked {
			pending = append(pending, id)
		}
	}
	for part := range slices.Chunk(pending, b.opts.GCBatchSize) {
		pipe := b.client.Pipeline()
		cmds := make([]*redis.IntCmd, len(part))
		for i, id := range part {
			cmds[i] = pipe.Exists(ctx, b.keys.record(id))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to check cache records: %w", err)
		}
		for i, id := range part {
			exists[id] = cmds[i].Val() > 0
		}
	}
	return nil
}

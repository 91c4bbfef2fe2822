package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
	"github.com/avatarctic/tagcache/go/internal/core/ports"
	"github.com/avatarctic/tagcache/go/internal/infrastructure/codec"
)

const defaultGCBatchSize = 100

// Options configures a Backend.
type Options struct {
	KeyPrefix    string
	CompressData int
	CompressTags int
	// DefaultLifetime applies to saves with cache.LifetimeDefault. Zero means infinite.
	DefaultLifetime time.Duration
	// LifetimeLimit caps every TTL; it is itself capped at cache.MaxLifetime.
	LifetimeLimit time.Duration
	// NotMatchingTags maintains the global id set needed for negated tag queries.
	NotMatchingTags         bool
	PersistentTags          []string
	PersistentTagPrefix     string
	AutomaticCleaningFactor int
	GCBatchSize             int
}

// Backend is the tag-indexed cache engine on top of Redis.
type Backend struct {
	client     redis.Cmdable
	codec      *codec.Codec
	keys       keyspace
	opts       Options
	persistent map[string]struct{}
	logger     *logrus.Logger
	now        func() time.Time
}

// Ensure Backend implements ports.TagCache
var _ ports.TagCache = (*Backend)(nil)

// NewBackend creates a cache engine over client.
func NewBackend(client redis.Cmdable, c *codec.Codec, opts Options, logger *logrus.Logger) *Backend {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.LifetimeLimit <= 0 || opts.LifetimeLimit > cache.MaxLifetime {
		opts.LifetimeLimit = cache.MaxLifetime
	}
	if opts.GCBatchSize < 1 {
		opts.GCBatchSize = defaultGCBatchSize
	}
	persistent := make(map[string]struct{}, len(opts.PersistentTags))
	for _, tag := range opts.PersistentTags {
		persistent[opts.PersistentTagPrefix+tag] = struct{}{}
	}
	return &Backend{
		client:     client,
		codec:      c,
		keys:       keyspace{prefix: opts.KeyPrefix},
		opts:       opts,
		persistent: persistent,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source; each operation reads it once.
func (b *Backend) WithClock(now func() time.Time) *Backend {
	b.now = now
	return b
}

// Save stores payload under id and moves id's tag memberships to tags, all in one transaction.
func (b *Backend) Save(ctx context.Context, payload []byte, id string, tags []string, lifetime cache.Lifetime) (err error) {
	start := time.Now()
	defer func() { observe("save", start, "", err) }()

	now := b.now()
	tags, err = normalizeTags(tags)
	if err != nil {
		return err
	}
	ttl := b.resolveLifetime(lifetime)
	key := b.keys.record(id)

	oldTags, err := b.readTags(ctx, key)
	if err != nil {
		return err
	}
	data, err := b.codec.Encode(payload, b.opts.CompressData)
	if err != nil {
		return err
	}
	encodedTags, err := b.codec.Encode([]byte(strings.Join(tags, ",")), b.opts.CompressTags)
	if err != nil {
		return err
	}

	// Records without a TTL are flagged infinite so touch and metadata never read a missing TTL.
	persist := ttl == 0 || b.isPersistent(tags)
	inf := 0
	if persist {
		inf = 1
	}
	removed := difference(oldTags, tags)

	return b.atomically(ctx, "save", func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldData, data, fieldTags, encodedTags, fieldMTime, now.Unix(), fieldInf, inf)
		if persist {
			pipe.Persist(ctx, key)
		} else {
			pipe.Expire(ctx, key, ttl)
		}
		if len(tags) > 0 {
			pipe.SAdd(ctx, b.keys.allTags(), toArgs(tags)...)
			for _, tag := range tags {
				pipe.SAdd(ctx, b.keys.tagIds(tag), id)
			}
		}
		for _, tag := range removed {
			pipe.SRem(ctx, b.keys.tagIds(tag), id)
		}
		if b.opts.NotMatchingTags {
			pipe.SAdd(ctx, b.keys.allIds(), id)
		}
		return nil
	})
}

// Load returns the decoded payload of id. skipValidity has no effect: expiry is enforced by Redis.
func (b *Backend) Load(ctx context.Context, id string, skipValidity bool) (payload []byte, ok bool, err error) {
	start := time.Now()
	result := "hit"
	defer func() { observe("load", start, result, err) }()

	data, err := b.client.HGet(ctx, b.keys.record(id), fieldData).Bytes()
	if err == redis.Nil {
		result = "miss"
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load cache record %q: %w", id, err)
	}
	payload, err = b.codec.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("cache record %q: %w", id, err)
	}
	return payload, true, nil
}

// Test returns the record's mtime as Unix seconds.
func (b *Backend) Test(ctx context.Context, id string) (int64, bool, error) {
	mtime, err := b.client.HGet(ctx, b.keys.record(id), fieldMTime).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to test cache record %q: %w", id, err)
	}
	return mtime, true, nil
}

// Remove deletes id and its tag memberships in one transaction.
func (b *Backend) Remove(ctx context.Context, id string) (existed bool, err error) {
	start := time.Now()
	defer func() { observe("remove", start, "", err) }()

	key := b.keys.record(id)
	tags, err := b.readTags(ctx, key)
	if err != nil {
		return false, err
	}

	var del *redis.IntCmd
	err = b.atomically(ctx, "remove", func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, key)
		if b.opts.NotMatchingTags {
			pipe.SRem(ctx, b.keys.allIds(), id)
		}
		for _, tag := range tags {
			pipe.SRem(ctx, b.keys.tagIds(tag), id)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

// Touch extends the TTL of a finite-lifetime record by extra.
func (b *Backend) Touch(ctx context.Context, id string, extra time.Duration) (bool, error) {
	now := b.now()
	key := b.keys.record(id)
	inf, err := b.client.HGet(ctx, key, fieldInf).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read lifetime flag of %q: %w", id, err)
	}
	if inf != "0" {
		return false, nil
	}
	ttl, err := b.client.TTL(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read ttl of %q: %w", id, err)
	}
	// -1 (no TTL) and -2 (missing key) come back as negative durations
	if ttl < 0 {
		return false, nil
	}
	ok, err := b.client.ExpireAt(ctx, key, now.Add(ttl+extra)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to extend ttl of %q: %w", id, err)
	}
	return ok, nil
}

// GetMetadata returns expiry, tags and mtime of id.
func (b *Backend) GetMetadata(ctx context.Context, id string) (*cache.Metadata, bool, error) {
	now := b.now()
	rec, ok, err := b.readHeader(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	meta := &cache.Metadata{Tags: rec.Tags, MTime: rec.MTime}
	if !rec.Infinite {
		ttl, err := b.client.TTL(ctx, b.keys.record(id)).Result()
		if err != nil {
			return nil, false, fmt.Errorf("failed to read ttl of %q: %w", id, err)
		}
		if ttl >= 0 {
			expireAt := now.Add(ttl)
			meta.ExpireAt = &expireAt
		}
	}
	return meta, true, nil
}

// readHeader loads every field of a record except its payload.
func (b *Backend) readHeader(ctx context.Context, id string) (*cache.Record, bool, error) {
	vals, err := b.client.HMGet(ctx, b.keys.record(id), fieldTags, fieldMTime, fieldInf).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read metadata of %q: %w", id, err)
	}
	rawMTime, ok := vals[1].(string)
	if !ok {
		return nil, false, nil
	}
	mtime, err := strconv.ParseInt(rawMTime, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad mtime of %q: %w", cache.ErrCorruptRecord, id, err)
	}
	rawTags, _ := vals[0].(string)
	tags, err := b.decodeTags([]byte(rawTags))
	if err != nil {
		return nil, false, fmt.Errorf("cache record %q: %w", id, err)
	}
	inf, _ := vals[2].(string)
	return &cache.Record{Tags: tags, MTime: time.Unix(mtime, 0), Infinite: inf == "1"}, true, nil
}

// Flush wipes the engine's namespace: the whole database when no key prefix is
// configured, otherwise every key under the prefix.
func (b *Backend) Flush(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe("flush", start, "", err) }()

	if b.keys.prefix == "" {
		if err := b.client.FlushDB(ctx).Err(); err != nil {
			return fmt.Errorf("failed to flush cache database: %w", err)
		}
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.keys.namespacePattern(), 500).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache namespace: %w", err)
		}
		if len(keys) > 0 {
			if err := b.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// GetIds lists every cached id.
func (b *Backend) GetIds(ctx context.Context) ([]string, error) {
	if b.opts.NotMatchingTags {
		ids, err := b.client.SMembers(ctx, b.keys.allIds()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list cache ids: %w", err)
		}
		return ids, nil
	}
	ids := []string{}
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.keys.recordPattern(), 500).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache records: %w", err)
		}
		for _, k := range keys {
			ids = append(ids, b.keys.idOf(k))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

// GetTags lists every known tag.
func (b *Backend) GetTags(ctx context.Context) ([]string, error) {
	tags, err := b.client.SMembers(ctx, b.keys.allTags()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cache tags: %w", err)
	}
	return tags, nil
}

func (b *Backend) GetCapabilities() cache.Capabilities {
	return cache.Capabilities{
		AutomaticCleaning: b.opts.AutomaticCleaningFactor > 0,
		Tags:              true,
		ExpiredRead:       false,
		Priority:          false,
		InfiniteLifetime:  true,
		GetList:           true,
	}
}

// GetFillingPercentage reports used_memory as a percentage of maxmemory, or 0
// when Redis runs without a memory limit.
func (b *Backend) GetFillingPercentage(ctx context.Context) (int, error) {
	info, err := b.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read redis memory info: %w", err)
	}
	return fillingPercentage(info), nil
}

func fillingPercentage(info string) int {
	var used, limit int64
	for _, line := range strings.Split(info, "\n") {
		name, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		switch name {
		case "used_memory":
			used, _ = strconv.ParseInt(value, 10, 64)
		case "maxmemory":
			limit, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	if limit <= 0 {
		return 0
	}
	pct := int(used * 100 / limit)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// resolveLifetime returns the TTL to apply, 0 meaning none.
func (b *Backend) resolveLifetime(lifetime cache.Lifetime) time.Duration {
	ttl := lifetime.Duration()
	if lifetime == cache.LifetimeDefault {
		ttl = b.opts.DefaultLifetime
	}
	if ttl <= 0 {
		return 0
	}
	if ttl > b.opts.LifetimeLimit {
		ttl = b.opts.LifetimeLimit
	}
	return ttl
}

func (b *Backend) isPersistent(tags []string) bool {
	for _, tag := range tags {
		if _, ok := b.persistent[tag]; ok {
			return true
		}
	}
	return false
}

func (b *Backend) readTags(ctx context.Context, key string) ([]string, error) {
	raw, err := b.client.HGet(ctx, key, fieldTags).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tags of %s: %w", key, err)
	}
	return b.decodeTags(raw)
}

func (b *Backend) decodeTags(raw []byte) ([]string, error) {
	decoded, err := b.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	tags := []string{}
	for _, tag := range strings.Split(string(decoded), ",") {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

// normalizeTags drops empty and duplicate tags, keeping first-seen order.
func normalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if strings.Contains(tag, ",") {
			return nil, fmt.Errorf("%w: %q contains ','", cache.ErrInvalidTag, tag)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}

// difference returns the elements of a missing from b.
func difference(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	keep := make(map[string]struct{}, len(b))
	for _, s := range b {
		keep[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := keep[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

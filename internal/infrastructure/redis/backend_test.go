package redis

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
	"github.com/avatarctic/tagcache/go/internal/infrastructure/codec"
)

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBackend(t *testing.T, opts Options) (*Backend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(testClock)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := codec.New(codec.Gzip, 16)
	require.NoError(t, err)
	if opts.CompressData == 0 {
		opts.CompressData = 6
	}
	if opts.CompressTags == 0 {
		opts.CompressTags = 6
	}
	b := NewBackend(client, c, opts, logrus.New()).WithClock(func() time.Time { return testClock })
	return b, mr
}

func members(t *testing.T, mr *miniredis.Miniredis, key string) []string {
	t.Helper()
	if !mr.Exists(key) {
		return nil
	}
	m, err := mr.SMembers(key)
	require.NoError(t, err)
	return m
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{})

	small := []byte("hello world")
	large := bytes.Repeat([]byte("compressible payload "), 200)
	require.NoError(t, b.Save(ctx, small, "small", []string{"A"}, cache.For(time.Hour)))
	require.NoError(t, b.Save(ctx, large, "large", []string{"A"}, cache.For(time.Hour)))

	stored := mr.HGet(b.keys.record("large"), fieldData)
	assert.True(t, strings.HasPrefix(stored, "gz\x1f\x8b"), "large payload is compressed on the store")

	got, ok, err := b.Load(ctx, "small", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, small, got)

	got, ok, err = b.Load(ctx, "large", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, large, got)

	_, ok, err = b.Load(ctx, "missing", false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoad_EmptyPayloadIsAHit(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, Options{})
	require.NoError(t, b.Save(ctx, []byte{}, "empty", nil, cache.For(time.Minute)))
	got, ok, err := b.Load(ctx, "empty", false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestSave_RecordLayout(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{})
	require.NoError(t, b.Save(ctx, []byte("v"), "k1", []string{"A", "B", "A", ""}, cache.For(time.Minute)))

	key := b.keys.record("k1")
	assert.Equal(t, "A,B", mr.HGet(key, fieldTags))
	assert.Equal(t, "0", mr.HGet(key, fieldInf))
	assert.Equal(t, "1772366400", mr.HGet(key, fieldMTime))
	assert.Equal(t, time.Minute, mr.TTL(key))
	assert.ElementsMatch(t, []string{"A", "B"}, members(t, mr, b.keys.allTags()))
	assert.Nil(t, members(t, mr, b.keys.allIds()), "global ids untracked by default")
}

func TestSave_LongTagListIsCompressed(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{})
	tags := []string{"CATEGORY_0000000001", "CATEGORY_0000000002", "CATEGORY_0000000003"}
	require.NoError(t, b.Save(ctx, []byte("v"), "k1", tags, cache.For(time.Minute)))
	assert.True(t, strings.HasPrefix(mr.HGet(b.keys.record("k1"), fieldTags), "gz\x1f\x8b"))

	meta, ok, err := b.GetMetadata(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tags, meta.Tags)
}

func TestSave_MovesTagMembership(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, Options{})

	require.NoError(t, b.Save(ctx, []byte("hello world"), "k1", []string{"A", "B"}, cache.For(time.Hour)))
	ids, err := b.GetIdsMatchingTags(ctx, []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, ids)

	require.NoError(t, b.Save(ctx, []byte("hi"), "k1", []string{"B"}, cache.For(time.Hour)))
	ids, err = b.GetIdsMatchingTags(ctx, []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, ids)
	ids, err = b.GetIdsMatchingTags(ctx, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, ids)
}

func TestSave_RejectsSeparatorInTag(t *testing.T) {
	b, mr := newTestBackend(t, Options{})
	err := b.Save(context.Background(), []byte("v"), "k1", []string{"a,b"}, cache.For(time.Minute))
	require.ErrorIs(t, err, cache.ErrInvalidTag)
	assert.False(t, mr.Exists(b.keys.record("k1")))
}

func TestSave_PrefixedPayloadRoundTrips(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, Options{})
	payload := []byte("zs\x1f\x8bhi")

	require.NoError(t, b.Save(ctx, payload, "k", nil, cache.For(time.Minute)))
	got, ok, err := b.Load(ctx, "k", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

// The previous tags are read before MULTI; a failed read aborts the save.
func TestSave_PreviousTagsReadErrorLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{})
	require.NoError(t, mr.Set(b.keys.record("k1"), "not a hash"))

	err := b.Save(ctx, []byte("v"), "k1", []string{"A"}, cache.For(time.Minute))
	require.Error(t, err)
	assert.Nil(t, members(t, mr, b.keys.allTags()))
	assert.Nil(t, members(t, mr, b.keys.tagIds("A")))
}

func TestSave_Lifetimes(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{
		DefaultLifetime: 30 * time.Second,
		LifetimeLimit:   100 * time.Second,
		PersistentTags:  []string{"CONFIG"},
	})

	require.NoError(t, b.Save(ctx, []byte("v"), "default", nil, cache.LifetimeDefault))
	assert.Equal(t, 30*time.Second, mr.TTL(b.keys.record("default")))

	require.NoError(t, b.Save(ctx, []byte("v"), "capped", nil, cache.For(time.Hour)))
	assert.Equal(t, 100*time.Second, mr.TTL(b.keys.record("capped")))

	require.NoError(t, b.Save(ctx, []byte("v"), "infinite", nil, cache.LifetimeInfinite))
	assert.Zero(t, mr.TTL(b.keys.record("infinite")))
	assert.Equal(t, "1", mr.HGet(b.keys.record("infinite"), fieldInf))

	require.NoError(t, b.Save(ctx, []byte("v"), "persistent", []string{"PAGE", "CONFIG"}, cache.For(50*time.Second)))
	assert.Zero(t, mr.TTL(b.keys.record("persistent")))
	assert.Equal(t, "1", mr.HGet(b.keys.record("persistent"), fieldInf))

	// a later save without the persistent tag puts the TTL back
	require.NoError(t, b.Save(ctx, []byte("v"), "persistent", []string{"PAGE"}, cache.For(50*time.Second)))
	assert.Equal(t, 50*time.Second, mr.TTL(b.keys.record("persistent")))
}

func TestSave_PersistentTagPrefix(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{PersistentTags: []string{"CONFIG"}, PersistentTagPrefix: "shop1_"})

	require.NoError(t, b.Save(ctx, []byte("v"), "k1", []string{"CONFIG"}, cache.For(time.Minute)))
	assert.Equal(t, time.Minute, mr.TTL(b.keys.record("k1")))

	require.NoError(t, b.Save(ctx, []byte("v"), "k2", []string{"shop1_CONFIG"}, cache.For(time.Minute)))
	assert.Zero(t, mr.TTL(b.keys.record("k2")))
}

func TestTest_ReturnsMTime(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, Options{})
	require.NoError(t, b.Save(ctx, []byte("v"), "k1", nil, cache.For(time.Minute)))

	mtime, ok, err := b.Test(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testClock.Unix(), mtime)

	_, ok, err = b.Test(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemove_DropsRecordAndMemberships(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{NotMatchingTags: true})
	require.NoError(t, b.Save(ctx, []byte("v"), "k1", []string{"A", "B"}, cache.For(time.Minute)))
	require.NoError(t, b.Save(ctx, []byte("v"), "k2", []string{"A"}, cache.For(time.Minute)))

	existed, err := b.Remove(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok, err := b.Load(ctx, "k1", false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"k2"}, members(t, mr, b.keys.tagIds("A")))
	assert.Nil(t, members(t, mr, b.keys.tagIds("B")))
	assert.Equal(t, []string{"k2"}, members(t, mr, b.keys.allIds()))

	existed, err = b.Remove(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{})
	require.NoError(t, b.Save(ctx, []byte("v"), "finite", nil, cache.For(100*time.Second)))
	require.NoError(t, b.Save(ctx, []byte("v"), "infinite", nil, cache.LifetimeInfinite))

	ok, err := b.Touch(ctx, "finite", 50*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 150*time.Second, mr.TTL(b.keys.record("finite")))

	ok, err = b.Touch(ctx, "infinite", 50*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, mr.TTL(b.keys.record("infinite")))

	ok, err = b.Touch(ctx, "missing", 50*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMetadata(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, Options{})
	require.NoError(t, b.Save(ctx, []byte("v"), "finite", []string{"A", "B"}, cache.For(100*time.Second)))
	require.NoError(t, b.Save(ctx, []byte("v"), "infinite", nil, cache.LifetimeInfinite))

	meta, ok, err := b.GetMetadata(ctx, "finite")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, meta.Tags)
	assert.Equal(t, testClock.Unix(), meta.MTime.Unix())
	require.NotNil(t, meta.ExpireAt)
	assert.Equal(t, testClock.Add(100*time.Second), *meta.ExpireAt)

	meta, ok, err = b.GetMetadata(ctx, "infinite")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, meta.ExpireAt)
	assert.Empty(t, meta.Tags)

	_, ok, err = b.GetMetadata(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlush_WithoutPrefixWipesDatabase(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{})
	require.NoError(t, b.Save(ctx, []byte("v"), "k1", []string{"A"}, cache.For(time.Minute)))
	require.NoError(t, mr.Set("foreign", "x"))

	require.NoError(t, b.Clean(ctx, cache.CleanAll, nil))
	assert.Empty(t, mr.Keys())
}

func TestFlush_WithPrefixKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t, Options{KeyPrefix: "zc:"})
	require.NoError(t, b.Save(ctx, []byte("v"), "k1", []string{"A"}, cache.For(time.Minute)))
	require.NoError(t, mr.Set("foreign", "x"))
	assert.True(t, mr.Exists("zc:record:k1"))

	require.NoError(t, b.Flush(ctx))
	assert.Equal(t, []string{"foreign"}, mr.Keys())
}

func TestGetIds(t *testing.T) {
	ctx := context.Background()
	for _, tracked := range []bool{false, true} {
		b, _ := newTestBackend(t, Options{KeyPrefix: "app:", NotMatchingTags: tracked})
		require.NoError(t, b.Save(ctx, []byte("v"), "k1", []string{"A"}, cache.For(time.Minute)))
		require.NoError(t, b.Save(ctx, []byte("v"), "k2", nil, cache.For(time.Minute)))

		ids, err := b.GetIds(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"k1", "k2"}, ids, "tracked=%v", tracked)

		tags, err := b.GetTags(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, tags)
	}
}

func TestGetCapabilities(t *testing.T) {
	b, _ := newTestBackend(t, Options{})
	caps := b.GetCapabilities()
	assert.False(t, caps.AutomaticCleaning)
	assert.True(t, caps.Tags)
	assert.True(t, caps.InfiniteLifetime)
	assert.True(t, caps.GetList)
	assert.False(t, caps.ExpiredRead)
	assert.False(t, caps.Priority)

	b, _ = newTestBackend(t, Options{AutomaticCleaningFactor: 10})
	assert.True(t, b.GetCapabilities().AutomaticCleaning)
}

func TestFillingPercentage(t *testing.T) {
	info := "# Memory\r\nused_memory:250\r\nused_memory_human:250B\r\nmaxmemory:1000\r\n"
	assert.Equal(t, 25, fillingPercentage(info))
	assert.Equal(t, 0, fillingPercentage("# Memory\r\nused_memory:250\r\nmaxmemory:0\r\n"))
	assert.Equal(t, 100, fillingPercentage("used_memory:2000\nmaxmemory:1000\n"))
}

func TestNewBackend_CapsLifetimeLimit(t *testing.T) {
	b := NewBackend(nil, nil, Options{LifetimeLimit: 365 * 24 * time.Hour}, nil)
	assert.Equal(t, cache.MaxLifetime, b.opts.LifetimeLimit)
	assert.Equal(t, defaultGCBatchSize, b.opts.GCBatchSize)
}

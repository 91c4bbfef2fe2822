package mocks

import (
	"context"
	"time"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
	"github.com/avatarctic/tagcache/go/internal/core/ports"
)

// SaveCall records the arguments of one TagCacheMock.Save call.
type SaveCall struct {
	Payload  []byte
	ID       string
	Tags     []string
	Lifetime cache.Lifetime
}

// CleanCall records the arguments of one TagCacheMock.Clean call.
type CleanCall struct {
	Mode cache.CleanMode
	Tags []string
}

// TagCacheMock is a lightweight mock for ports.TagCache
type TagCacheMock struct {
	SaveFn                  func(ctx context.Context, payload []byte, id string, tags []string, lifetime cache.Lifetime) error
	LoadFn                  func(ctx context.Context, id string, skipValidity bool) ([]byte, bool, error)
	TestFn                  func(ctx context.Context, id string) (int64, bool, error)
	RemoveFn                func(ctx context.Context, id string) (bool, error)
	TouchFn                 func(ctx context.Context, id string, extra time.Duration) (bool, error)
	GetMetadataFn           func(ctx context.Context, id string) (*cache.Metadata, bool, error)
	CleanFn                 func(ctx context.Context, mode cache.CleanMode, tags []string) error
	FlushFn                 func(ctx context.Context) error
	CollectGarbageFn        func(ctx context.Context) (cache.GCStats, error)
	GetIdsFn                func(ctx context.Context) ([]string, error)
	GetTagsFn               func(ctx context.Context) ([]string, error)
	GetIdsMatchingTagsFn    func(ctx context.Context, tags []string) ([]string, error)
	GetIdsNotMatchingTagsFn func(ctx context.Context, tags []string) ([]string, error)
	GetIdsMatchingAnyTagsFn func(ctx context.Context, tags []string) ([]string, error)
	GetFillingPercentageFn  func(ctx context.Context) (int, error)
	Caps                    cache.Capabilities

	Saves    []SaveCall
	Cleans   []CleanCall
	Flushes  int
	GCRounds int
}

var _ ports.TagCache = (*TagCacheMock)(nil)

func (m *TagCacheMock) Save(ctx context.Context, payload []byte, id string, tags []string, lifetime cache.Lifetime) error {
	m.Saves = append(m.Saves, SaveCall{Payload: payload, ID: id, Tags: tags, Lifetime: lifetime})
	if m.SaveFn != nil {
		return m.SaveFn(ctx, payload, id, tags, lifetime)
	}
	return nil
}
func (m *TagCacheMock) Load(ctx context.Context, id string, skipValidity bool) ([]byte, bool, error) {
	if m.LoadFn != nil {
		return m.LoadFn(ctx, id, skipValidity)
	}
	return nil, false, nil
}
func (m *TagCacheMock) Test(ctx context.Context, id string) (int64, bool, error) {
	if m.TestFn != nil {
		return m.TestFn(ctx, id)
	}
	return 0, false, nil
}
func (m *TagCacheMock) Remove(ctx context.Context, id string) (bool, error) {
	if m.RemoveFn != nil {
		return m.RemoveFn(ctx, id)
	}
	return false, nil
}
func (m *TagCacheMock) Touch(ctx context.Context, id string, extra time.Duration) (bool, error) {
	if m.TouchFn != nil {
		return m.TouchFn(ctx, id, extra)
	}
	return false, nil
}
func (m *TagCacheMock) GetMetadata(ctx context.Context, id string) (*cache.Metadata, bool, error) {
	if m.GetMetadataFn != nil {
		return m.GetMetadataFn(ctx, id)
	}
	return nil, false, nil
}
func (m *TagCacheMock) Clean(ctx context.Context, mode cache.CleanMode, tags []string) error {
	m.Cleans = append(m.Cleans, CleanCall{Mode: mode, Tags: tags})
	if m.CleanFn != nil {
		return m.CleanFn(ctx, mode, tags)
	}
	return nil
}
func (m *TagCacheMock) Flush(ctx context.Context) error {
	m.Flushes++
	if m.FlushFn != nil {
		return m.FlushFn(ctx)
	}
	return nil
}
func (m *TagCacheMock) CollectGarbage(ctx context.Context) (cache.GCStats, error) {
	m.GCRounds++
	if m.CollectGarbageFn != nil {
		return m.CollectGarbageFn(ctx)
	}
	return cache.GCStats{}, nil
}
func (m *TagCacheMock) GetIds(ctx context.Context) ([]string, error) {
	if m.GetIdsFn != nil {
		return m.GetIdsFn(ctx)
	}
	return []string{}, nil
}
func (m *TagCacheMock) GetTags(ctx context.Context) ([]string, error) {
	if m.GetTagsFn != nil {
		return m.GetTagsFn(ctx)
	}
	return []string{}, nil
}
func (m *TagCacheMock) GetIdsMatchingTags(ctx context.Context, tags []string) ([]string, error) {
	if m.GetIdsMatchingTagsFn != nil {
		return m.GetIdsMatchingTagsFn(ctx, tags)
	}
	return []string{}, nil
}
func (m *TagCacheMock) GetIdsNotMatchingTags(ctx context.Context, tags []string) ([]string, error) {
	if m.GetIdsNotMatchingTagsFn != nil {
		return m.GetIdsNotMatchingTagsFn(ctx, tags)
	}
	return []string{}, nil
}
func (m *TagCacheMock) GetIdsMatchingAnyTags(ctx context.Context, tags []string) ([]string, error) {
	if m.GetIdsMatchingAnyTagsFn != nil {
		return m.GetIdsMatchingAnyTagsFn(ctx, tags)
	}
	return []string{}, nil
}
func (m *TagCacheMock) GetCapabilities() cache.Capabilities { return m.Caps }
func (m *TagCacheMock) GetFillingPercentage(ctx context.Context) (int, error) {
	if m.GetFillingPercentageFn != nil {
		return m.GetFillingPercentageFn(ctx)
	}
	return 0, nil
}

// HealthCheckerMock is a lightweight mock for ports.HealthChecker
type HealthCheckerMock struct {
	NameValue string
	CheckFn   func(ctx context.Context) error
}

func (m *HealthCheckerMock) Name() string { return m.NameValue }
func (m *HealthCheckerMock) Check(ctx context.Context) error {
	if m.CheckFn != nil {
		return m.CheckFn(ctx)
	}
	return nil
}

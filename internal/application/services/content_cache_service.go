package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
	"github.com/avatarctic/tagcache/go/internal/core/ports"
)

const (
	contentTagPrefix = "OX_DCC_"
	storeTagKey      = "STORE"
)

// ContentCacheConfig groups the settings of the content cache frontend.
type ContentCacheConfig struct {
	StoreID  string
	Lifetime time.Duration
	// AutomaticCleaningFactor makes roughly one Put in N run garbage
	// collection. 0 disables it.
	AutomaticCleaningFactor int
}

// ContentCacheService caches rendered content under hashed ids, tagged by the
// conditions that invalidate it.
type ContentCacheService struct {
	backend ports.TagCache
	cfg     ContentCacheConfig
	logger  *logrus.Logger
	roll    func(n int) int
}

func NewContentCacheService(backend ports.TagCache, cfg ContentCacheConfig, logger *logrus.Logger) *ContentCacheService {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.StoreID == "" {
		cfg.StoreID = "1"
	}
	return &ContentCacheService{backend: backend, cfg: cfg, logger: logger, roll: rand.IntN}
}

var _ ports.ContentCacheService = (*ContentCacheService)(nil)

// Put stores content under cacheID. resetOn lists invalidation conditions as
// "key=value|key=value"; a condition without a value tags on the key alone.
func (s *ContentCacheService) Put(ctx context.Context, cacheID string, content []byte, resetOn string) error {
	tags := make([]string, 0, 4)
	for _, cond := range strings.Split(resetOn, "|") {
		key, value, _ := strings.Cut(cond, "=")
		if strings.TrimSpace(key) == "" {
			continue
		}
		tags = append(tags, ContentTag(key, value))
	}
	tags = append(tags, ContentTag(storeTagKey, s.cfg.StoreID))

	id := HashContentID(cacheID)
	if err := s.backend.Save(ctx, content, id, tags, cache.For(s.cfg.Lifetime)); err != nil {
		s.logger.WithFields(logrus.Fields{"cache_id": cacheID, "id": id}).WithError(err).Error("failed to store content")
		return fmt.Errorf("failed to store content: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"id": id, "tags": tags}).Debug("content stored")
	s.maybeCollect(ctx)
	return nil
}

func (s *ContentCacheService) Get(ctx context.Context, cacheID string) ([]byte, bool, error) {
	return s.backend.Load(ctx, HashContentID(cacheID), false)
}

// CacheID reports the modification time of the stored content.
func (s *ContentCacheService) CacheID(ctx context.Context, cacheID string) (int64, bool, error) {
	return s.backend.Test(ctx, HashContentID(cacheID))
}

// Reset drops every cached entry.
func (s *ContentCacheService) Reset(ctx context.Context) error {
	if err := s.backend.Flush(ctx); err != nil {
		return fmt.Errorf("failed to reset content cache: %w", err)
	}
	s.logger.Info("content cache reset")
	return nil
}

// ResetOn invalidates the entries tagged by conditions: all of them when useAnd
// is set, any of them otherwise.
func (s *ContentCacheService) ResetOn(ctx context.Context, conditions map[string]string, useAnd bool) error {
	if len(conditions) == 0 {
		return nil
	}
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]string, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, ContentTag(k, conditions[k]))
	}

	mode := cache.CleanMatchingAnyTag
	if useAnd {
		mode = cache.CleanMatchingTag
	}
	if err := s.backend.Clean(ctx, mode, tags); err != nil {
		s.logger.WithFields(logrus.Fields{"tags": tags, "mode": mode}).WithError(err).Error("failed to reset content")
		return fmt.Errorf("failed to reset content: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"tags": tags, "mode": mode}).Info("content reset")
	return nil
}

func (s *ContentCacheService) CollectGarbage(ctx context.Context) (cache.GCStats, error) {
	return s.backend.CollectGarbage(ctx)
}

func (s *ContentCacheService) maybeCollect(ctx context.Context) {
	n := s.cfg.AutomaticCleaningFactor
	if n <= 0 || s.roll(n) != 0 {
		return
	}
	if _, err := s.backend.CollectGarbage(ctx); err != nil {
		// a failed sweep never fails the write that triggered it
		s.logger.WithError(err).Warn("automatic cache cleaning failed")
	}
}

// ContentTag builds the tag for one reset condition.
func ContentTag(key, value string) string {
	tag := contentTagPrefix + key
	if value != "" {
		tag += "_" + value
	}
	return strings.ToUpper(tag)
}

// HashContentID maps a caller id to the stored record id.
func HashContentID(cacheID string) string {
	sum := md5.Sum([]byte(cacheID))
	return hex.EncodeToString(sum[:])
}

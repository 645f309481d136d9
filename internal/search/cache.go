package search

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"go.uber.org/zap"
)

const searchCachePrefix = "search:videos:"

// CachedSearcher serves repeated queries from the shared cache
type CachedSearcher struct {
	next  Searcher
	store cache.Store
	ttl   time.Duration
}

var _ Searcher = (*CachedSearcher)(nil)

// NewCachedSearcher wraps next with a cache of ttl
func NewCachedSearcher(next Searcher, store cache.Store, ttl time.Duration) *CachedSearcher {
	return &CachedSearcher{next: next, store: store, ttl: ttl}
}

// SearchVideos returns cached results when present; a cache failure falls
// through to the cluster.
func (s *CachedSearcher) SearchVideos(ctx context.Context, query string, limit, offset int) (*VideoResults, error) {
	key := cacheKey(query, limit, offset)

	if raw, err := s.store.Get(ctx, key); err == nil {
		var results VideoResults
		if err := json.Unmarshal([]byte(raw), &results); err == nil {
			metrics.RecordCacheHit("search")
			return &results, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Log.Warn("Search cache read failed", zap.Error(err))
	}
	metrics.RecordCacheMiss("search")

	results, err := s.next.SearchVideos(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		if err := s.store.SetEx(ctx, key, string(data), s.ttl); err != nil {
			logger.Log.Warn("Search cache write failed", zap.Error(err))
		}
	}
	return results, nil
}

// Invalidate drops every cached query, used after the index changes
func (s *CachedSearcher) Invalidate(ctx context.Context) error {
	return s.store.DelPrefix(ctx, searchCachePrefix)
}

func cacheKey(query string, limit, offset int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%d|%d", normalized, limit, offset)))
	return searchCachePrefix + hex.EncodeToString(sum[:])
}

package core

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// currentCacheVersion defines the version of the cache schema
const currentCacheVersion = contract.CacheVersion

// CachingFetcher serves fetches from a CacheStore and falls back to the wrapped fetcher.
type CachingFetcher struct {
	next  contract.HistoryFetcher
	store contract.CacheStore
	ttl   time.Duration
	now   func() time.Time
}

var _ contract.HistoryFetcher = &CachingFetcher{} // Compile-time check

// NewCachingFetcher wraps next with store. A nil store disables caching.
func NewCachingFetcher(next contract.HistoryFetcher, store contract.CacheStore, ttl time.Duration) contract.HistoryFetcher {
	if store == nil {
		return next
	}
	if ttl <= 0 {
		ttl = contract.DefaultCacheTTL
	}
	return &CachingFetcher{next: next, store: store, ttl: ttl, now: time.Now}
}

// FetchAnalyses returns cached analyses of a project branch when fresh.
func (f *CachingFetcher) FetchAnalyses(ctx context.Context, project, branch string) ([]schema.Analysis, error) {
	key := generateCacheKey("analyses", project, branch, nil, nil)
	var cached []schema.Analysis
	if f.checkCacheHit(key, &cached) {
		return cached, nil
	}
	result, err := f.next.FetchAnalyses(ctx, project, branch)
	if err != nil {
		return nil, err
	}
	f.save(key, result)
	return result, nil
}

// FetchHistory returns cached measure histories when fresh.
// Errors, including unknown metrics, are never cached.
func (f *CachingFetcher) FetchHistory(
	ctx context.Context,
	project, branch string,
	metrics []schema.MetricKey,
	window *schema.DateWindow,
) ([]schema.MeasureHistoryRecord, error) {
	key := generateCacheKey("history", project, branch, metrics, window)
	var cached []schema.MeasureHistoryRecord
	if f.checkCacheHit(key, &cached) {
		return cached, nil
	}
	result, err := f.next.FetchHistory(ctx, project, branch, metrics, window)
	if err != nil {
		return nil, err
	}
	f.save(key, result)
	return result, nil
}

// Forget drops the cached analyses of a project branch, e.g. after its events changed.
func (f *CachingFetcher) Forget(project, branch string) error {
	return f.store.Delete(generateCacheKey("analyses", project, branch, nil, nil))
}

// checkCacheHit attempts to retrieve and validate a cached result
func (f *CachingFetcher) checkCacheHit(key string, out any) bool {
	data, version, ts, err := f.store.Get(key)
	if err != nil {
		return false // Cache miss
	}

	// Validate version and staleness
	if version != currentCacheVersion {
		return false
	}
	if f.now().Sub(time.Unix(ts, 0)) > f.ttl {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// save writes a fetched result; failures only cost a future cache miss.
func (f *CachingFetcher) save(key string, result any) {
	if data, err := json.Marshal(result); err == nil {
		_ = f.store.Set(key, data, currentCacheVersion, f.now().Unix())
	}
}

// generateCacheKey creates a unique key based on fetch parameters
func generateCacheKey(kind, project, branch string, metrics []schema.MetricKey, window *schema.DateWindow) string {
	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = string(m)
	}
	var start, end int64
	if window != nil {
		if window.Start != nil {
			start = window.Start.Unix()
		}
		if window.End != nil {
			end = window.End.Unix()
		}
	}
	key := fmt.Sprintf("%s:%s:%s:%s:%d:%d",
		kind,
		project,
		branch,
		strings.Join(names, ","),
		start,
		end,
	)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/internal/fixture"
	"github.com/huangsam/activity/internal/influx"
	"github.com/huangsam/activity/schema"
)

// Source is an opened history source as selected by the configuration.
type Source struct {
	Kind schema.SourceKind

	// Fetcher serves every read. Remote sources are wrapped with the fetch cache.
	Fetcher contract.HistoryFetcher

	// Fixture is set for the fixture source so that callers can watch it.
	Fixture *fixture.Source

	// Events is set when the source can add and delete events.
	Events contract.HistoryStore

	caching *CachingFetcher
	closer  func() error
}

// OpenSource opens the history source named by cfg.Source. The fixture source
// is read into memory and is never cached.
func OpenSource(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*Source, error) {
	src := &Source{Kind: cfg.Source}

	var next contract.HistoryFetcher
	switch cfg.Source {
	case schema.FixtureSource:
		fx, err := fixture.Load(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		src.Fixture = fx
		src.Fetcher = fx
		return src, nil

	case schema.SQLSource:
		store := mgr.GetHistoryStore()
		if store == nil {
			return nil, errors.New("history store is not initialized")
		}
		src.Events = store
		next = store

	case schema.InfluxSource:
		store, err := influx.New(ctx, influx.Options{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		if err != nil {
			return nil, err
		}
		src.closer = store.Close
		next = store

	default:
		return nil, fmt.Errorf("unsupported source: %s", cfg.Source)
	}

	src.Fetcher = NewCachingFetcher(next, mgr.GetFetchStore(), cfg.CacheTTL)
	if cf, ok := src.Fetcher.(*CachingFetcher); ok {
		src.caching = cf
	}
	return src, nil
}

// Forget drops cached analyses of key, e.g. after its events changed.
func (s *Source) Forget(key schema.ProjectKey) {
	if s.caching == nil {
		return
	}
	if err := s.caching.Forget(key.Project, key.Branch); err != nil {
		contract.LogWarn("Failed to forget cached analyses", err)
	}
}

// Close releases the connections owned by the source. Stores owned by the
// global manager are closed by the manager.
func (s *Source) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

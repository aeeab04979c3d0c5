package core

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// Loader fetches analyses and measure histories for composers.
// It runs outside the composer and hands results back with a load token.
type Loader struct {
	fetcher   contract.HistoryFetcher
	maxCustom int
}

// NewLoader creates a loader over fetcher.
func NewLoader(fetcher contract.HistoryFetcher, maxCustom int) *Loader {
	if maxCustom <= 0 {
		maxCustom = DefaultMaxCustomMetrics
	}
	return &Loader{fetcher: fetcher, maxCustom: maxCustom}
}

// Fetch retrieves everything spec needs for key. Analyses and histories are
// fetched concurrently. Custom metrics are fetched one at a time so that an
// unknown metric only drops itself.
func (l *Loader) Fetch(ctx context.Context, key schema.ProjectKey, spec schema.GraphSpec) (LoadResult, error) {
	if key.Project == "" {
		return LoadResult{}, contract.ErrNoProject
	}
	var res LoadResult
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		analyses, err := l.fetcher.FetchAnalyses(gCtx, key.Project, key.Branch)
		if err != nil {
			return fmt.Errorf("fetch analyses of %s: %w", key, err)
		}
		res.Analyses = analyses
		return nil
	})
	g.Go(func() error {
		if spec.IsZero() {
			return nil
		}
		records, dropped, err := l.FetchMetrics(gCtx, key, spec, RequiredMetrics(spec, l.maxCustom))
		if err != nil {
			return err
		}
		res.Histories = records
		res.Dropped = dropped
		return nil
	})
	if err := g.Wait(); err != nil {
		return LoadResult{}, err
	}
	return res, nil
}

// FetchMetrics retrieves the histories of metrics. For custom specs each metric
// is requested alone and metrics rejected with contract.ErrUnknownMetric are
// returned as dropped instead of failing the whole fetch.
func (l *Loader) FetchMetrics(
	ctx context.Context,
	key schema.ProjectKey,
	spec schema.GraphSpec,
	metrics []schema.MetricKey,
) ([]schema.MeasureHistoryRecord, []schema.MetricKey, error) {
	if len(metrics) == 0 {
		return nil, nil, nil
	}
	if !spec.IsCustom() {
		records, err := l.fetcher.FetchHistory(ctx, key.Project, key.Branch, metrics, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch history of %s: %w", key, err)
		}
		return completeRecords(records, metrics), nil, nil
	}

	var records []schema.MeasureHistoryRecord
	var dropped []schema.MetricKey
	for _, m := range metrics {
		got, err := l.fetcher.FetchHistory(ctx, key.Project, key.Branch, []schema.MetricKey{m}, nil)
		if errors.Is(err, contract.ErrUnknownMetric) {
			dropped = append(dropped, m)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("fetch history of %s for %s: %w", m, key, err)
		}
		records = append(records, completeRecords(got, []schema.MetricKey{m})...)
	}
	return records, dropped, nil
}

// completeRecords adds an empty record for every requested metric the fetcher
// returned nothing for, so the store remembers it was fetched.
func completeRecords(records []schema.MeasureHistoryRecord, metrics []schema.MetricKey) []schema.MeasureHistoryRecord {
	seen := make(map[schema.MetricKey]struct{}, len(records))
	for _, r := range records {
		seen[r.Metric] = struct{}{}
	}
	for _, m := range metrics {
		if _, ok := seen[m]; !ok {
			records = append(records, schema.MeasureHistoryRecord{Metric: m})
		}
	}
	return records
}

// Load runs a full load of key into c and waits for it. Metrics of a spec
// chosen while the load was outstanding are fetched afterwards.
func (l *Loader) Load(ctx context.Context, c *Composer, key schema.ProjectKey) error {
	token := c.BeginLoad(key)
	res, err := l.Fetch(ctx, key, c.Spec())
	if !c.CompleteLoad(token, res, err) || err != nil {
		return err
	}
	return l.LoadMissing(ctx, c)
}

// LoadMissing fetches the metrics c needs but never fetched, e.g. after a custom
// metric was added, and merges them.
func (l *Loader) LoadMissing(ctx context.Context, c *Composer) error {
	missing := c.MissingMetrics()
	if len(missing) == 0 {
		return nil
	}
	token := c.Token()
	records, dropped, err := l.FetchMetrics(ctx, c.Project(), c.Spec(), missing)
	c.CompleteMerge(token, LoadResult{Histories: records, Dropped: dropped}, err)
	return err
}

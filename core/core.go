// Package core has core logic for building, windowing and inspecting activity graphs.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/internal/fixture"
	"github.com/huangsam/activity/internal/influx"
	"github.com/huangsam/activity/internal/outwriter"
	"github.com/huangsam/activity/schema"
)

// ExecutorFunc defines the function signature for executing the CLI entry points.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// ExecuteGraph loads the configured graph, applies the window and the tooltip
// selection, and prints the result. It serves as the main entry point for the 'graph' command.
func ExecuteGraph(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	src, err := OpenSource(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	result, err := BuildGraph(ctx, cfg, src.Fetcher)
	if err != nil {
		return err
	}
	duration := time.Since(start)
	return outwriter.NewOutWriter().WriteGraph(result, cfg, duration)
}

// NewComposerFor creates a composer configured from cfg with its graph spec selected.
func NewComposerFor(cfg *contract.Config) *Composer {
	c := NewComposer(ComposerOptions{
		Format:           contract.NewValueFormatter(cfg.Precision),
		MaxCustomMetrics: cfg.MaxCustomMetrics,
		PixelRange:       cfg.PixelRange(),
	})
	c.SetGraphSpec(cfg.GraphSpec())
	return c
}

// BuildGraph runs one load of the configured project and applies the configured
// window, pointer and selected date.
func BuildGraph(ctx context.Context, cfg *contract.Config, fetcher contract.HistoryFetcher) (schema.GraphResult, error) {
	c := NewComposerFor(cfg)
	if err := NewLoader(fetcher, cfg.MaxCustomMetrics).Load(ctx, c, cfg.ProjectKey()); err != nil {
		return schema.GraphResult{}, fmt.Errorf("failed to load history of %s: %w", cfg.ProjectKey(), err)
	}

	if w := cfg.DateWindow(); !w.IsZero() {
		c.SetDateWindow(w)
	}
	switch {
	case cfg.Pointer != nil:
		c.PointerMove(*cfg.Pointer)
	case !cfg.SelectDate.IsZero():
		c.SelectDate(cfg.SelectDate)
	}
	return GraphResultOf(c), nil
}

// GraphResultOf returns the read model of c together with its tooltip details.
func GraphResultOf(c *Composer) schema.GraphResult {
	return schema.GraphResult{
		ReadModel:      c.Snapshot(),
		TooltipDetails: c.TooltipDetails(),
	}
}

// ExecuteMetrics prints the predefined graphs and the known metrics.
// No history is fetched.
func ExecuteMetrics(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	var store contract.HistoryStore
	if mgr != nil {
		store = mgr.GetHistoryStore()
	}
	renderModel, err := MetricsCatalog(ctx, store, cfg.MaxCustomMetrics)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteMetrics(renderModel, cfg)
}

// MetricsCatalog lists the predefined graphs and the built-in metrics, followed by
// any extra metrics registered in store.
func MetricsCatalog(ctx context.Context, store contract.HistoryStore, maxCustom int) (*schema.MetricsRenderModel, error) {
	if maxCustom <= 0 {
		maxCustom = DefaultMaxCustomMetrics
	}
	renderModel := &schema.MetricsRenderModel{
		Title:            "Activity Graphs",
		Metrics:          append([]schema.MetricDefinition{}, schema.DefaultMetrics...),
		MaxCustomMetrics: maxCustom,
	}
	for _, def := range PredefinedGraphs() {
		renderModel.Graphs = append(renderModel.Graphs, schema.GraphCatalogEntry{
			Type:      def.Type,
			SubGraphs: def.SubGraphs,
			Breakdown: def.Breakdown,
		})
	}

	if store == nil {
		return renderModel, nil
	}
	registered, err := store.ListMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered metrics: %w", err)
	}
	for _, d := range registered {
		if _, builtin := schema.LookupMetric(d.Key); !builtin {
			renderModel.Metrics = append(renderModel.Metrics, d)
		}
	}
	return renderModel, nil
}

// ExecuteIngest writes the fixture file into the history store, or into InfluxDB
// when the influx source is selected.
func ExecuteIngest(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	fx, err := fixture.Load(cfg.FixturePath)
	if err != nil {
		return err
	}

	var target contract.HistoryRecorder
	switch cfg.Source {
	case schema.InfluxSource:
		store, err := influx.New(ctx, influx.Options{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		target = store
	default:
		if cfg.HistoryBackend == schema.NoneBackend {
			return errors.New("ingest requires a history backend other than none")
		}
		store := mgr.GetHistoryStore()
		if store == nil {
			return errors.New("history store is not initialized")
		}
		target = store
	}

	summaries, err := fixture.Ingest(ctx, target, fx)
	if err != nil {
		return err
	}
	duration := time.Since(start)
	return outwriter.NewOutWriter().WriteIngest(summaries, cfg, duration)
}

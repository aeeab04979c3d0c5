package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/internal/fixture"
	"github.com/huangsam/activity/internal/iocache"
	"github.com/huangsam/activity/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const fixturePath = "../internal/fixture/testdata/history.yaml"

func graphConfig(graph schema.GraphType) *contract.Config {
	return &contract.Config{
		Project:          "acme",
		Branch:           "main",
		Graph:            graph,
		MaxCustomMetrics: contract.DefaultMaxCustomMetrics,
		AxisWidth:        1,
		Precision:        1,
		Source:           schema.FixtureSource,
		FixturePath:      fixturePath,
		Output:           schema.TextOut,
		HistoryBackend:   schema.SQLiteBackend,
		CacheBackend:     schema.NoneBackend,
	}
}

func loadFixture(t *testing.T) *fixture.Source {
	t.Helper()
	src, err := fixture.Load(fixturePath)
	require.NoError(t, err)
	return src
}

func TestBuildGraph_Coverage(t *testing.T) {
	result, err := BuildGraph(context.Background(), graphConfig(schema.GraphCoverage), loadFixture(t))
	require.NoError(t, err)

	assert.Equal(t, schema.LoadedState, result.State)
	assert.True(t, result.HasData)
	assert.Equal(t, 3, result.Analyses)
	assert.Len(t, result.Events, 2)
	require.Len(t, result.SeriesGroups, 2)
	assert.Equal(t, []*schema.MeasureValue{num(80), nil, num(82.5)}, ys(result.SeriesGroups[0][0]))
	assert.Nil(t, result.TooltipDetails)
}

func TestBuildGraph_SelectDate(t *testing.T) {
	cfg := graphConfig(schema.GraphCoverage)
	cfg.SelectDate = day(3)

	result, err := BuildGraph(context.Background(), cfg, loadFixture(t))
	require.NoError(t, err)

	require.NotNil(t, result.Tooltip)
	require.NotNil(t, result.TooltipDetails)
	assert.Equal(t, day(3), result.TooltipDetails.Date)
	require.NotEmpty(t, result.TooltipDetails.Values)
	assert.Equal(t, "82.5%", result.TooltipDetails.Values[0].Formatted)
}

func TestBuildGraph_PointerAndWindow(t *testing.T) {
	cfg := graphConfig(schema.GraphCoverage)
	cfg.StartTime = day(2)
	x := 0.0
	cfg.Pointer = &x

	result, err := BuildGraph(context.Background(), cfg, loadFixture(t))
	require.NoError(t, err)

	assert.Equal(t, schema.WindowedState, result.State)
	assert.Equal(t, 2, result.Analyses)
	require.NotNil(t, result.Tooltip)
	assert.Equal(t, day(2), result.Tooltip.Date)
}

func TestBuildGraph_LoadFailure(t *testing.T) {
	fetcher := &contract.MockHistoryFetcher{}
	fetcher.On("FetchAnalyses", mock.Anything, "acme", "main").Return(nil, errors.New("connection refused"))
	fetcher.On("FetchHistory", mock.Anything, "acme", "main", mock.Anything, mock.Anything).Return(nil, nil)

	_, err := BuildGraph(context.Background(), graphConfig(schema.GraphIssues), fetcher)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load history of acme@main")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBuildGraph_CustomMetrics(t *testing.T) {
	cfg := graphConfig(schema.GraphCustom)
	cfg.CustomMetrics = []schema.MetricKey{schema.MetricCoverage, "team_velocity", "bogus"}

	result, err := BuildGraph(context.Background(), cfg, loadFixture(t))
	require.NoError(t, err)

	assert.Equal(t, []schema.MetricKey{"bogus"}, result.Dropped)
	assert.Equal(t, schema.Custom(schema.MetricCoverage, "team_velocity"), result.Spec)
}

func TestMetricsCatalog(t *testing.T) {
	catalog, err := MetricsCatalog(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Len(t, catalog.Graphs, len(schema.PredefinedGraphTypes))
	assert.Len(t, catalog.Metrics, len(schema.DefaultMetrics))
	assert.Equal(t, DefaultMaxCustomMetrics, catalog.MaxCustomMetrics)

	store := &iocache.MockHistoryStore{}
	store.On("ListMetrics", mock.Anything).Return([]schema.MetricDefinition{
		{Key: schema.MetricCoverage, Name: "Coverage", Type: schema.PercentMetric},
		{Key: "team_velocity", Name: "Team Velocity", Type: schema.FloatMetric},
	}, nil)

	catalog, err = MetricsCatalog(context.Background(), store, 5)
	require.NoError(t, err)
	require.Len(t, catalog.Metrics, len(schema.DefaultMetrics)+1)
	assert.Equal(t, schema.MetricKey("team_velocity"), catalog.Metrics[len(catalog.Metrics)-1].Key)
	assert.Equal(t, 5, catalog.MaxCustomMetrics)
}

func TestMetricsCatalog_StoreError(t *testing.T) {
	store := &iocache.MockHistoryStore{}
	store.On("ListMetrics", mock.Anything).Return(nil, errors.New("db down"))

	_, err := MetricsCatalog(context.Background(), store, 0)
	assert.ErrorContains(t, err, "db down")
}

func TestOpenSource_Fixture(t *testing.T) {
	mgr := &iocache.MockCacheManager{}
	src, err := OpenSource(context.Background(), graphConfig(schema.GraphIssues), mgr)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	assert.NotNil(t, src.Fixture)
	assert.Nil(t, src.Events)
	assert.Same(t, src.Fixture, src.Fetcher)
	// the fixture is never cached
	mgr.AssertNotCalled(t, "GetFetchStore")
}

func TestOpenSource_SQLWithCache(t *testing.T) {
	history := &iocache.MockHistoryStore{}
	cache := &iocache.MockCacheStore{}
	cache.On("Delete", mock.Anything).Return(nil)

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetHistoryStore").Return(history)
	mgr.On("GetFetchStore").Return(cache)

	cfg := graphConfig(schema.GraphIssues)
	cfg.Source = schema.SQLSource

	src, err := OpenSource(context.Background(), cfg, mgr)
	require.NoError(t, err)
	assert.Same(t, history, src.Events)
	assert.IsType(t, &CachingFetcher{}, src.Fetcher)

	src.Forget(projectKey)
	cache.AssertCalled(t, "Delete", generateCacheKey("analyses", "acme", "main", nil, nil))
}

func TestOpenSource_SQLWithoutStore(t *testing.T) {
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetHistoryStore").Return(nil)

	cfg := graphConfig(schema.GraphIssues)
	cfg.Source = schema.SQLSource

	_, err := OpenSource(context.Background(), cfg, mgr)
	assert.ErrorContains(t, err, "history store is not initialized")
}

func TestOpenSource_MissingFixture(t *testing.T) {
	cfg := graphConfig(schema.GraphIssues)
	cfg.FixturePath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := OpenSource(context.Background(), cfg, &iocache.MockCacheManager{})
	assert.Error(t, err)
}

func TestExecuteIngest_IntoSQLite(t *testing.T) {
	store, err := iocache.NewHistoryStore(schema.SQLiteBackend, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetHistoryStore").Return(store)

	cfg := graphConfig(schema.GraphIssues)
	cfg.OutputFile = filepath.Join(t.TempDir(), "ingest.txt")
	require.NoError(t, ExecuteIngest(context.Background(), cfg, mgr))

	// the ingested store now serves the same graph as the fixture
	cfg.Graph = schema.GraphCoverage
	result, err := BuildGraph(context.Background(), cfg, store)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Analyses)
	assert.Equal(t, []*schema.MeasureValue{num(80), nil, num(82.5)}, ys(result.SeriesGroups[0][0]))
}

func TestExecuteIngest_NoneBackend(t *testing.T) {
	cfg := graphConfig(schema.GraphIssues)
	cfg.HistoryBackend = schema.NoneBackend

	err := ExecuteIngest(context.Background(), cfg, &iocache.MockCacheManager{})
	assert.ErrorContains(t, err, "requires a history backend")
}

func TestExecuteMetrics_ToFile(t *testing.T) {
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetHistoryStore").Return(nil)

	cfg := graphConfig(schema.GraphIssues)
	cfg.Output = schema.JSONOut
	cfg.OutputFile = filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, ExecuteMetrics(context.Background(), cfg, mgr))
	assert.FileExists(t, cfg.OutputFile)
}

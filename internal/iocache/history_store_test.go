package iocache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = schema.ProjectKey{Project: "acme", Branch: "main"}

func testDay(n int) time.Time {
	return time.Date(2024, time.January, n, 12, 0, 0, 0, time.UTC)
}

func newTestHistoryStore(t *testing.T) *HistoryStoreImpl {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewHistoryStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.(*HistoryStoreImpl)
}

// seedHistory records three analyses with coverage and bugs values.
func seedHistory(t *testing.T, store *HistoryStoreImpl) {
	t.Helper()
	ctx := context.Background()
	for i, n := range []int{1, 2, 3} {
		a := schema.Analysis{Key: "A" + string(rune('1'+i)), Date: testDay(n)}
		if n == 2 {
			a.Events = []schema.Event{{Category: schema.VersionEvent, Name: "1.0"}}
		}
		require.NoError(t, store.RecordAnalysis(ctx, testKey, a))
	}
	require.NoError(t, store.RecordMeasures(ctx, testKey, "A1", map[schema.MetricKey]schema.MeasureValue{
		schema.MetricCoverage: schema.NumberValue(80),
		schema.MetricBugs:     schema.NumberValue(4),
	}))
	require.NoError(t, store.RecordMeasures(ctx, testKey, "A3", map[schema.MetricKey]schema.MeasureValue{
		schema.MetricCoverage:    schema.NumberValue(82.5),
		schema.MetricAlertStatus: schema.TextValue("OK"),
	}))
}

func TestHistoryStore_RegistersDefaultMetrics(t *testing.T) {
	store := newTestHistoryStore(t)
	defs, err := store.ListMetrics(context.Background())
	require.NoError(t, err)
	assert.Len(t, defs, len(schema.DefaultMetrics))

	require.NoError(t, store.RegisterMetrics(context.Background(), []schema.MetricDefinition{{Key: "team_velocity"}}))
	defs, err = store.ListMetrics(context.Background())
	require.NoError(t, err)
	assert.Len(t, defs, len(schema.DefaultMetrics)+1)
	for _, d := range defs {
		if d.Key == "team_velocity" {
			assert.Equal(t, "team_velocity", d.Name)
			assert.Equal(t, schema.FloatMetric, d.Type)
		}
	}
}

func TestHistoryStore_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewHistoryStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	require.NoError(t, store.RecordAnalysis(context.Background(), testKey, schema.Analysis{Key: "A1", Date: testDay(1)}))
	require.NoError(t, store.Close())

	store, err = NewHistoryStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	analyses, err := store.FetchAnalyses(context.Background(), "acme", "main")
	require.NoError(t, err)
	assert.Len(t, analyses, 1)
}

func TestHistoryStore_FetchAnalyses(t *testing.T) {
	store := newTestHistoryStore(t)
	seedHistory(t, store)

	analyses, err := store.FetchAnalyses(context.Background(), "acme", "main")
	require.NoError(t, err)
	require.Len(t, analyses, 3)
	assert.Equal(t, []string{"A1", "A2", "A3"}, []string{analyses[0].Key, analyses[1].Key, analyses[2].Key})
	assert.True(t, analyses[0].Date.Equal(testDay(1)))
	require.Len(t, analyses[1].Events, 1)
	assert.Equal(t, "1.0", analyses[1].Events[0].Name)
	assert.NotEmpty(t, analyses[1].Events[0].Key)

	// Other branches are isolated
	analyses, err = store.FetchAnalyses(context.Background(), "acme", "feature")
	require.NoError(t, err)
	assert.Empty(t, analyses)
}

func TestHistoryStore_RecordAnalysisReplacesEvents(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()
	a := schema.Analysis{Key: "A1", Date: testDay(1), Events: []schema.Event{{Name: "first"}, {Name: "second"}}}
	require.NoError(t, store.RecordAnalysis(ctx, testKey, a))

	a.Date = testDay(5)
	a.Events = []schema.Event{{Category: schema.QualityGateEvent, Name: "Red"}}
	require.NoError(t, store.RecordAnalysis(ctx, testKey, a))

	analyses, err := store.FetchAnalyses(ctx, "acme", "main")
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.True(t, analyses[0].Date.Equal(testDay(5)))
	require.Len(t, analyses[0].Events, 1)
	assert.Equal(t, schema.QualityGateEvent, analyses[0].Events[0].Category)
}

func TestHistoryStore_FetchHistory(t *testing.T) {
	store := newTestHistoryStore(t)
	seedHistory(t, store)
	ctx := context.Background()

	metrics := []schema.MetricKey{schema.MetricCoverage, schema.MetricTests, schema.MetricAlertStatus}
	records, err := store.FetchHistory(ctx, "acme", "main", metrics, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, schema.MetricCoverage, records[0].Metric)
	require.Len(t, records[0].Points, 2)
	assert.True(t, records[0].Points[0].Date.Equal(testDay(1)))
	assert.True(t, records[0].Points[1].Value.Equal(schema.NumberValue(82.5)))

	// Registered metric with no values
	assert.Equal(t, schema.MetricTests, records[1].Metric)
	assert.Empty(t, records[1].Points)

	// Strings are carried unconverted
	require.Len(t, records[2].Points, 1)
	assert.True(t, records[2].Points[0].Value.IsText())
	assert.Equal(t, "OK", records[2].Points[0].Value.Text())
}

func TestHistoryStore_FetchHistoryWindow(t *testing.T) {
	store := newTestHistoryStore(t)
	seedHistory(t, store)

	w := schema.NewDateWindow(testDay(2), time.Time{})
	records, err := store.FetchHistory(context.Background(), "acme", "main", []schema.MetricKey{schema.MetricCoverage}, &w)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Points, 1)
	assert.True(t, records[0].Points[0].Date.Equal(testDay(3)))
}

func TestHistoryStore_UnknownMetric(t *testing.T) {
	store := newTestHistoryStore(t)
	seedHistory(t, store)
	ctx := context.Background()

	_, err := store.FetchHistory(ctx, "acme", "main", []schema.MetricKey{schema.MetricCoverage, "bogus"}, nil)
	assert.ErrorIs(t, err, contract.ErrUnknownMetric)

	err = store.RecordMeasures(ctx, testKey, "A1", map[schema.MetricKey]schema.MeasureValue{"bogus": schema.NumberValue(1)})
	assert.ErrorIs(t, err, contract.ErrUnknownMetric)
}

func TestHistoryStore_RecordMeasuresRequiresAnalysis(t *testing.T) {
	store := newTestHistoryStore(t)
	err := store.RecordMeasures(context.Background(), testKey, "missing", map[schema.MetricKey]schema.MeasureValue{
		schema.MetricBugs: schema.NumberValue(1),
	})
	assert.ErrorIs(t, err, contract.ErrAnalysisNotFound)
}

func TestHistoryStore_Events(t *testing.T) {
	store := newTestHistoryStore(t)
	seedHistory(t, store)
	ctx := context.Background()

	t.Run("add defaults category", func(t *testing.T) {
		e, err := store.AddEvent(ctx, testKey, "A2", schema.Event{Name: "hotfix"})
		require.NoError(t, err)
		assert.NotEmpty(t, e.Key)
		assert.Equal(t, schema.OtherEvent, e.Category)

		analyses, err := store.FetchAnalyses(ctx, "acme", "main")
		require.NoError(t, err)
		require.Len(t, analyses[1].Events, 2)
		assert.Equal(t, "1.0", analyses[1].Events[0].Name)
		assert.Equal(t, "hotfix", analyses[1].Events[1].Name)
	})

	t.Run("add validates", func(t *testing.T) {
		_, err := store.AddEvent(ctx, testKey, "A2", schema.Event{Name: "x", Category: "BOGUS"})
		assert.ErrorContains(t, err, "invalid event category")
		_, err = store.AddEvent(ctx, testKey, "A2", schema.Event{Name: "  "})
		assert.Error(t, err)
		_, err = store.AddEvent(ctx, testKey, "nope", schema.Event{Name: "x"})
		assert.ErrorIs(t, err, contract.ErrAnalysisNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		e, err := store.AddEvent(ctx, testKey, "A3", schema.Event{Name: "temp"})
		require.NoError(t, err)
		require.NoError(t, store.DeleteEvent(ctx, testKey, e.Key))
		assert.ErrorIs(t, store.DeleteEvent(ctx, testKey, e.Key), contract.ErrEventNotFound)
	})
}

func TestHistoryStore_Export(t *testing.T) {
	store := newTestHistoryStore(t)
	seedHistory(t, store)
	ctx := context.Background()

	measures, err := store.ExportMeasures(ctx)
	require.NoError(t, err)
	assert.Len(t, measures, 4)
	assert.Equal(t, "A1", measures[0].AnalysisKey)

	events, err := store.ExportEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "A2", events[0].AnalysisKey)
	assert.True(t, events[0].Date.Equal(testDay(2)))
}

func TestHistoryStore_GetStatus(t *testing.T) {
	store := newTestHistoryStore(t)
	seedHistory(t, store)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalProjects)
	assert.Equal(t, 3, status.TotalAnalyses)
	assert.Equal(t, 4, status.TotalMeasures)
	assert.Equal(t, 1, status.TotalEvents)
	assert.True(t, status.OldestAnalysis.Equal(testDay(1)))
	assert.True(t, status.LatestAnalysis.Equal(testDay(3)))
	assert.Equal(t, uint(4), status.SchemaVersion)
	assert.False(t, status.SchemaDirty)
	assert.Equal(t, int64(len(schema.DefaultMetrics)), status.TableSizes[metricsTable])
}

func TestHistoryStore_NoneBackend(t *testing.T) {
	store, err := NewHistoryStore(schema.NoneBackend, "")
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, store.RecordAnalysis(ctx, testKey, schema.Analysis{Key: "A1"}))
	analyses, err := store.FetchAnalyses(ctx, "acme", "main")
	assert.NoError(t, err)
	assert.Empty(t, analyses)
	_, err = store.AddEvent(ctx, testKey, "A1", schema.Event{Name: "x"})
	assert.Error(t, err)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestMigrateHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, MigrateHistory(schema.SQLiteBackend, path, 2))

	db, err := openDB(schema.SQLiteBackend, path, "")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	from, to, err := migrateDB(db, schema.SQLiteBackend, -1)
	require.NoError(t, err)
	assert.Equal(t, uint(2), from)
	assert.Equal(t, uint(4), to)

	_, _, err = migrateDB(db, schema.SQLiteBackend, -1)
	assert.ErrorIs(t, err, migrate.ErrNoChange)

	from, to, err = migrateDB(db, schema.SQLiteBackend, 0)
	require.NoError(t, err)
	assert.Equal(t, uint(4), from)
	assert.Equal(t, uint(0), to)

	assert.Error(t, MigrateHistory(schema.NoneBackend, "", -1))
}

func TestExecuteHistoryExport(t *testing.T) {
	resetManager(t)
	path := filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, InitStores("", "", schema.SQLiteBackend, path))
	defer CloseCaching()

	assert.ErrorContains(t, ExecuteHistoryExport(context.Background(), ""), "--output-file")
	assert.ErrorContains(t, ExecuteHistoryExport(context.Background(), filepath.Join(t.TempDir(), "out")), "no history data")

	seedHistory(t, Manager.GetHistoryStore().(*HistoryStoreImpl))
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, ExecuteHistoryExport(context.Background(), out))
	assert.FileExists(t, out+".measures.parquet")
	assert.FileExists(t, out+".events.parquet")
}

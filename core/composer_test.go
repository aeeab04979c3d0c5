package core

import (
	"errors"
	"testing"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var projectKey = schema.ProjectKey{Project: "acme", Branch: "main"}

func coverageResult() LoadResult {
	return LoadResult{
		Analyses: analysesOn(1, 2, 3),
		Histories: []schema.MeasureHistoryRecord{
			record(schema.MetricCoverage, map[int]float64{1: 80, 3: 85}),
			record(schema.MetricTests, map[int]float64{1: 10, 2: 12, 3: 15}),
			record(schema.MetricLinesToCover, map[int]float64{3: 200}),
			record(schema.MetricUncoveredLines, map[int]float64{3: 30}),
		},
	}
}

// loadedComposer returns a composer that displays the coverage graph.
func loadedComposer(t *testing.T) *Composer {
	t.Helper()
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Predefined(schema.GraphCoverage))
	token := c.BeginLoad(projectKey)
	require.True(t, c.CompleteLoad(token, coverageResult(), nil))
	require.Equal(t, schema.LoadedState, c.State())
	return c
}

func TestComposer_Idle(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	assert.Equal(t, schema.IdleState, c.State())

	assert.False(t, c.PointerMove(0.5))
	assert.False(t, c.SelectDate(day(1)))
	assert.False(t, c.SetDateWindow(window(1, 2)))
	assert.False(t, c.Zoom(0, 1))

	rm := c.Snapshot()
	assert.Equal(t, schema.IdleState, rm.State)
	assert.False(t, rm.HasData)
	assert.Nil(t, rm.Tooltip)
	assert.Empty(t, rm.SeriesGroups)
}

func TestComposer_SpecBeforeLoadStaysIdle(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Predefined(schema.GraphIssues))
	assert.Equal(t, schema.IdleState, c.State())
	assert.Equal(t, schema.GraphIssues, c.Spec().Graph())
}

func TestComposer_Load(t *testing.T) {
	c := loadedComposer(t)
	rm := c.Snapshot()
	assert.True(t, rm.HasData)
	assert.Equal(t, projectKey, rm.Project)
	assert.Equal(t, 3, rm.Analyses)
	require.Len(t, rm.SeriesGroups, 2)
	assert.Equal(t, []*schema.MeasureValue{num(80), nil, num(85)}, ys(rm.SeriesGroups[0][0]))
}

func TestComposer_IgnoresInputWhileLoading(t *testing.T) {
	c := loadedComposer(t)
	token := c.BeginLoad(schema.ProjectKey{Project: "acme", Branch: "dev"})

	assert.Equal(t, schema.IdleState, c.State())
	assert.True(t, c.Loading())
	assert.False(t, c.PointerMove(0.5))
	assert.False(t, c.SetDateWindow(window(1, 2)))
	assert.Empty(t, c.Snapshot().SeriesGroups)

	require.True(t, c.CompleteLoad(token, coverageResult(), nil))
	assert.Equal(t, schema.LoadedState, c.State())
}

func TestComposer_StaleLoadDiscarded(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Predefined(schema.GraphCoverage))
	stale := c.BeginLoad(schema.ProjectKey{Project: "acme", Branch: "old"})
	current := c.BeginLoad(projectKey)

	assert.False(t, c.CompleteLoad(stale, coverageResult(), nil))
	assert.Equal(t, schema.IdleState, c.State())

	require.True(t, c.CompleteLoad(current, LoadResult{Analyses: analysesOn(5)}, nil))
	assert.Equal(t, []int{1}, axisLengths(c.Snapshot()))
	assert.False(t, c.CompleteLoad(stale, coverageResult(), nil))
	assert.Equal(t, []int{1, 1}, axisLengthsAll(c.Snapshot()))
}

func TestComposer_FetchFailure(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Predefined(schema.GraphCoverage))
	token := c.BeginLoad(projectKey)

	require.True(t, c.CompleteLoad(token, LoadResult{}, errors.New("backend down")))
	rm := c.Snapshot()
	assert.Equal(t, schema.IdleState, rm.State)
	assert.False(t, rm.HasData)
	assert.Contains(t, rm.Error, "backend down")
	assert.False(t, c.Loading())
}

// TestComposer_EmptyHistory reports a project without analyses as loaded without data.
func TestComposer_EmptyHistory(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Predefined(schema.GraphIssues))
	token := c.BeginLoad(projectKey)
	require.True(t, c.CompleteLoad(token, LoadResult{}, nil))

	rm := c.Snapshot()
	assert.Equal(t, [][]schema.Series{{}}, rm.SeriesGroups)
	assert.False(t, rm.HasData)
	assert.Empty(t, rm.Error)
}

func TestComposer_Window(t *testing.T) {
	c := loadedComposer(t)
	require.True(t, c.PointerMove(0))

	require.True(t, c.SetDateWindow(window(2, 3)))
	assert.Equal(t, schema.WindowedState, c.State())
	assert.Nil(t, c.Tooltip())

	rm := c.Snapshot()
	assert.Equal(t, []*schema.MeasureValue{nil, num(85)}, ys(rm.SeriesGroups[0][0]))
	assert.Equal(t, 2, rm.Analyses)

	// window outside the data
	require.True(t, c.SetDateWindow(window(20, 25)))
	assert.False(t, c.Snapshot().HasData)
	assert.Equal(t, schema.WindowedState, c.State())

	// clearing the window returns to loaded
	require.True(t, c.SetDateWindow(schema.DateWindow{}))
	assert.Equal(t, schema.LoadedState, c.State())
	assert.Equal(t, []int{3, 3}, axisLengthsAll(c.Snapshot()))
}

func TestComposer_SpecChangeKeepsWindow(t *testing.T) {
	c := loadedComposer(t)
	require.True(t, c.SetDateWindow(window(2, 3)))
	require.True(t, c.PointerMove(1))

	c.SetGraphSpec(schema.Predefined(schema.GraphCoverage))
	assert.Equal(t, schema.WindowedState, c.State())
	assert.Nil(t, c.Tooltip())
	assert.Equal(t, []int{2, 2}, axisLengthsAll(c.Snapshot()))
}

func TestComposer_RebuildIdempotent(t *testing.T) {
	c := loadedComposer(t)
	first := c.Snapshot().SeriesGroups
	c.SetGraphSpec(schema.Predefined(schema.GraphCoverage))
	assert.Equal(t, first, c.Snapshot().SeriesGroups)
}

func TestComposer_Zoom(t *testing.T) {
	c := loadedComposer(t)
	c.SetAxisPixelRange([2]float64{0, 200})

	require.True(t, c.Zoom(100, 200))
	w := c.Window()
	require.NotNil(t, w.Start)
	assert.Equal(t, day(2), *w.Start)
	assert.Equal(t, day(3), *w.End)
	assert.Equal(t, schema.WindowedState, c.State())
}

func TestComposer_Tooltip(t *testing.T) {
	c := loadedComposer(t)

	require.True(t, c.PointerMove(0.7))
	tip := c.Tooltip()
	require.NotNil(t, tip)
	assert.Equal(t, 1, tip.Index)
	assert.Equal(t, 0, tip.Graph)

	require.True(t, c.PointerMoveOn(1, 1))
	assert.Equal(t, 1, c.Tooltip().Graph)
	assert.Equal(t, 2, c.Tooltip().Index)
	assert.False(t, c.PointerMoveOn(5, 0.5))

	require.True(t, c.SelectDate(day(3)))
	payload := c.TooltipDetails()
	require.NotNil(t, payload)
	assert.Equal(t, "85.0%", payload.Values[0].Formatted)
	require.Len(t, payload.Breakdown, 2)
	assert.Equal(t, "200", payload.Breakdown[0].Formatted)
	assert.Equal(t, "30", payload.Breakdown[1].Formatted)

	// repeated moves leave only the last one
	c.PointerMove(0)
	c.PointerMove(1)
	c.PointerMove(0.4)
	assert.Equal(t, 1, c.Tooltip().Index)

	c.ClearTooltip()
	assert.Nil(t, c.Tooltip())
	assert.Nil(t, c.TooltipDetails())
	assert.Equal(t, schema.LoadedState, c.State())
}

func TestComposer_CustomMetrics(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Custom())
	token := c.BeginLoad(projectKey)
	require.True(t, c.CompleteLoad(token, LoadResult{Analyses: analysesOn(1, 2)}, nil))

	for _, m := range []schema.MetricKey{schema.MetricNcloc, schema.MetricBugs, schema.MetricVulnerabilities} {
		require.NoError(t, c.AddCustomMetric(m))
	}
	assert.Equal(t, []schema.MetricKey{schema.MetricNcloc, schema.MetricBugs, schema.MetricVulnerabilities}, c.MissingMetrics())

	require.NoError(t, c.AddCustomMetric(schema.MetricCodeSmells))
	assert.Equal(t, []schema.MetricKey{schema.MetricBugs, schema.MetricVulnerabilities, schema.MetricCodeSmells}, c.Spec().Metrics())
	assert.True(t, c.AwaitingMetrics())
	assert.Empty(t, c.Snapshot().SeriesGroups)

	// no-ops
	require.NoError(t, c.AddCustomMetric(schema.MetricBugs))
	require.NoError(t, c.RemoveCustomMetric(schema.MetricNcloc))
	assert.Len(t, c.Spec().Metrics(), 3)

	require.NoError(t, c.RemoveCustomMetric(schema.MetricBugs))
	assert.Equal(t, []schema.MetricKey{schema.MetricVulnerabilities, schema.MetricCodeSmells}, c.Spec().Metrics())

	require.True(t, c.CompleteMerge(c.Token(), LoadResult{
		Histories: []schema.MeasureHistoryRecord{record(schema.MetricVulnerabilities, map[int]float64{2: 4})},
		Dropped:   []schema.MetricKey{schema.MetricCodeSmells},
	}, nil))
	rm := c.Snapshot()
	assert.Equal(t, schema.LoadedState, rm.State)
	assert.False(t, rm.Loading)
	assert.Equal(t, []schema.MetricKey{schema.MetricCodeSmells}, rm.Dropped)
	require.Len(t, rm.SeriesGroups, 1)
	assert.Equal(t, []*schema.MeasureValue{nil, num(4)}, ys(rm.SeriesGroups[0][0]))
}

// TestComposer_GapsAreNotData loads analyses whose metrics were never computed.
func TestComposer_GapsAreNotData(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Predefined(schema.GraphCoverage))
	token := c.BeginLoad(projectKey)
	require.True(t, c.CompleteLoad(token, LoadResult{Analyses: analysesOn(1, 2, 3)}, nil))

	rm := c.Snapshot()
	assert.Equal(t, schema.LoadedState, rm.State)
	assert.Empty(t, c.MissingMetrics())
	require.Len(t, rm.SeriesGroups, 2)
	assert.Equal(t, []*schema.MeasureValue{nil, nil, nil}, ys(rm.SeriesGroups[0][0]))
	assert.False(t, rm.HasData)
	assert.Equal(t, 3, rm.Analyses)

	// a window over gap dates only has no data either
	c = NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Predefined(schema.GraphCoverage))
	token = c.BeginLoad(projectKey)
	require.True(t, c.CompleteLoad(token, LoadResult{
		Analyses:  analysesOn(1, 2, 3),
		Histories: []schema.MeasureHistoryRecord{record(schema.MetricCoverage, map[int]float64{1: 80, 3: 85})},
	}, nil))
	assert.True(t, c.Snapshot().HasData)
	require.True(t, c.SetDateWindow(window(2, 2)))
	rm = c.Snapshot()
	assert.Equal(t, []*schema.MeasureValue{nil}, ys(rm.SeriesGroups[0][0]))
	assert.False(t, rm.HasData)
}

// TestComposer_SpecWaitsForUnfetchedMetrics switches to a graph whose metrics
// were never fetched: nothing is displayed until they are merged.
func TestComposer_SpecWaitsForUnfetchedMetrics(t *testing.T) {
	c := loadedComposer(t)
	require.True(t, c.SetDateWindow(window(1, 3)))

	c.SetGraphSpec(schema.Predefined(schema.GraphIssues))
	assert.Contains(t, c.MissingMetrics(), schema.MetricBugs)
	assert.True(t, c.AwaitingMetrics())

	rm := c.Snapshot()
	assert.Equal(t, schema.IdleState, rm.State)
	assert.True(t, rm.Loading)
	assert.False(t, rm.HasData)
	assert.Empty(t, rm.SeriesGroups)
	assert.False(t, c.PointerMove(0.5))
	assert.False(t, c.SelectDate(day(2)))

	var records []schema.MeasureHistoryRecord
	for _, m := range c.MissingMetrics() {
		if m == schema.MetricBugs {
			records = append(records, record(m, map[int]float64{2: 7}))
			continue
		}
		records = append(records, schema.MeasureHistoryRecord{Metric: m})
	}
	require.True(t, c.CompleteMerge(c.Token(), LoadResult{Histories: records}, nil))

	rm = c.Snapshot()
	assert.False(t, c.AwaitingMetrics())
	assert.False(t, rm.Loading)
	assert.Equal(t, schema.WindowedState, rm.State)
	assert.True(t, rm.HasData)
	assert.Equal(t, []*schema.MeasureValue{nil, num(7), nil}, ys(rm.SeriesGroups[0][0]))
}

// TestComposer_SpecChangedDuringLoad keeps waiting for the metrics of a spec
// chosen after the load started.
func TestComposer_SpecChangedDuringLoad(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Predefined(schema.GraphCoverage))
	token := c.BeginLoad(projectKey)
	c.SetGraphSpec(schema.Predefined(schema.GraphIssues))

	require.True(t, c.CompleteLoad(token, coverageResult(), nil))
	assert.Equal(t, schema.IdleState, c.State())
	assert.True(t, c.AwaitingMetrics())
	assert.Contains(t, c.MissingMetrics(), schema.MetricBugs)
	assert.NotContains(t, c.MissingMetrics(), schema.MetricCoverage)
}

func TestComposer_CustomMetricsOnPredefined(t *testing.T) {
	c := loadedComposer(t)
	assert.ErrorIs(t, c.AddCustomMetric(schema.MetricBugs), contract.ErrNotCustomGraph)
	assert.ErrorIs(t, c.RemoveCustomMetric(schema.MetricCoverage), contract.ErrNotCustomGraph)
	assert.Equal(t, schema.GraphCoverage, c.Spec().Graph())
}

func TestComposer_DropMetrics(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Custom(schema.MetricNcloc, "made_up"))
	token := c.BeginLoad(projectKey)
	require.True(t, c.CompleteLoad(token, LoadResult{Analyses: analysesOn(1)}, nil))

	c.DropMetrics("made_up")
	rm := c.Snapshot()
	assert.Equal(t, []schema.MetricKey{"made_up"}, rm.Dropped)
	assert.Equal(t, []schema.MetricKey{schema.MetricNcloc}, rm.Spec.Metrics())
	assert.Len(t, rm.SeriesGroups, 1)
}

func TestComposer_Invalidate(t *testing.T) {
	c := loadedComposer(t)
	c.Invalidate()
	assert.Equal(t, schema.IdleState, c.State())
	assert.False(t, c.Snapshot().HasData)
	assert.Equal(t, projectKey, c.Project())
}

func TestComposer_Events(t *testing.T) {
	c := NewComposer(ComposerOptions{})
	c.SetGraphSpec(schema.Predefined(schema.GraphCoverage))
	res := coverageResult()
	res.Analyses[0].Events = []schema.Event{{Category: schema.VersionEvent, Name: "1.0"}}
	res.Analyses[2].Events = []schema.Event{{Category: schema.QualityGateEvent, Name: "Red"}}
	token := c.BeginLoad(projectKey)
	require.True(t, c.CompleteLoad(token, res, nil))

	assert.Len(t, c.Snapshot().Events, 2)
	require.True(t, c.SetDateWindow(window(2, 3)))
	events := c.Snapshot().Events
	require.Len(t, events, 1)
	assert.Equal(t, "Red", events[0].Event.Name)
	assert.Equal(t, day(3), events[0].Date)
}

func axisLengths(rm schema.ReadModel) []int {
	if len(rm.SeriesGroups) == 0 {
		return nil
	}
	return []int{len(AxisDates(rm.SeriesGroups[0]))}
}

func axisLengthsAll(rm schema.ReadModel) []int {
	out := make([]int, len(rm.SeriesGroups))
	for i, g := range rm.SeriesGroups {
		out[i] = len(AxisDates(g))
	}
	return out
}

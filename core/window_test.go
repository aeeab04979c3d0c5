package core

import (
	"testing"
	"time"

	"github.com/huangsam/activity/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coverageGroup(t *testing.T) []schema.Series {
	t.Helper()
	histories := []schema.MeasureHistoryRecord{record(schema.MetricCoverage, map[int]float64{1: 80, 3: 85})}
	groups := BuildSeries(analysesOn(1, 2, 3), histories, schema.Predefined(schema.GraphCoverage), nil)
	require.NotEmpty(t, groups)
	return groups[0]
}

func window(start, end int) schema.DateWindow {
	var w schema.DateWindow
	if start > 0 {
		s := day(start)
		w.Start = &s
	}
	if end > 0 {
		e := day(end)
		w.End = &e
	}
	return w
}

func TestApplyWindow(t *testing.T) {
	group := coverageGroup(t)

	t.Run("inclusive bounds", func(t *testing.T) {
		got := ApplyWindow(group, window(2, 3))
		assert.Equal(t, []time.Time{day(2), day(3)}, AxisDates(got))
		assert.Equal(t, []*schema.MeasureValue{nil, num(85)}, ys(got[0]))
	})

	t.Run("open start", func(t *testing.T) {
		got := ApplyWindow(group, window(0, 2))
		assert.Equal(t, []time.Time{day(1), day(2)}, AxisDates(got))
	})

	t.Run("open end", func(t *testing.T) {
		got := ApplyWindow(group, window(3, 0))
		assert.Equal(t, []time.Time{day(3)}, AxisDates(got))
	})

	t.Run("outside the axis", func(t *testing.T) {
		got := ApplyWindow(group, window(10, 20))
		require.Len(t, got, 1)
		assert.Empty(t, got[0].Data)
	})

	t.Run("inverted window", func(t *testing.T) {
		got := ApplyWindow(group, window(3, 1))
		assert.Empty(t, got[0].Data)
	})

	t.Run("full range is identity", func(t *testing.T) {
		assert.Equal(t, group, ApplyWindow(group, window(1, 3)))
		assert.Equal(t, group, ApplyWindow(group, schema.DateWindow{}))
	})

	t.Run("applying twice changes nothing", func(t *testing.T) {
		once := ApplyWindow(group, window(2, 3))
		assert.Equal(t, once, ApplyWindow(once, window(2, 3)))
	})

	t.Run("empty group", func(t *testing.T) {
		assert.Empty(t, ApplyWindow(nil, window(1, 2)))
	})
}

func TestApplyWindow_KeepsAlignment(t *testing.T) {
	histories := []schema.MeasureHistoryRecord{
		record(schema.MetricBugs, map[int]float64{1: 1, 5: 2, 8: 3}),
		record(schema.MetricCodeSmells, map[int]float64{2: 10, 8: 12}),
		record(schema.MetricVulnerabilities, map[int]float64{5: 0}),
	}
	group := BuildSeries(analysesOn(1, 5, 8), histories, schema.Predefined(schema.GraphIssues), nil)[0]

	got := ApplyWindow(group, window(2, 5))
	assert.NotPanics(t, func() { AssertAligned(got) })
	for _, s := range got {
		for _, p := range s.Data {
			assert.False(t, p.Date.Before(day(2)))
			assert.False(t, p.Date.After(day(5)))
		}
	}
	assert.Equal(t, []*schema.MeasureValue{nil, num(2)}, ys(got[0]))
	assert.Equal(t, []*schema.MeasureValue{num(10), nil}, ys(got[1]))
}

func TestZoomWindow(t *testing.T) {
	group := BuildSeries(analysesOn(1, 2, 3, 4, 5), nil, schema.Predefined(schema.GraphCoverage), nil)[0]
	pixels := [2]float64{0, 100}

	t.Run("between two positions", func(t *testing.T) {
		w := ZoomWindow(group, 30, 70, pixels)
		require.NotNil(t, w.Start)
		require.NotNil(t, w.End)
		assert.Equal(t, day(2), *w.Start)
		assert.Equal(t, day(4), *w.End)
	})

	t.Run("reversed positions", func(t *testing.T) {
		assert.Equal(t, ZoomWindow(group, 30, 70, pixels), ZoomWindow(group, 70, 30, pixels))
	})

	t.Run("clamped outside the axis", func(t *testing.T) {
		w := ZoomWindow(group, -50, 500, pixels)
		assert.Equal(t, day(1), *w.Start)
		assert.Equal(t, day(5), *w.End)
	})

	t.Run("same as an explicit window", func(t *testing.T) {
		w := ZoomWindow(group, 30, 70, pixels)
		assert.Equal(t, ApplyWindow(group, window(2, 4)), ApplyWindow(group, w))
	})

	t.Run("empty axis", func(t *testing.T) {
		assert.True(t, ZoomWindow(nil, 0, 10, pixels).IsZero())
	})
}

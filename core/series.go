package core

import (
	"fmt"
	"slices"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// BuildSeries turns analyses and measure histories into aligned series, one
// slice per sub-graph of spec. Custom specs use the default metric cap.
func BuildSeries(
	analyses []schema.Analysis,
	histories []schema.MeasureHistoryRecord,
	spec schema.GraphSpec,
	translate contract.Translator,
) [][]schema.Series {
	return BuildSeriesCapped(analyses, histories, spec, translate, DefaultMaxCustomMetrics)
}

// BuildSeriesCapped is BuildSeries with an explicit custom metric cap.
//
// The axis of each sub-graph is the sorted union of analysis dates and the
// dates of its metrics' points. A metric without a point on an axis date gets
// a nil value there. Without analyses every sub-graph is an empty group.
func BuildSeriesCapped(
	analyses []schema.Analysis,
	histories []schema.MeasureHistoryRecord,
	spec schema.GraphSpec,
	translate contract.Translator,
	maxCustom int,
) [][]schema.Series {
	if translate == nil {
		translate = contract.DefaultTranslator
	}
	groups := SubGraphMetrics(spec, maxCustom)
	out := make([][]schema.Series, len(groups))
	if len(analyses) == 0 {
		for i := range out {
			out[i] = []schema.Series{}
		}
		return out
	}

	byMetric := indexHistories(histories)
	for i, metrics := range groups {
		axis := buildAxis(analyses, metrics, byMetric)
		group := make([]schema.Series, 0, len(metrics))
		for _, m := range metrics {
			group = append(group, schema.Series{
				Name:           m,
				TranslatedName: translate(m),
				Data:           alignPoints(axis, byMetric[m]),
			})
		}
		AssertAligned(group)
		out[i] = group
	}
	return out
}

// indexHistories maps each metric to its points keyed by instant. Later points
// override earlier ones on the same date.
func indexHistories(histories []schema.MeasureHistoryRecord) map[schema.MetricKey]map[int64]schema.HistoryPoint {
	out := make(map[schema.MetricKey]map[int64]schema.HistoryPoint, len(histories))
	for _, h := range histories {
		points, ok := out[h.Metric]
		if !ok {
			points = make(map[int64]schema.HistoryPoint, len(h.Points))
			out[h.Metric] = points
		}
		for _, p := range h.Points {
			points[instantKey(p.Date)] = p
		}
	}
	return out
}

// buildAxis returns the sorted distinct dates of analyses and the points of metrics.
func buildAxis(
	analyses []schema.Analysis,
	metrics []schema.MetricKey,
	byMetric map[schema.MetricKey]map[int64]schema.HistoryPoint,
) []time.Time {
	seen := make(map[int64]struct{}, len(analyses))
	axis := make([]time.Time, 0, len(analyses))
	add := func(key int64, t time.Time) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		axis = append(axis, t)
	}
	for _, a := range analyses {
		add(instantKey(a.Date), a.Date)
	}
	for _, m := range metrics {
		for key, p := range byMetric[m] {
			add(key, p.Date)
		}
	}
	slices.SortFunc(axis, func(a, b time.Time) int { return a.Compare(b) })
	return axis
}

func alignPoints(axis []time.Time, points map[int64]schema.HistoryPoint) []schema.SeriesPoint {
	data := make([]schema.SeriesPoint, len(axis))
	for i, d := range axis {
		data[i] = schema.SeriesPoint{Date: d}
		if p, ok := points[instantKey(d)]; ok {
			data[i].Y = p.Value.Ptr()
		}
	}
	return data
}

// AxisDates returns the shared dates of a sub-graph; nil for an empty group.
func AxisDates(group []schema.Series) []time.Time {
	if len(group) == 0 {
		return nil
	}
	dates := make([]time.Time, len(group[0].Data))
	for i, p := range group[0].Data {
		dates[i] = p.Date
	}
	return dates
}

// AssertAligned panics when the series of a sub-graph disagree on their dates.
// A mismatch is a defect in whatever built the group.
func AssertAligned(group []schema.Series) {
	if len(group) < 2 {
		return
	}
	ref := group[0]
	for _, s := range group[1:] {
		if len(s.Data) != len(ref.Data) {
			panic(fmt.Sprintf("series %s has %d points, %s has %d", s.Name, len(s.Data), ref.Name, len(ref.Data)))
		}
		for i := range s.Data {
			if !s.Data[i].Date.Equal(ref.Data[i].Date) {
				panic(fmt.Sprintf("series %s and %s disagree at index %d", s.Name, ref.Name, i))
			}
		}
	}
}

// HasData reports whether any series in groups has at least one value. Gaps do not count.
func HasData(groups [][]schema.Series) bool {
	for _, group := range groups {
		for _, s := range group {
			for _, p := range s.Data {
				if p.Y != nil {
					return true
				}
			}
		}
	}
	return false
}

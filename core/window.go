package core

import (
	"math"
	"sort"
	"time"

	"github.com/huangsam/activity/schema"
)

// ApplyWindow keeps the points of every series whose date lies within w,
// bounds included. Every series loses the same indices, so the group stays aligned.
func ApplyWindow(group []schema.Series, w schema.DateWindow) []schema.Series {
	if len(group) == 0 {
		return group
	}
	lo, hi := windowBounds(AxisDates(group), w)
	out := make([]schema.Series, len(group))
	for i, s := range group {
		out[i] = schema.Series{
			Name:           s.Name,
			TranslatedName: s.TranslatedName,
			Data:           s.Data[lo:hi:hi],
		}
	}
	return out
}

// ApplyWindowAll applies w to every sub-graph.
func ApplyWindowAll(groups [][]schema.Series, w schema.DateWindow) [][]schema.Series {
	out := make([][]schema.Series, len(groups))
	for i, group := range groups {
		out[i] = ApplyWindow(group, w)
	}
	return out
}

// windowBounds returns the half-open index range [lo, hi) of axis inside w.
func windowBounds(axis []time.Time, w schema.DateWindow) (int, int) {
	lo, hi := 0, len(axis)
	if w.Start != nil {
		start := *w.Start
		lo = sort.Search(len(axis), func(i int) bool { return !axis[i].Before(start) })
	}
	if w.End != nil {
		end := *w.End
		hi = sort.Search(len(axis), func(i int) bool { return axis[i].After(end) })
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// ZoomWindow infers a date window from two pointer positions over the
// unfiltered axis of group. The positions may come in either order.
// An empty axis yields an unbounded window.
func ZoomWindow(group []schema.Series, x1, x2 float64, pixelRange [2]float64) schema.DateWindow {
	axis := AxisDates(group)
	if len(axis) == 0 {
		return schema.DateWindow{}
	}
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	from := pixelToIndex(x1, pixelRange, len(axis), math.Floor)
	to := pixelToIndex(x2, pixelRange, len(axis), math.Ceil)
	start, end := axis[from], axis[to]
	return schema.DateWindow{Start: &start, End: &end}
}

// pixelToIndex maps x linearly over pixelRange onto [0, n-1] and clamps.
func pixelToIndex(x float64, pixelRange [2]float64, n int, round func(float64) float64) int {
	if n <= 1 {
		return 0
	}
	width := pixelRange[1] - pixelRange[0]
	var frac float64
	if width != 0 {
		frac = (x - pixelRange[0]) / width * float64(n-1)
	}
	if math.IsNaN(frac) {
		return 0
	}
	idx := round(frac)
	switch {
	case idx < 0:
		return 0
	case idx > float64(n-1):
		return n - 1
	default:
		return int(idx)
	}
}

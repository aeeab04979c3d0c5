// Package schema has configs, models and global variables for all parts of activity.
package schema

import "time"

// ProjectKey identifies the (project, branch) pair whose history is displayed.
type ProjectKey struct {
	Project string `json:"project"`
	Branch  string `json:"branch"`
}

// String renders the key as "project@branch", or just the project on the default branch.
func (k ProjectKey) String() string {
	if k.Branch == "" {
		return k.Project
	}
	return k.Project + "@" + k.Branch
}

// Event is an annotation attached to exactly one analysis.
type Event struct {
	Key         string        `json:"key,omitempty" yaml:"key,omitempty"`
	Category    EventCategory `json:"category" yaml:"category"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// Analysis is one completed analysis run at a point in time.
// Analyses are immutable once fetched.
type Analysis struct {
	Key    string    `json:"key" yaml:"key"`
	Date   time.Time `json:"date" yaml:"date"`
	Events []Event   `json:"events,omitempty" yaml:"events,omitempty"`
}

// HistoryPoint is one value of a metric at an analysis date.
type HistoryPoint struct {
	Date  time.Time    `json:"date" yaml:"date"`
	Value MeasureValue `json:"value" yaml:"value"`
}

// MeasureHistoryRecord is the time series of a single metric.
// Points are ascending by date; a date with no point means the metric was not computed.
type MeasureHistoryRecord struct {
	Metric MetricKey      `json:"metric" yaml:"metric"`
	Points []HistoryPoint `json:"points" yaml:"points"`
}

// SeriesPoint is one sample on an aligned axis. A nil Y is a gap.
type SeriesPoint struct {
	Date time.Time     `json:"date"`
	Y    *MeasureValue `json:"y"`
}

// Series is one line of a sub-graph. Every series of the same sub-graph
// shares the same dates in the same order.
type Series struct {
	Name           MetricKey     `json:"name"`
	TranslatedName string        `json:"translatedName"`
	Data           []SeriesPoint `json:"data"`
}

// DateWindow narrows the displayed dates. A nil bound is unbounded.
type DateWindow struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// IsZero reports whether the window is unbounded on both ends.
func (w DateWindow) IsZero() bool {
	return w.Start == nil && w.End == nil
}

// Contains reports whether t falls within the inclusive window.
func (w DateWindow) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// NewDateWindow builds a window from optional bounds; zero times are treated as unbounded.
func NewDateWindow(start, end time.Time) DateWindow {
	var w DateWindow
	if !start.IsZero() {
		s := start
		w.Start = &s
	}
	if !end.IsZero() {
		e := end
		w.End = &e
	}
	return w
}

// TooltipState points at one sample of the aligned axis of sub-graph Graph.
type TooltipState struct {
	Graph int       `json:"graph"`
	Index int       `json:"index"`
	Date  time.Time `json:"date"`
}

package core

import (
	"slices"
	"time"

	"github.com/huangsam/activity/schema"
)

// LoadToken identifies one fetch for a project key. Results carrying an older
// token than the store's current one are discarded.
type LoadToken uint64

// AnalysisHistoryStore holds the analyses and measure histories of one project branch.
// It keeps analyses and points sorted ascending by date and deduplicates points
// that share a date, keeping the latest-fetched value.
type AnalysisHistoryStore struct {
	project  schema.ProjectKey
	token    LoadToken
	loaded   bool
	analyses []schema.Analysis
	measures map[schema.MetricKey]schema.MeasureHistoryRecord
}

// NewAnalysisHistoryStore creates an empty store.
func NewAnalysisHistoryStore() *AnalysisHistoryStore {
	return &AnalysisHistoryStore{measures: make(map[schema.MetricKey]schema.MeasureHistoryRecord)}
}

// Begin starts a load for key, clearing current data and superseding every earlier token.
func (s *AnalysisHistoryStore) Begin(key schema.ProjectKey) LoadToken {
	s.project = key
	s.reset()
	return s.token
}

// Invalidate drops all data and supersedes outstanding loads, keeping the project key.
func (s *AnalysisHistoryStore) Invalidate() {
	s.reset()
}

func (s *AnalysisHistoryStore) reset() {
	s.token++
	s.loaded = false
	s.analyses = nil
	s.measures = make(map[schema.MetricKey]schema.MeasureHistoryRecord)
}

// Token returns the current load token.
func (s *AnalysisHistoryStore) Token() LoadToken { return s.token }

// Project returns the project key of the current load.
func (s *AnalysisHistoryStore) Project() schema.ProjectKey { return s.project }

// Loaded reports whether the current token has been committed.
func (s *AnalysisHistoryStore) Loaded() bool { return s.loaded }

// Commit replaces the store content with a fetch result. It returns false and
// changes nothing when token is stale.
func (s *AnalysisHistoryStore) Commit(token LoadToken, analyses []schema.Analysis, records []schema.MeasureHistoryRecord) bool {
	if token != s.token {
		return false
	}
	s.analyses = sortAnalyses(analyses)
	s.measures = make(map[schema.MetricKey]schema.MeasureHistoryRecord, len(records))
	for _, r := range records {
		s.mergeRecord(r)
	}
	s.loaded = true
	return true
}

// Merge adds measure histories fetched after Commit, e.g. a newly added custom metric.
// Points on a date already present replace the stored value.
func (s *AnalysisHistoryStore) Merge(token LoadToken, records []schema.MeasureHistoryRecord) bool {
	if token != s.token {
		return false
	}
	for _, r := range records {
		s.mergeRecord(r)
	}
	return true
}

func (s *AnalysisHistoryStore) mergeRecord(r schema.MeasureHistoryRecord) {
	existing := s.measures[r.Metric]
	s.measures[r.Metric] = schema.MeasureHistoryRecord{
		Metric: r.Metric,
		Points: mergePoints(existing.Points, r.Points),
	}
}

// Analyses returns a copy of the analyses, ascending by date.
func (s *AnalysisHistoryStore) Analyses() []schema.Analysis {
	out := make([]schema.Analysis, len(s.analyses))
	for i, a := range s.analyses {
		out[i] = a
		out[i].Events = slices.Clone(a.Events)
	}
	return out
}

// MeasureHistory returns a copy of the history of metric. The boolean is false
// when nothing was fetched for it.
func (s *AnalysisHistoryStore) MeasureHistory(metric schema.MetricKey) (schema.MeasureHistoryRecord, bool) {
	r, ok := s.measures[metric]
	if !ok {
		return schema.MeasureHistoryRecord{Metric: metric}, false
	}
	return schema.MeasureHistoryRecord{Metric: r.Metric, Points: slices.Clone(r.Points)}, true
}

// Histories returns the fetched histories of metrics, in the order requested.
// Metrics never fetched are skipped.
func (s *AnalysisHistoryStore) Histories(metrics []schema.MetricKey) []schema.MeasureHistoryRecord {
	out := make([]schema.MeasureHistoryRecord, 0, len(metrics))
	for _, m := range metrics {
		if r, ok := s.MeasureHistory(m); ok {
			out = append(out, r)
		}
	}
	return out
}

// HasMetric reports whether a history was fetched for metric.
func (s *AnalysisHistoryStore) HasMetric(metric schema.MetricKey) bool {
	_, ok := s.measures[metric]
	return ok
}

// sortAnalyses returns a stably sorted copy of analyses.
func sortAnalyses(analyses []schema.Analysis) []schema.Analysis {
	out := slices.Clone(analyses)
	slices.SortStableFunc(out, func(a, b schema.Analysis) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// mergePoints combines two point lists, sorted by date. When dates collide the
// later point wins, whether it comes later in incoming or from incoming over base.
func mergePoints(base, incoming []schema.HistoryPoint) []schema.HistoryPoint {
	byDate := make(map[int64]int, len(base)+len(incoming))
	out := make([]schema.HistoryPoint, 0, len(base)+len(incoming))
	for _, list := range [][]schema.HistoryPoint{base, incoming} {
		for _, p := range list {
			key := instantKey(p.Date)
			if i, ok := byDate[key]; ok {
				out[i].Value = p.Value
				continue
			}
			byDate[key] = len(out)
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b schema.HistoryPoint) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// instantKey identifies a point in time regardless of location.
func instantKey(t time.Time) int64 {
	return t.UnixNano()
}

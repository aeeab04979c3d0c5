// Package contract provides interfaces and shared utilities for activity's internal architecture.
package contract

import (
	"context"
	"errors"

	"github.com/huangsam/activity/schema"
)

// Sentinel errors shared across packages. Compare with errors.Is.
var (
	// ErrUnknownMetric is returned by fetchers when a requested metric does not exist.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrNotCustomGraph is returned when a custom-only operation targets a predefined graph.
	ErrNotCustomGraph = errors.New("graph is not a custom graph")

	// ErrNoProject is returned when a load is requested without a project.
	ErrNoProject = errors.New("no project selected")

	// ErrAnalysisNotFound is returned when an analysis key does not exist for a project.
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrEventNotFound is returned when an event key does not exist.
	ErrEventNotFound = errors.New("event not found")
)

// HistoryFetcher retrieves analyses and measure histories for a project branch.
// This allows the engine to be tested without a real backing source.
type HistoryFetcher interface {
	// FetchAnalyses returns every analysis of the branch, ascending by date.
	FetchAnalyses(ctx context.Context, project, branch string) ([]schema.Analysis, error)

	// FetchHistory returns the histories of the requested metrics. A nil window means all dates.
	// An error wrapping ErrUnknownMetric is returned when any metric does not exist.
	FetchHistory(ctx context.Context, project, branch string, metrics []schema.MetricKey, window *schema.DateWindow) ([]schema.MeasureHistoryRecord, error)
}

// Translator turns a metric key into a display name.
type Translator func(schema.MetricKey) string

// ValueFormatter renders a measure value for display.
type ValueFormatter func(schema.MetricKey, schema.MeasureValue) string

// CacheManager defines the interface for managing the storage layer.
// This allows the storage layer to be mocked for testing.
type CacheManager interface {
	GetFetchStore() CacheStore
	GetHistoryStore() HistoryStore
}

// CacheStore defines the interface for cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	Delete(key string) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// HistoryRecorder writes analyses and their measures to a history backend.
type HistoryRecorder interface {
	// RegisterMetrics upserts metric definitions; only registered metrics can be fetched.
	RegisterMetrics(ctx context.Context, defs []schema.MetricDefinition) error

	// RecordAnalysis upserts an analysis and replaces its events.
	RecordAnalysis(ctx context.Context, key schema.ProjectKey, analysis schema.Analysis) error

	// RecordMeasures upserts measure values of one analysis.
	RecordMeasures(ctx context.Context, key schema.ProjectKey, analysisKey string, values map[schema.MetricKey]schema.MeasureValue) error
}

// HistoryStore is a durable HistoryFetcher that can also be written to.
type HistoryStore interface {
	HistoryFetcher
	HistoryRecorder

	// ListMetrics returns every registered metric.
	ListMetrics(ctx context.Context) ([]schema.MetricDefinition, error)

	// AddEvent attaches an event to an existing analysis and returns the stored event.
	AddEvent(ctx context.Context, key schema.ProjectKey, analysisKey string, event schema.Event) (schema.Event, error)

	// DeleteEvent removes an event.
	DeleteEvent(ctx context.Context, key schema.ProjectKey, eventKey string) error

	// ExportMeasures returns every stored measure value.
	ExportMeasures(ctx context.Context) ([]schema.MeasureRow, error)

	// ExportEvents returns every stored event.
	ExportEvents(ctx context.Context) ([]schema.EventRow, error)

	// GetStatus returns status information about the history store.
	GetStatus() (schema.HistoryStatus, error)

	// Close closes the underlying connection.
	Close() error
}

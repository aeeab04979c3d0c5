package iocache

import (
	"context"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"github.com/stretchr/testify/mock"
)

// MockCacheManager is a mock implementation of CacheManager for testing.
type MockCacheManager struct {
	mock.Mock
}

var _ contract.CacheManager = &MockCacheManager{} // Compile-time check

// GetFetchStore implements the CacheManager interface.
func (m *MockCacheManager) GetFetchStore() contract.CacheStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.CacheStore)
	return store
}

// GetHistoryStore implements the CacheManager interface.
func (m *MockCacheManager) GetHistoryStore() contract.HistoryStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.HistoryStore)
	return store
}

// MockCacheStore is a mock implementation of CacheStore for testing.
type MockCacheStore struct {
	mock.Mock
}

var _ contract.CacheStore = &MockCacheStore{} // Compile-time check

// Get implements the CacheStore interface.
func (m *MockCacheStore) Get(key string) ([]byte, int, int64, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Int(1), args.Get(2).(int64), args.Error(3)
}

// Set implements the CacheStore interface.
func (m *MockCacheStore) Set(key string, data []byte, version int, ts int64) error {
	args := m.Called(key, data, version, ts)
	return args.Error(0)
}

// Delete implements the CacheStore interface.
func (m *MockCacheStore) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// Close implements the CacheStore interface.
func (m *MockCacheStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// GetStatus implements the CacheStore interface.
func (m *MockCacheStore) GetStatus() (schema.CacheStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// MockHistoryStore is a mock implementation of HistoryStore for testing.
type MockHistoryStore struct {
	mock.Mock
}

var _ contract.HistoryStore = &MockHistoryStore{} // Compile-time check

// FetchAnalyses implements the HistoryFetcher interface.
func (m *MockHistoryStore) FetchAnalyses(ctx context.Context, project, branch string) ([]schema.Analysis, error) {
	args := m.Called(ctx, project, branch)
	analyses, _ := args.Get(0).([]schema.Analysis)
	return analyses, args.Error(1)
}

// FetchHistory implements the HistoryFetcher interface.
func (m *MockHistoryStore) FetchHistory(ctx context.Context, project, branch string, metrics []schema.MetricKey, window *schema.DateWindow) ([]schema.MeasureHistoryRecord, error) {
	args := m.Called(ctx, project, branch, metrics, window)
	records, _ := args.Get(0).([]schema.MeasureHistoryRecord)
	return records, args.Error(1)
}

// RegisterMetrics implements the HistoryStore interface.
func (m *MockHistoryStore) RegisterMetrics(ctx context.Context, defs []schema.MetricDefinition) error {
	args := m.Called(ctx, defs)
	return args.Error(0)
}

// ListMetrics implements the HistoryStore interface.
func (m *MockHistoryStore) ListMetrics(ctx context.Context) ([]schema.MetricDefinition, error) {
	args := m.Called(ctx)
	defs, _ := args.Get(0).([]schema.MetricDefinition)
	return defs, args.Error(1)
}

// RecordAnalysis implements the HistoryStore interface.
func (m *MockHistoryStore) RecordAnalysis(ctx context.Context, key schema.ProjectKey, analysis schema.Analysis) error {
	args := m.Called(ctx, key, analysis)
	return args.Error(0)
}

// RecordMeasures implements the HistoryStore interface.
func (m *MockHistoryStore) RecordMeasures(ctx context.Context, key schema.ProjectKey, analysisKey string, values map[schema.MetricKey]schema.MeasureValue) error {
	args := m.Called(ctx, key, analysisKey, values)
	return args.Error(0)
}

// AddEvent implements the HistoryStore interface.
func (m *MockHistoryStore) AddEvent(ctx context.Context, key schema.ProjectKey, analysisKey string, event schema.Event) (schema.Event, error) {
	args := m.Called(ctx, key, analysisKey, event)
	return args.Get(0).(schema.Event), args.Error(1)
}

// DeleteEvent implements the HistoryStore interface.
func (m *MockHistoryStore) DeleteEvent(ctx context.Context, key schema.ProjectKey, eventKey string) error {
	args := m.Called(ctx, key, eventKey)
	return args.Error(0)
}

// ExportMeasures implements the HistoryStore interface.
func (m *MockHistoryStore) ExportMeasures(ctx context.Context) ([]schema.MeasureRow, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]schema.MeasureRow)
	return rows, args.Error(1)
}

// ExportEvents implements the HistoryStore interface.
func (m *MockHistoryStore) ExportEvents(ctx context.Context) ([]schema.EventRow, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]schema.EventRow)
	return rows, args.Error(1)
}

// GetStatus implements the HistoryStore interface.
func (m *MockHistoryStore) GetStatus() (schema.HistoryStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.HistoryStatus), args.Error(1)
}

// Close implements the HistoryStore interface.
func (m *MockHistoryStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

package contract

import (
	"context"

	"github.com/huangsam/activity/schema"
	"github.com/stretchr/testify/mock"
)

// MockHistoryFetcher is a mock implementation of HistoryFetcher for testing.
type MockHistoryFetcher struct {
	mock.Mock
}

var _ HistoryFetcher = &MockHistoryFetcher{} // Compile-time check

// FetchAnalyses implements the HistoryFetcher interface.
func (m *MockHistoryFetcher) FetchAnalyses(ctx context.Context, project, branch string) ([]schema.Analysis, error) {
	args := m.Called(ctx, project, branch)
	analyses, _ := args.Get(0).([]schema.Analysis)
	return analyses, args.Error(1)
}

// FetchHistory implements the HistoryFetcher interface.
func (m *MockHistoryFetcher) FetchHistory(ctx context.Context, project, branch string, metrics []schema.MetricKey, window *schema.DateWindow) ([]schema.MeasureHistoryRecord, error) {
	args := m.Called(ctx, project, branch, metrics, window)
	records, _ := args.Get(0).([]schema.MeasureHistoryRecord)
	return records, args.Error(1)
}

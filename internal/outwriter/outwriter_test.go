package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
)

func sampleGraph() schema.GraphResult {
	coverage := []schema.Series{{
		Name:           schema.MetricCoverage,
		TranslatedName: "Coverage",
		Data: []schema.SeriesPoint{
			{Date: day1, Y: schema.NumberValue(80).Ptr()},
			{Date: day2, Y: schema.NumberValue(82.5).Ptr()},
		},
	}}
	tests := []schema.Series{{
		Name:           schema.MetricTests,
		TranslatedName: "Unit Tests",
		Data: []schema.SeriesPoint{
			{Date: day1, Y: nil},
			{Date: day2, Y: schema.NumberValue(412).Ptr()},
		},
	}}
	return schema.GraphResult{
		ReadModel: schema.ReadModel{
			Project:      schema.ProjectKey{Project: "acme", Branch: "main"},
			State:        schema.LoadedState,
			Spec:         schema.Predefined(schema.GraphCoverage),
			SeriesGroups: [][]schema.Series{coverage, tests},
			HasData:      true,
			Analyses:     2,
			Events: []schema.AxisEvent{
				{Date: day2, Event: schema.Event{Category: schema.VersionEvent, Name: "v1.2"}},
			},
		},
		TooltipDetails: &schema.TooltipPayload{
			Graph: 0,
			Index: 1,
			Date:  day2,
			Values: []schema.TooltipValue{
				{Metric: schema.MetricCoverage, TranslatedName: "Coverage", Value: schema.NumberValue(82.5).Ptr(), Formatted: "82.5%"},
			},
			Breakdown: []schema.TooltipValue{
				{Metric: schema.MetricUncoveredLines, TranslatedName: "Uncovered Lines", Value: schema.NumberValue(30).Ptr(), Formatted: "30"},
			},
			Events: []schema.Event{{Category: schema.VersionEvent, Name: "v1.2", Description: "release"}},
		},
	}
}

func textConfig() *contract.Config {
	return &contract.Config{
		Output:       schema.TextOut,
		Precision:    1,
		Width:        120,
		Source:       schema.FixtureSource,
		CacheBackend: schema.NoneBackend,
	}
}

func TestWriteGraphResultsTable(t *testing.T) {
	cfg := textConfig()
	fmtValue, _ := createFormatters(cfg.Precision)

	var buf bytes.Buffer
	err := WriteGraphResults(&buf, sampleGraph(), cfg, fmtValue, 100*time.Millisecond)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "acme@main: coverage graph (loaded)")
	assert.Contains(t, output, "Window: all dates | Analyses: 2")
	assert.Contains(t, output, "80.0%")
	assert.Contains(t, output, "82.5%")
	assert.Contains(t, output, "412")
	assert.Contains(t, output, "v1.2")
	assert.Contains(t, output, "Sub-graph 2")
	assert.Contains(t, output, "Tooltip at 2024-01-02T00:00:00Z (sub-graph 1, point 2)")
	assert.Contains(t, output, "[VERSION] v1.2: release")
	assert.Contains(t, output, "Graph built in 100ms. Source: fixture. Cache backend: none")
}

func TestWriteGraphResultsNoData(t *testing.T) {
	cfg := textConfig()
	fmtValue, _ := createFormatters(cfg.Precision)
	result := schema.GraphResult{ReadModel: schema.ReadModel{
		Project: schema.ProjectKey{Project: "acme"},
		State:   schema.IdleState,
		Spec:    schema.Predefined(schema.GraphIssues),
		Error:   "no history data: timeout",
		Dropped: []schema.MetricKey{"bogus"},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteGraphResults(&buf, result, cfg, fmtValue, time.Second))

	output := buf.String()
	assert.Contains(t, output, "no history data: timeout")
	assert.Contains(t, output, "Dropped unknown metrics: bogus")
	assert.Contains(t, output, "No history data to display.")
	assert.NotContains(t, output, "Tooltip")
}

func TestWriteCSVResultsForGraph(t *testing.T) {
	_, rawValue := createFormatters(1)

	var buf bytes.Buffer
	require.NoError(t, writeCSVResultsForGraph(&buf, sampleGraph(), rawValue))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"graph", "metric", "name", "date", "value", "events"}, records[0])
	assert.Equal(t, []string{"0", "coverage", "Coverage", "2024-01-02T00:00:00Z", "82.5", "v1.2"}, records[2])
	// gaps keep their row with an empty value
	assert.Equal(t, []string{"1", "tests", "Unit Tests", "2024-01-01T00:00:00Z", "", ""}, records[3])
}

func TestWriteJSONResultsForGraph(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSONResultsForGraph(&buf, sampleGraph()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "loaded", decoded["state"])
	assert.Equal(t, true, decoded["hasData"])
	assert.Contains(t, decoded, "tooltipDetails")

	groups, ok := decoded["seriesGroups"].([]any)
	require.True(t, ok)
	assert.Len(t, groups, 2)
}

func TestPrintGraphResultsToFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		output schema.OutputMode
		file   string
	}{
		{"json", schema.JSONOut, "graph.json"},
		{"csv", schema.CSVOut, "graph.csv"},
		{"text", schema.TextOut, "graph.txt"},
		{"parquet", schema.ParquetOut, "graph.parquet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := textConfig()
			cfg.Output = tt.output
			cfg.OutputFile = filepath.Join(dir, tt.file)

			require.NoError(t, PrintGraphResults(sampleGraph(), cfg, time.Millisecond))

			info, err := os.Stat(cfg.OutputFile)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}
}

func TestFormatCell(t *testing.T) {
	fmtValue, _ := createFormatters(1)

	assert.Equal(t, "-", formatCell(schema.MetricBugs, nil, false, fmtValue))
	assert.Equal(t, "12", formatCell(schema.MetricBugs, schema.NumberValue(12).Ptr(), false, fmtValue))
	assert.Equal(t, "OK", formatCell(schema.MetricAlertStatus, schema.TextValue("OK").Ptr(), false, fmtValue))
	assert.Equal(t, "1d 2h", formatCell(schema.MetricSqaleIndex, schema.NumberValue(600).Ptr(), false, fmtValue))
}

func TestFormatWindow(t *testing.T) {
	assert.Equal(t, "all dates", formatWindow(schema.DateWindow{}))
	assert.Equal(t, "2024-01-01T00:00:00Z → open", formatWindow(schema.NewDateWindow(day1, time.Time{})))
	assert.Equal(t, "open → 2024-01-02T00:00:00Z", formatWindow(schema.NewDateWindow(time.Time{}, day2)))
}

func TestGetMaxTableLabelWidth(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		columns  int
		expected int
	}{
		{"wide terminal caps", 200, 1, 40},
		{"narrow terminal floors", 40, 3, 12},
		{"in between", 100, 3, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &contract.Config{Width: tt.width}
			assert.Equal(t, tt.expected, GetMaxTableLabelWidth(cfg, tt.columns))
		})
	}
}

package contract

import (
	"testing"
	"time"

	"github.com/huangsam/activity/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseInput returns the raw input produced by the default flag values.
func baseInput() *ConfigRawInput {
	return &ConfigRawInput{
		Project:        "acme",
		Source:         "fixture",
		HistoryBackend: "none",
		CacheBackend:   "none",
		Output:         "text",
		Precision:      DefaultPrecision,
		Color:          "yes",
		Graph:          "issues",
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*ConfigRawInput)
		expectError bool
	}{
		{"valid minimal config", func(*ConfigRawInput) {}, false},
		{"invalid graph", func(in *ConfigRawInput) { in.Graph = "pie" }, true},
		{"invalid output", func(in *ConfigRawInput) { in.Output = "xml" }, true},
		{"parquet without file", func(in *ConfigRawInput) { in.Output = "parquet" }, true},
		{"parquet with file", func(in *ConfigRawInput) { in.Output = "parquet"; in.OutputFile = "out.parquet" }, false},
		{"invalid precision", func(in *ConfigRawInput) { in.Precision = 9 }, true},
		{"invalid color", func(in *ConfigRawInput) { in.Color = "maybe" }, true},
		{"metrics without custom graph", func(in *ConfigRawInput) { in.Metrics = "ncloc" }, true},
		{"custom graph with metrics", func(in *ConfigRawInput) { in.Graph = "custom"; in.Metrics = "ncloc,bugs" }, false},
		{"start after end", func(in *ConfigRawInput) { in.Start = "2024-05-01"; in.End = "2024-01-01" }, true},
		{"relative start", func(in *ConfigRawInput) { in.Start = "3 months ago" }, false},
		{"bad start", func(in *ConfigRawInput) { in.Start = "yesterday-ish" }, true},
		{"bad pointer", func(in *ConfigRawInput) { in.Pointer = "left" }, true},
		{"pointer and select date", func(in *ConfigRawInput) { in.Pointer = "0.5"; in.SelectDate = "2024-01-01" }, true},
		{"negative axis width", func(in *ConfigRawInput) { in.AxisWidth = -10 }, true},
		{"invalid source", func(in *ConfigRawInput) { in.Source = "ftp" }, true},
		{"influx without url", func(in *ConfigRawInput) { in.Source = "influx" }, true},
		{"influx with url", func(in *ConfigRawInput) {
			in.Source = "influx"
			in.InfluxURL = "http://localhost:8086"
			in.InfluxBucket = "activity"
		}, false},
		{"sql source with none backend", func(in *ConfigRawInput) { in.Source = "sql" }, true},
		{"invalid history backend", func(in *ConfigRawInput) { in.HistoryBackend = "oracle" }, true},
		{"mysql without dsn", func(in *ConfigRawInput) { in.CacheBackend = "mysql" }, true},
		{"bad cache ttl", func(in *ConfigRawInput) { in.CacheTTL = "soon" }, true},
		{"max custom metrics too large", func(in *ConfigRawInput) { in.MaxCustomMetrics = 50 }, true},
		{"same sqlite file", func(in *ConfigRawInput) {
			in.HistoryBackend = "sqlite"
			in.CacheBackend = "sqlite"
			in.HistoryDBConnect = "/tmp/a.db"
			in.CacheDBConnect = "/tmp/a.db"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := baseInput()
			tt.modify(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	input := baseInput()
	input.Graph = ""
	input.Source = ""
	input.HistoryBackend = ""
	input.CacheBackend = ""

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	assert.Equal(t, schema.GraphIssues, cfg.Graph)
	assert.Equal(t, schema.FixtureSource, cfg.Source)
	assert.Equal(t, schema.SQLiteBackend, cfg.HistoryBackend)
	assert.Equal(t, schema.NoneBackend, cfg.CacheBackend)
	assert.Equal(t, DefaultMaxCustomMetrics, cfg.MaxCustomMetrics)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultAxisWidth, cfg.AxisWidth)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultFixturePath, cfg.FixturePath)
	assert.Nil(t, cfg.Pointer)
	assert.True(t, cfg.DateWindow().IsZero())
	assert.True(t, cfg.GraphSpec().Equal(schema.Predefined(schema.GraphIssues)))
}

func TestProcessGraphSelectionKeepsNewestMetrics(t *testing.T) {
	input := baseInput()
	input.Graph = "custom"
	input.Metrics = "ncloc, bugs, coverage, tests, ncloc"

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	// Duplicates collapse to the first occurrence, then the oldest are evicted.
	assert.Equal(t, []schema.MetricKey{"bugs", "coverage", "tests"}, cfg.CustomMetrics)
	assert.True(t, cfg.GraphSpec().IsCustom())
}

func TestProcessTimeRange(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	cfg := &Config{}
	input := &ConfigRawInput{Start: "2024-01-01", End: "2024-06-30T00:00:00Z", SelectDate: "1 month ago"}

	require.NoError(t, processTimeRange(cfg, input, now))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartTime)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), cfg.EndTime)
	assert.Equal(t, now.AddDate(0, -1, 0), cfg.SelectDate)

	w := cfg.DateWindow()
	require.NotNil(t, w.Start)
	require.NotNil(t, w.End)
}

func TestRevalidateGraph(t *testing.T) {
	base := &Config{
		Graph:            schema.GraphCustom,
		CustomMetrics:    []schema.MetricKey{"ncloc", "bugs"},
		MaxCustomMetrics: DefaultMaxCustomMetrics,
	}

	cfg := base.Clone()
	require.NoError(t, RevalidateGraph(cfg, "", "", "2024-01-01", "", ""))
	assert.Equal(t, []schema.MetricKey{"ncloc", "bugs"}, cfg.CustomMetrics)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartTime)

	cfg = base.Clone()
	require.NoError(t, RevalidateGraph(cfg, "coverage", "", "", "", ""))
	assert.Equal(t, schema.GraphCoverage, cfg.Graph)
	assert.Empty(t, cfg.CustomMetrics)

	x := 0.5
	cfg = base.Clone()
	cfg.Pointer = &x
	require.NoError(t, RevalidateGraph(cfg, "", "", "", "", "2024-01-02"))
	assert.Nil(t, cfg.Pointer)

	assert.Error(t, RevalidateGraph(base.Clone(), "pie", "", "", "", ""))
	assert.Error(t, RevalidateGraph(base.Clone(), "issues", "ncloc", "", "", ""))
	assert.Error(t, RevalidateGraph(base.Clone(), "", "", "2024-02-01", "2024-01-01", ""))
}

func TestConfigClone(t *testing.T) {
	x := 0.5
	cfg := &Config{CustomMetrics: []schema.MetricKey{"ncloc"}, Pointer: &x}
	clone := cfg.Clone()
	clone.CustomMetrics[0] = "bugs"
	*clone.Pointer = 0.9

	assert.Equal(t, schema.MetricKey("ncloc"), cfg.CustomMetrics[0])
	assert.Equal(t, 0.5, *cfg.Pointer)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		backend schema.DatabaseBackend
		connStr string
		wantErr bool
	}{
		{"sqlite empty", schema.SQLiteBackend, "", false},
		{"none", schema.NoneBackend, "", false},
		{"mysql valid", schema.MySQLBackend, "root:pw@tcp(localhost:3306)/activity", false},
		{"mysql no tcp", schema.MySQLBackend, "root:pw@localhost/activity", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=localhost dbname=activity", false},
		{"postgres no dbname", schema.PostgreSQLBackend, "host=localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.connStr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

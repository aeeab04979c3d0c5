package schema

import "time"

// MeasureRow is one stored measure value, flattened for export.
type MeasureRow struct {
	Project     string
	Branch      string
	AnalysisKey string
	Date        time.Time
	Metric      MetricKey
	Value       MeasureValue
}

// EventRow is one stored event, flattened for export.
type EventRow struct {
	Project     string
	Branch      string
	AnalysisKey string
	Date        time.Time
	Event       Event
}

// IngestSummary reports what an ingest run wrote.
type IngestSummary struct {
	Project  ProjectKey `json:"project"`
	Analyses int        `json:"analyses"`
	Measures int        `json:"measures"`
	Events   int        `json:"events"`
	Metrics  int        `json:"metrics"`
}

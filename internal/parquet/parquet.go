// Package parquet provides data structures and functions for exporting activity
// histories and series to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/activity/schema"
	"github.com/parquet-go/parquet-go"
)

// Measure is one stored metric value of an analysis.
// This struct maps to the activity_measures database table joined with its analysis.
type Measure struct {
	// Project and Branch identify the history the value belongs to
	Project string `parquet:"project,snappy"`
	Branch  string `parquet:"branch,snappy"`

	// AnalysisKey references the analysis the value was computed by
	AnalysisKey string `parquet:"analysis_key,snappy"`

	// AnalysisDate is when the analysis ran (stored as TIMESTAMP with nanosecond precision)
	AnalysisDate time.Time `parquet:"analysis_date,snappy"`

	// Metric is the metric key, e.g. "coverage"
	Metric string `parquet:"metric,snappy"`

	// ValueNum is set for numeric values (nullable)
	ValueNum *float64 `parquet:"value_num,optional,snappy"`

	// ValueText is set for string values such as a quality gate level (nullable)
	ValueText *string `parquet:"value_text,optional,snappy"`
}

// Event is one annotation attached to an analysis.
type Event struct {
	Project      string    `parquet:"project,snappy"`
	Branch       string    `parquet:"branch,snappy"`
	AnalysisKey  string    `parquet:"analysis_key,snappy"`
	AnalysisDate time.Time `parquet:"analysis_date,snappy"`
	EventKey     string    `parquet:"event_key,snappy"`
	Category     string    `parquet:"category,snappy"`
	Name         string    `parquet:"name,snappy"`
	Description  *string   `parquet:"description,optional,snappy"`
}

// SeriesPoint is one sample of a displayed series. Gaps have nil values.
type SeriesPoint struct {
	// Graph is the sub-graph index the series belongs to
	Graph int32 `parquet:"graph,snappy"`

	Series         string    `parquet:"series,snappy"`
	TranslatedName string    `parquet:"translated_name,snappy"`
	Date           time.Time `parquet:"date,snappy"`
	ValueNum       *float64  `parquet:"value_num,optional,snappy"`
	ValueText      *string   `parquet:"value_text,optional,snappy"`
}

// writeParquet writes rows to outputPath using struct schema inference.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// WriteMeasuresParquet writes a slice of Measure structs to a Parquet file.
func WriteMeasuresParquet(data []Measure, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteEventsParquet writes a slice of Event structs to a Parquet file.
func WriteEventsParquet(data []Event, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteSeriesParquet writes a slice of SeriesPoint structs to a Parquet file.
func WriteSeriesParquet(data []SeriesPoint, outputPath string) error {
	return writeParquet(data, outputPath)
}

// splitValue maps a measure value to its nullable numeric and text columns.
func splitValue(v *schema.MeasureValue) (*float64, *string) {
	if v == nil {
		return nil, nil
	}
	if f, ok := v.Float(); ok {
		return &f, nil
	}
	s := v.Text()
	return nil, &s
}

// ConvertMeasureRows converts schema.MeasureRow to Measure for Parquet export.
func ConvertMeasureRows(rows []schema.MeasureRow) []Measure {
	result := make([]Measure, len(rows))
	for i, row := range rows {
		num, text := splitValue(&row.Value)
		result[i] = Measure{
			Project:      row.Project,
			Branch:       row.Branch,
			AnalysisKey:  row.AnalysisKey,
			AnalysisDate: row.Date,
			Metric:       string(row.Metric),
			ValueNum:     num,
			ValueText:    text,
		}
	}
	return result
}

// ConvertEventRows converts schema.EventRow to Event for Parquet export.
func ConvertEventRows(rows []schema.EventRow) []Event {
	result := make([]Event, len(rows))
	for i, row := range rows {
		var desc *string
		if row.Event.Description != "" {
			d := row.Event.Description
			desc = &d
		}
		result[i] = Event{
			Project:      row.Project,
			Branch:       row.Branch,
			AnalysisKey:  row.AnalysisKey,
			AnalysisDate: row.Date,
			EventKey:     row.Event.Key,
			Category:     string(row.Event.Category),
			Name:         row.Event.Name,
			Description:  desc,
		}
	}
	return result
}

// ConvertSeriesGroups flattens series groups into one row per sample.
func ConvertSeriesGroups(groups [][]schema.Series) []SeriesPoint {
	var result []SeriesPoint
	for g, group := range groups {
		for _, s := range group {
			for _, p := range s.Data {
				num, text := splitValue(p.Y)
				result = append(result, SeriesPoint{
					Graph:          int32(g),
					Series:         string(s.Name),
					TranslatedName: s.TranslatedName,
					Date:           p.Date,
					ValueNum:       num,
					ValueText:      text,
				})
			}
		}
	}
	return result
}

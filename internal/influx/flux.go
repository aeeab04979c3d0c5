package influx

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/activity/schema"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
)

// fluxEscaper escapes what ends or interpolates a Flux string. Everything else,
// control characters included, is valid inside the literal as is.
var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`)

// fluxString quotes s as a Flux string literal.
func fluxString(s string) string {
	return `"` + fluxEscaper.Replace(s) + `"`
}

// projectFilter matches a measurement of one project branch.
func projectFilter(measurement, project, branch string) string {
	return fmt.Sprintf(`r._measurement == %s and r.project == %s and r.branch == %s`,
		fluxString(measurement), fluxString(project), fluxString(branch))
}

func analysesQuery(bucket, project, branch string) string {
	return fmt.Sprintf(`
		from(bucket: %s)
		  |> range(start: 0)
		  |> filter(fn: (r) => %s and r._field == "present")
		  |> group()
		  |> sort(columns: ["_time", "analysis"])
	`, fluxString(bucket), projectFilter(analysesMeasurement, project, branch))
}

func eventsQuery(bucket, project, branch string) string {
	return fmt.Sprintf(`
		from(bucket: %s)
		  |> range(start: 0)
		  |> filter(fn: (r) => %s)
		  |> pivot(rowKey: ["_time", "analysis", "event", "category"], columnKey: ["_field"], valueColumn: "_value")
		  |> group()
		  |> sort(columns: ["_time", "event"])
	`, fluxString(bucket), projectFilter(eventsMeasurement, project, branch))
}

// rangeBounds renders the Flux range of a window. Flux stops are exclusive,
// so an inclusive end moves one nanosecond later.
func rangeBounds(window *schema.DateWindow) string {
	start := "0"
	if window != nil && window.Start != nil {
		start = window.Start.UTC().Format(time.RFC3339Nano)
	}
	if window != nil && window.End != nil {
		return fmt.Sprintf("start: %s, stop: %s", start, window.End.Add(time.Nanosecond).UTC().Format(time.RFC3339Nano))
	}
	return "start: " + start
}

func metricFilter(metrics []schema.MetricKey) string {
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		parts[i] = "r.metric == " + fluxString(string(m))
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

func measuresQuery(bucket, project, branch string, metrics []schema.MetricKey, window *schema.DateWindow) string {
	return fmt.Sprintf(`
		from(bucket: %s)
		  |> range(%s)
		  |> filter(fn: (r) => %s and %s)
		  |> group(columns: ["metric"])
		  |> sort(columns: ["_time"])
	`, fluxString(bucket), rangeBounds(window), projectFilter(measuresMeasurement, project, branch), metricFilter(metrics))
}

func metricsQuery(bucket string, metrics []schema.MetricKey) string {
	return fmt.Sprintf(`
		from(bucket: %s)
		  |> range(start: 0)
		  |> filter(fn: (r) => r._measurement == %s and r._field == "name" and %s)
		  |> group()
		  |> distinct(column: "metric")
	`, fluxString(bucket), fluxString(metricsMeasurement), metricFilter(metrics))
}

// stringValue reads a string column of a record.
func stringValue(r *query.FluxRecord, column string) string {
	s, _ := r.ValueByKey(column).(string)
	return s
}

// parseAnalyses turns analysis records into analyses, ascending by date.
func parseAnalyses(records []*query.FluxRecord) []schema.Analysis {
	analyses := make([]schema.Analysis, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		key := stringValue(r, "analysis")
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		analyses = append(analyses, schema.Analysis{Key: key, Date: r.Time().UTC()})
	}
	sort.SliceStable(analyses, func(i, j int) bool { return analyses[i].Date.Before(analyses[j].Date) })
	return analyses
}

// attachEvents appends pivoted event records to their analyses.
func attachEvents(analyses []schema.Analysis, records []*query.FluxRecord) {
	index := make(map[string]int, len(analyses))
	for i, a := range analyses {
		index[a.Key] = i
	}
	for _, r := range records {
		i, ok := index[stringValue(r, "analysis")]
		if !ok {
			continue
		}
		analyses[i].Events = append(analyses[i].Events, schema.Event{
			Key:         stringValue(r, "event"),
			Category:    schema.EventCategory(stringValue(r, "category")),
			Name:        stringValue(r, "name"),
			Description: stringValue(r, "description"),
		})
	}
}

// parseMeasures groups measure records by metric, in the requested metric order.
func parseMeasures(records []*query.FluxRecord, metrics []schema.MetricKey) []schema.MeasureHistoryRecord {
	points := make(map[schema.MetricKey][]schema.HistoryPoint, len(metrics))
	for _, r := range records {
		metric := schema.MetricKey(stringValue(r, "metric"))
		var value schema.MeasureValue
		switch v := r.Value().(type) {
		case float64:
			value = schema.NumberValue(v)
		case int64:
			value = schema.NumberValue(float64(v))
		case string:
			value = schema.TextValue(v)
		default:
			continue
		}
		points[metric] = append(points[metric], schema.HistoryPoint{Date: r.Time().UTC(), Value: value})
	}

	result := make([]schema.MeasureHistoryRecord, 0, len(metrics))
	for _, m := range metrics {
		ps := points[m]
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Date.Before(ps[j].Date) })
		result = append(result, schema.MeasureHistoryRecord{Metric: m, Points: ps})
	}
	return result
}

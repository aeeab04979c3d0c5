// Package influx reads and writes project histories in an InfluxDB 2.x bucket.
//
// Layout in the bucket, all points stamped with the analysis date:
//
//	activity_analyses  tags: project, branch, analysis               field: present=1
//	activity_events    tags: project, branch, analysis, event, category  fields: name, description
//	activity_measures  tags: project, branch, analysis, metric        field: value (float) or text (string)
//	activity_metrics   tags: metric                                   fields: name, type, domain
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	analysesMeasurement = "activity_analyses"
	eventsMeasurement   = "activity_events"
	measuresMeasurement = "activity_measures"
	metricsMeasurement  = "activity_metrics"
)

// Options configure the InfluxDB connection.
type Options struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// queryRunner runs a Flux query and returns its records.
type queryRunner interface {
	Query(ctx context.Context, flux string) ([]*query.FluxRecord, error)
}

// pointWriter writes points synchronously; api.WriteAPIBlocking satisfies it.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Store is a HistoryFetcher and HistoryRecorder over an InfluxDB bucket.
type Store struct {
	client influxdb2.Client
	bucket string
	reads  queryRunner
	writes pointWriter

	mu    sync.Mutex
	dates map[analysisRef]time.Time // analyses recorded by this store
}

type analysisRef struct {
	key      schema.ProjectKey
	analysis string
}

var (
	_ contract.HistoryFetcher  = &Store{} // Compile-time check
	_ contract.HistoryRecorder = &Store{} // Compile-time check
)

// New connects to InfluxDB and verifies the server is reachable.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.URL == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("influx source requires a url and a bucket")
	}
	client := influxdb2.NewClient(opts.URL, opts.Token)
	ok, err := client.Ping(ctx)
	if err != nil || !ok {
		client.Close()
		if err == nil {
			err = fmt.Errorf("ping returned not ready")
		}
		return nil, fmt.Errorf("failed to connect to InfluxDB at %s: %w", opts.URL, err)
	}
	s := newStore(opts.Bucket, &apiRunner{client: client, org: opts.Org}, client.WriteAPIBlocking(opts.Org, opts.Bucket))
	s.client = client
	return s, nil
}

func newStore(bucket string, reads queryRunner, writes pointWriter) *Store {
	return &Store{
		bucket: bucket,
		reads:  reads,
		writes: writes,
		dates:  make(map[analysisRef]time.Time),
	}
}

// Close releases the client.
func (s *Store) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// apiRunner runs queries through the client's QueryAPI.
type apiRunner struct {
	client influxdb2.Client
	org    string
}

func (r *apiRunner) Query(ctx context.Context, flux string) ([]*query.FluxRecord, error) {
	result, err := r.client.QueryAPI(r.org).Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("InfluxDB query failed: %w", err)
	}
	defer func() { _ = result.Close() }()

	var records []*query.FluxRecord
	for result.Next() {
		records = append(records, result.Record())
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("error reading InfluxDB results: %w", result.Err())
	}
	return records, nil
}

// FetchAnalyses returns the analyses of a project branch with their events, ascending by date.
func (s *Store) FetchAnalyses(ctx context.Context, project, branch string) ([]schema.Analysis, error) {
	records, err := s.reads.Query(ctx, analysesQuery(s.bucket, project, branch))
	if err != nil {
		return nil, err
	}
	analyses := parseAnalyses(records)

	eventRecords, err := s.reads.Query(ctx, eventsQuery(s.bucket, project, branch))
	if err != nil {
		return nil, err
	}
	attachEvents(analyses, eventRecords)

	slog.Debug("Fetched analyses from InfluxDB", "project", project, "branch", branch, "analyses", len(analyses))
	return analyses, nil
}

// FetchHistory returns one record per requested metric. Metrics that are neither
// built in nor registered in the bucket fail with contract.ErrUnknownMetric.
func (s *Store) FetchHistory(ctx context.Context, project, branch string, metrics []schema.MetricKey, window *schema.DateWindow) ([]schema.MeasureHistoryRecord, error) {
	if len(metrics) == 0 {
		return []schema.MeasureHistoryRecord{}, nil
	}
	if err := s.requireMetrics(ctx, metrics); err != nil {
		return nil, err
	}
	records, err := s.reads.Query(ctx, measuresQuery(s.bucket, project, branch, metrics, window))
	if err != nil {
		return nil, err
	}
	return parseMeasures(records, metrics), nil
}

func (s *Store) requireMetrics(ctx context.Context, metrics []schema.MetricKey) error {
	var custom []schema.MetricKey
	for _, m := range metrics {
		if _, ok := schema.LookupMetric(m); !ok {
			custom = append(custom, m)
		}
	}
	if len(custom) == 0 {
		return nil
	}
	records, err := s.reads.Query(ctx, metricsQuery(s.bucket, custom))
	if err != nil {
		return err
	}
	known := make(map[schema.MetricKey]struct{}, len(records))
	for _, r := range records {
		known[schema.MetricKey(stringValue(r, "metric"))] = struct{}{}
	}
	for _, m := range custom {
		if _, ok := known[m]; !ok {
			return fmt.Errorf("metric %s: %w", m, contract.ErrUnknownMetric)
		}
	}
	return nil
}

// RegisterMetrics writes metric definitions to the bucket.
func (s *Store) RegisterMetrics(ctx context.Context, defs []schema.MetricDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(defs))
	for _, d := range defs {
		if d.Key == "" {
			return fmt.Errorf("metric definition without key")
		}
		points = append(points, influxdb2.NewPoint(metricsMeasurement,
			map[string]string{"metric": string(d.Key)},
			map[string]any{"name": d.Name, "type": string(d.Type), "domain": d.Domain},
			time.Unix(0, 0)))
	}
	return s.write(ctx, points)
}

// RecordAnalysis writes an analysis and its events.
func (s *Store) RecordAnalysis(ctx context.Context, key schema.ProjectKey, analysis schema.Analysis) error {
	if key.Project == "" {
		return contract.ErrNoProject
	}
	if analysis.Key == "" {
		return fmt.Errorf("analysis without key for %s", key)
	}
	points := []*write.Point{influxdb2.NewPoint(analysesMeasurement,
		analysisTags(key, analysis.Key),
		map[string]any{"present": 1},
		analysis.Date)}
	for i, e := range analysis.Events {
		eventKey := e.Key
		if eventKey == "" {
			eventKey = fmt.Sprintf("%s-%d", analysis.Key, i)
		}
		category := e.Category
		if category == "" {
			category = schema.OtherEvent
		}
		tags := analysisTags(key, analysis.Key)
		tags["event"] = eventKey
		tags["category"] = string(category)
		points = append(points, influxdb2.NewPoint(eventsMeasurement, tags,
			map[string]any{"name": e.Name, "description": e.Description},
			analysis.Date))
	}
	if err := s.write(ctx, points); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dates[analysisRef{key, analysis.Key}] = analysis.Date
	return nil
}

// RecordMeasures writes measure values of an analysis recorded earlier through this store.
func (s *Store) RecordMeasures(ctx context.Context, key schema.ProjectKey, analysisKey string, values map[schema.MetricKey]schema.MeasureValue) error {
	s.mu.Lock()
	date, ok := s.dates[analysisRef{key, analysisKey}]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("analysis %s of %s: %w", analysisKey, key, contract.ErrAnalysisNotFound)
	}

	points := make([]*write.Point, 0, len(values))
	for m, v := range values {
		tags := analysisTags(key, analysisKey)
		tags["metric"] = string(m)
		fields := map[string]any{}
		if f, ok := v.Float(); ok {
			fields["value"] = f
		} else {
			fields["text"] = v.Text()
		}
		points = append(points, influxdb2.NewPoint(measuresMeasurement, tags, fields, date))
	}
	return s.write(ctx, points)
}

func (s *Store) write(ctx context.Context, points []*write.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := s.writes.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("InfluxDB write failed: %w", err)
	}
	return nil
}

func analysisTags(key schema.ProjectKey, analysis string) map[string]string {
	return map[string]string{
		"project":  key.Project,
		"branch":   key.Branch,
		"analysis": analysis,
	}
}

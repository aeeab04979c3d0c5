package iocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// Table names for history storage.
const (
	metricsTable  = "activity_metrics"
	analysesTable = "activity_analyses"
	measuresTable = "activity_measures"
	eventsTable   = "activity_events"
)

// historyTables lists the history tables in dependency order.
var historyTables = []string{metricsTable, analysesTable, measuresTable, eventsTable}

// HistoryStoreImpl implements the HistoryStore interface over a SQL database.
type HistoryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
	now     func() time.Time
}

var _ contract.HistoryStore = &HistoryStoreImpl{} // Compile-time check

// NewHistoryStore opens the history database, migrates it to the latest schema
// and registers the built-in metric catalog.
func NewHistoryStore(backend schema.DatabaseBackend, connStr string) (contract.HistoryStore, error) {
	if backend == schema.NoneBackend {
		// Return a no-op store for disabled history
		return &HistoryStoreImpl{backend: backend, now: time.Now}, nil
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	db, err := openDB(backend, connStr, GetHistoryDBFilePath())
	if err != nil {
		return nil, err
	}
	if _, _, err := migrateDB(db, backend, -1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history tables: %w", err)
	}

	store := &HistoryStoreImpl{db: db, backend: backend, connStr: connStr, now: time.Now}
	if err := store.RegisterMetrics(context.Background(), schema.DefaultMetrics); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register default metrics: %w", err)
	}
	return store, nil
}

func (hs *HistoryStoreImpl) disabled() bool {
	return hs.backend == schema.NoneBackend || hs.db == nil
}

func (hs *HistoryStoreImpl) table(name string) string {
	return quoteTableName(name, hs.backend)
}

func (hs *HistoryStoreImpl) q(query string) string {
	return rebind(hs.backend, query)
}

// RegisterMetrics upserts metric definitions.
func (hs *HistoryStoreImpl) RegisterMetrics(ctx context.Context, defs []schema.MetricDefinition) error {
	if hs.disabled() || len(defs) == 0 {
		return nil
	}
	query := upsertQuery(hs.backend, metricsTable,
		[]string{"metric_key"},
		[]string{"metric_name", "metric_type", "metric_domain"})
	return hs.inTx(ctx, func(tx *sql.Tx) error {
		for _, d := range defs {
			if d.Key == "" {
				return fmt.Errorf("metric definition without key")
			}
			name := d.Name
			if name == "" {
				name = string(d.Key)
			}
			typ := d.Type
			if typ == "" {
				typ = schema.FloatMetric
			}
			if _, err := tx.ExecContext(ctx, query, string(d.Key), name, string(typ), d.Domain); err != nil {
				return fmt.Errorf("failed to register metric %s: %w", d.Key, err)
			}
		}
		return nil
	})
}

// ListMetrics returns every registered metric ordered by key.
func (hs *HistoryStoreImpl) ListMetrics(ctx context.Context) ([]schema.MetricDefinition, error) {
	if hs.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT metric_key, metric_name, metric_type, metric_domain FROM %s ORDER BY metric_key", hs.table(metricsTable))
	rows, err := hs.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.MetricDefinition
	for rows.Next() {
		var d schema.MetricDefinition
		var key, typ string
		if err := rows.Scan(&key, &d.Name, &typ, &d.Domain); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		d.Key = schema.MetricKey(key)
		d.Type = schema.MetricType(typ)
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}
	return results, nil
}

// RecordAnalysis upserts an analysis and replaces its events.
func (hs *HistoryStoreImpl) RecordAnalysis(ctx context.Context, key schema.ProjectKey, analysis schema.Analysis) error {
	if hs.disabled() {
		return nil
	}
	if key.Project == "" {
		return contract.ErrNoProject
	}
	if analysis.Key == "" {
		return fmt.Errorf("analysis without key for %s", key)
	}
	upsert := upsertQuery(hs.backend, analysesTable,
		[]string{"project", "branch", "analysis_key"},
		[]string{"analysis_date"})
	deleteEvents := hs.q(fmt.Sprintf("DELETE FROM %s WHERE project = ? AND branch = ? AND analysis_key = ?", hs.table(eventsTable)))

	return hs.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsert, key.Project, key.Branch, analysis.Key, toMillis(analysis.Date)); err != nil {
			return fmt.Errorf("failed to record analysis %s: %w", analysis.Key, err)
		}
		if _, err := tx.ExecContext(ctx, deleteEvents, key.Project, key.Branch, analysis.Key); err != nil {
			return fmt.Errorf("failed to reset events of %s: %w", analysis.Key, err)
		}
		for i, e := range analysis.Events {
			if _, err := hs.insertEvent(ctx, tx, key, analysis.Key, i, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordMeasures upserts measure values of one analysis. Every metric must be registered.
func (hs *HistoryStoreImpl) RecordMeasures(ctx context.Context, key schema.ProjectKey, analysisKey string, values map[schema.MetricKey]schema.MeasureValue) error {
	if hs.disabled() || len(values) == 0 {
		return nil
	}
	if err := hs.requireAnalysis(ctx, hs.db, key, analysisKey); err != nil {
		return err
	}
	metrics := make([]schema.MetricKey, 0, len(values))
	for m := range values {
		metrics = append(metrics, m)
	}
	if err := hs.requireMetrics(ctx, metrics); err != nil {
		return err
	}

	upsert := upsertQuery(hs.backend, measuresTable,
		[]string{"project", "branch", "analysis_key", "metric_key"},
		[]string{"value_num", "value_text", "fetched_at"})
	fetchedAt := toMillis(hs.now())
	return hs.inTx(ctx, func(tx *sql.Tx) error {
		for m, v := range values {
			var num sql.NullFloat64
			var text sql.NullString
			if f, ok := v.Float(); ok {
				num = sql.NullFloat64{Float64: f, Valid: true}
			} else {
				text = sql.NullString{String: v.Text(), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, upsert, key.Project, key.Branch, analysisKey, string(m), num, text, fetchedAt); err != nil {
				return fmt.Errorf("failed to record measure %s of %s: %w", m, analysisKey, err)
			}
		}
		return nil
	})
}

// AddEvent attaches an event to an existing analysis. The stored event gets a new key.
func (hs *HistoryStoreImpl) AddEvent(ctx context.Context, key schema.ProjectKey, analysisKey string, event schema.Event) (schema.Event, error) {
	if hs.disabled() {
		return event, fmt.Errorf("history store is disabled")
	}
	if event.Category == "" {
		event.Category = schema.OtherEvent
	}
	if _, ok := schema.ValidEventCategories[event.Category]; !ok {
		return event, fmt.Errorf("invalid event category '%s'", event.Category)
	}
	if strings.TrimSpace(event.Name) == "" {
		return event, fmt.Errorf("event name cannot be empty")
	}

	var stored schema.Event
	err := hs.inTx(ctx, func(tx *sql.Tx) error {
		if err := hs.requireAnalysis(ctx, tx, key, analysisKey); err != nil {
			return err
		}
		var order int
		query := hs.q(fmt.Sprintf("SELECT COALESCE(MAX(event_order), -1) + 1 FROM %s WHERE project = ? AND branch = ? AND analysis_key = ?", hs.table(eventsTable)))
		if err := tx.QueryRowContext(ctx, query, key.Project, key.Branch, analysisKey).Scan(&order); err != nil {
			return fmt.Errorf("failed to order event: %w", err)
		}
		event.Key = ""
		var err error
		stored, err = hs.insertEvent(ctx, tx, key, analysisKey, order, event)
		return err
	})
	return stored, err
}

// DeleteEvent removes an event. It returns contract.ErrEventNotFound for unknown keys.
func (hs *HistoryStoreImpl) DeleteEvent(ctx context.Context, key schema.ProjectKey, eventKey string) error {
	if hs.disabled() {
		return fmt.Errorf("history store is disabled")
	}
	query := hs.q(fmt.Sprintf("DELETE FROM %s WHERE project = ? AND branch = ? AND event_key = ?", hs.table(eventsTable)))
	res, err := hs.db.ExecContext(ctx, query, key.Project, key.Branch, eventKey)
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventKey, err)
	}
	if n == 0 {
		return fmt.Errorf("event %s of %s: %w", eventKey, key, contract.ErrEventNotFound)
	}
	return nil
}

// FetchAnalyses returns the analyses of a project branch with their events, ascending by date.
func (hs *HistoryStoreImpl) FetchAnalyses(ctx context.Context, project, branch string) ([]schema.Analysis, error) {
	if hs.disabled() {
		return nil, nil
	}
	query := hs.q(fmt.Sprintf("SELECT analysis_key, analysis_date FROM %s WHERE project = ? AND branch = ? ORDER BY analysis_date, analysis_key", hs.table(analysesTable)))
	rows, err := hs.db.QueryContext(ctx, query, project, branch)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	analyses := []schema.Analysis{}
	index := make(map[string]int)
	for rows.Next() {
		var a schema.Analysis
		var millis int64
		if err := rows.Scan(&a.Key, &millis); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		a.Date = fromMillis(millis)
		index[a.Key] = len(analyses)
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}

	events, err := hs.queryEvents(ctx, "WHERE e.project = ? AND e.branch = ?", project, branch)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if i, ok := index[e.AnalysisKey]; ok {
			analyses[i].Events = append(analyses[i].Events, e.Event)
		}
	}
	return analyses, nil
}

// FetchHistory returns one record per requested metric, points ascending by analysis date.
// It fails with contract.ErrUnknownMetric when a metric is not registered.
func (hs *HistoryStoreImpl) FetchHistory(ctx context.Context, project, branch string, metrics []schema.MetricKey, window *schema.DateWindow) ([]schema.MeasureHistoryRecord, error) {
	if hs.disabled() || len(metrics) == 0 {
		return nil, nil
	}
	if err := hs.requireMetrics(ctx, metrics); err != nil {
		return nil, err
	}

	args := []any{project, branch}
	for _, m := range metrics {
		args = append(args, string(m))
	}
	conds := []string{
		"m.project = ?",
		"m.branch = ?",
		fmt.Sprintf("m.metric_key IN (%s)", placeholders(len(metrics))),
	}
	if window != nil && window.Start != nil {
		conds = append(conds, "a.analysis_date >= ?")
		args = append(args, toMillis(*window.Start))
	}
	if window != nil && window.End != nil {
		conds = append(conds, "a.analysis_date <= ?")
		args = append(args, toMillis(*window.End))
	}
	query := hs.q(fmt.Sprintf(`SELECT m.metric_key, a.analysis_date, m.value_num, m.value_text
		FROM %s m JOIN %s a ON a.project = m.project AND a.branch = m.branch AND a.analysis_key = m.analysis_key
		WHERE %s
		ORDER BY m.metric_key, a.analysis_date, m.fetched_at`,
		hs.table(measuresTable), hs.table(analysesTable), strings.Join(conds, " AND ")))

	rows, err := hs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measure history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	points := make(map[schema.MetricKey][]schema.HistoryPoint, len(metrics))
	for rows.Next() {
		var metric string
		var millis int64
		var num sql.NullFloat64
		var text sql.NullString
		if err := rows.Scan(&metric, &millis, &num, &text); err != nil {
			return nil, fmt.Errorf("failed to scan measure: %w", err)
		}
		key := schema.MetricKey(metric)
		points[key] = append(points[key], schema.HistoryPoint{Date: fromMillis(millis), Value: scanValue(num, text)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating measures: %w", err)
	}

	records := make([]schema.MeasureHistoryRecord, 0, len(metrics))
	for _, m := range metrics {
		records = append(records, schema.MeasureHistoryRecord{Metric: m, Points: points[m]})
	}
	return records, nil
}

// ExportMeasures returns every stored measure value ordered by project, branch and date.
func (hs *HistoryStoreImpl) ExportMeasures(ctx context.Context) ([]schema.MeasureRow, error) {
	if hs.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT m.project, m.branch, m.analysis_key, a.analysis_date, m.metric_key, m.value_num, m.value_text
		FROM %s m JOIN %s a ON a.project = m.project AND a.branch = m.branch AND a.analysis_key = m.analysis_key
		ORDER BY m.project, m.branch, a.analysis_date, m.metric_key`,
		hs.table(measuresTable), hs.table(analysesTable))
	rows, err := hs.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query measures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.MeasureRow
	for rows.Next() {
		var r schema.MeasureRow
		var millis int64
		var metric string
		var num sql.NullFloat64
		var text sql.NullString
		if err := rows.Scan(&r.Project, &r.Branch, &r.AnalysisKey, &millis, &metric, &num, &text); err != nil {
			return nil, fmt.Errorf("failed to scan measure: %w", err)
		}
		r.Date = fromMillis(millis)
		r.Metric = schema.MetricKey(metric)
		r.Value = scanValue(num, text)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating measures: %w", err)
	}
	return results, nil
}

// ExportEvents returns every stored event.
func (hs *HistoryStoreImpl) ExportEvents(ctx context.Context) ([]schema.EventRow, error) {
	if hs.disabled() {
		return nil, nil
	}
	return hs.queryEvents(ctx, "")
}

// Close closes the underlying DB connection.
func (hs *HistoryStoreImpl) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the history store.
func (hs *HistoryStoreImpl) GetStatus() (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:    string(hs.backend),
		Connected:  hs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if hs.disabled() {
		return status, nil
	}

	analyses := hs.table(analysesTable)
	row := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(DISTINCT project), COUNT(*) FROM %s", analyses))
	if err := row.Scan(&status.TotalProjects, &status.TotalAnalyses); err != nil {
		return status, fmt.Errorf("failed to get total analyses: %w", err)
	}
	if status.TotalAnalyses > 0 {
		var oldest, latest int64
		row = hs.db.QueryRow(fmt.Sprintf("SELECT MIN(analysis_date), MAX(analysis_date) FROM %s", analyses))
		if err := row.Scan(&oldest, &latest); err != nil {
			return status, fmt.Errorf("failed to get analysis dates: %w", err)
		}
		status.OldestAnalysis = fromMillis(oldest)
		status.LatestAnalysis = fromMillis(latest)
	}

	for _, table := range historyTables {
		var count int64
		row = hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", hs.table(table)))
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalMeasures = int(status.TableSizes[measuresTable])
	status.TotalEvents = int(status.TableSizes[eventsTable])

	// Schema version recorded by golang-migrate
	row = hs.db.QueryRow(fmt.Sprintf("SELECT version, dirty FROM %s LIMIT 1", hs.table(migrationsTable)))
	var version int64
	if err := row.Scan(&version, &status.SchemaDirty); err == nil && version > 0 {
		status.SchemaVersion = uint(version)
	}
	return status, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// requireAnalysis fails with contract.ErrAnalysisNotFound when the analysis does not exist.
func (hs *HistoryStoreImpl) requireAnalysis(ctx context.Context, q queryer, key schema.ProjectKey, analysisKey string) error {
	query := hs.q(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE project = ? AND branch = ? AND analysis_key = ?", hs.table(analysesTable)))
	var n int
	if err := q.QueryRowContext(ctx, query, key.Project, key.Branch, analysisKey).Scan(&n); err != nil {
		return fmt.Errorf("failed to look up analysis %s: %w", analysisKey, err)
	}
	if n == 0 {
		return fmt.Errorf("analysis %s of %s: %w", analysisKey, key, contract.ErrAnalysisNotFound)
	}
	return nil
}

// requireMetrics fails with contract.ErrUnknownMetric naming the first unregistered metric.
func (hs *HistoryStoreImpl) requireMetrics(ctx context.Context, metrics []schema.MetricKey) error {
	args := make([]any, len(metrics))
	for i, m := range metrics {
		args[i] = string(m)
	}
	query := hs.q(fmt.Sprintf("SELECT metric_key FROM %s WHERE metric_key IN (%s)", hs.table(metricsTable), placeholders(len(metrics))))
	rows, err := hs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to look up metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	known := make(map[schema.MetricKey]struct{}, len(metrics))
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("failed to scan metric: %w", err)
		}
		known[schema.MetricKey(key)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating metrics: %w", err)
	}
	for _, m := range metrics {
		if _, ok := known[m]; !ok {
			return fmt.Errorf("metric %s: %w", m, contract.ErrUnknownMetric)
		}
	}
	return nil
}

func (hs *HistoryStoreImpl) insertEvent(ctx context.Context, tx *sql.Tx, key schema.ProjectKey, analysisKey string, order int, e schema.Event) (schema.Event, error) {
	if e.Key == "" {
		e.Key = uuid.NewString()
	}
	if e.Category == "" {
		e.Category = schema.OtherEvent
	}
	query := hs.q(fmt.Sprintf(`INSERT INTO %s (event_key, project, branch, analysis_key, event_order, category, name, description)
		VALUES (%s)`, hs.table(eventsTable), placeholders(8)))
	var desc sql.NullString
	if e.Description != "" {
		desc = sql.NullString{String: e.Description, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, query, e.Key, key.Project, key.Branch, analysisKey, order, string(e.Category), e.Name, desc); err != nil {
		return e, fmt.Errorf("failed to record event %s: %w", e.Name, err)
	}
	return e, nil
}

// queryEvents returns events joined with their analysis dates, filtered by where.
func (hs *HistoryStoreImpl) queryEvents(ctx context.Context, where string, args ...any) ([]schema.EventRow, error) {
	query := hs.q(fmt.Sprintf(`SELECT e.project, e.branch, e.analysis_key, a.analysis_date, e.event_key, e.category, e.name, e.description
		FROM %s e JOIN %s a ON a.project = e.project AND a.branch = e.branch AND a.analysis_key = e.analysis_key
		%s
		ORDER BY e.project, e.branch, a.analysis_date, e.event_order`,
		hs.table(eventsTable), hs.table(analysesTable), where))
	rows, err := hs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.EventRow
	for rows.Next() {
		var r schema.EventRow
		var millis int64
		var category string
		var desc sql.NullString
		if err := rows.Scan(&r.Project, &r.Branch, &r.AnalysisKey, &millis, &r.Event.Key, &category, &r.Event.Name, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		r.Date = fromMillis(millis)
		r.Event.Category = schema.EventCategory(category)
		r.Event.Description = desc.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return results, nil
}

func (hs *HistoryStoreImpl) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := hs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func scanValue(num sql.NullFloat64, text sql.NullString) schema.MeasureValue {
	if num.Valid {
		return schema.NumberValue(num.Float64)
	}
	return schema.TextValue(text.String)
}

// toMillis converts a time to unix milliseconds, the storage format of dates.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

package schema

// Custom string types for type safety.
type (
	// MetricKey identifies a metric, e.g. "coverage".
	MetricKey string

	// MetricType describes how a metric's values are formatted.
	MetricType string

	// GraphType is a predefined graph or the custom graph.
	GraphType string

	// EventCategory classifies analysis events.
	EventCategory string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for storage and caching.
	DatabaseBackend string

	// SourceKind selects where measure histories are fetched from.
	SourceKind string

	// ComposerState is the top-level state of a graph composer.
	ComposerState string
)

// Metric keys known to the predefined graphs.
const (
	MetricBugs                         MetricKey = "bugs"
	MetricCodeSmells                   MetricKey = "code_smells"
	MetricVulnerabilities              MetricKey = "vulnerabilities"
	MetricReliabilityRating            MetricKey = "reliability_rating"
	MetricSecurityRating               MetricKey = "security_rating"
	MetricSqaleRating                  MetricKey = "sqale_rating"
	MetricCoverage                     MetricKey = "coverage"
	MetricTests                        MetricKey = "tests"
	MetricLinesToCover                 MetricKey = "lines_to_cover"
	MetricUncoveredLines               MetricKey = "uncovered_lines"
	MetricDuplicatedLinesDensity       MetricKey = "duplicated_lines_density"
	MetricDuplicatedBlocks             MetricKey = "duplicated_blocks"
	MetricDuplicatedLines              MetricKey = "duplicated_lines"
	MetricNcloc                        MetricKey = "ncloc"
	MetricSqaleIndex                   MetricKey = "sqale_index"
	MetricReliabilityRemediationEffort MetricKey = "reliability_remediation_effort"
	MetricSecurityRemediationEffort    MetricKey = "security_remediation_effort"
	MetricAlertStatus                  MetricKey = "alert_status"
)

// Metric value types.
const (
	IntMetric     MetricType = "INT"
	FloatMetric   MetricType = "FLOAT"
	PercentMetric MetricType = "PERCENT"
	RatingMetric  MetricType = "RATING"
	WorkDurMetric MetricType = "WORK_DUR"
	LevelMetric   MetricType = "LEVEL"
)

// All graph types supported.
const (
	GraphIssues       GraphType = "issues" // default
	GraphCoverage     GraphType = "coverage"
	GraphDuplications GraphType = "duplications"
	GraphRemediation  GraphType = "remediation"
	GraphCustom       GraphType = "custom"
)

// All event categories supported.
const (
	VersionEvent          EventCategory = "VERSION"
	QualityGateEvent      EventCategory = "QUALITY_GATE"
	QualityProfileEvent   EventCategory = "QUALITY_PROFILE"
	DefinitionChangeEvent EventCategory = "DEFINITION_CHANGE"
	OtherEvent            EventCategory = "OTHER"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All history sources supported.
const (
	FixtureSource SourceKind = "fixture" // default
	SQLSource     SourceKind = "sql"
	InfluxSource  SourceKind = "influx"
)

// Composer states.
const (
	IdleState     ComposerState = "idle"
	LoadedState   ComposerState = "loaded"
	WindowedState ComposerState = "windowed"
)

// PredefinedGraphTypes lists the predefined graphs in display order.
var PredefinedGraphTypes = []GraphType{GraphIssues, GraphCoverage, GraphDuplications, GraphRemediation}

// ValidGraphTypes lists all valid graph types.
var ValidGraphTypes = map[GraphType]struct{}{
	GraphIssues:       {},
	GraphCoverage:     {},
	GraphDuplications: {},
	GraphRemediation:  {},
	GraphCustom:       {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidSourceKinds lists all valid history sources.
var ValidSourceKinds = map[SourceKind]struct{}{
	FixtureSource: {},
	SQLSource:     {},
	InfluxSource:  {},
}

// ValidEventCategories lists all valid event categories.
var ValidEventCategories = map[EventCategory]struct{}{
	VersionEvent:          {},
	QualityGateEvent:      {},
	QualityProfileEvent:   {},
	DefinitionChangeEvent: {},
	OtherEvent:            {},
}

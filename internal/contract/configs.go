package contract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/activity/schema"
)

// Default values for configuration.
const (
	DefaultMaxCustomMetrics = 3
	MaxCustomMetricsLimit   = 10
	DefaultPrecision        = 1
	DefaultAxisWidth        = 1.0
	DefaultCacheTTL         = 15 * time.Minute
	DefaultListenAddr       = "127.0.0.1:8420"
	DefaultFixturePath      = "activity.yaml"
)

// CacheVersion is bumped whenever the cached fetch payload changes shape.
const CacheVersion = 1

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration for the engine.
// This struct is the "final, validated" config.
type Config struct {
	Project string
	Branch  string

	Graph            schema.GraphType
	CustomMetrics    []schema.MetricKey
	MaxCustomMetrics int

	StartTime  time.Time // zero = unbounded
	EndTime    time.Time // zero = unbounded
	Pointer    *float64  // nil = no pointer
	AxisWidth  float64
	SelectDate time.Time // zero = no selection

	Source       schema.SourceKind
	FixturePath  string
	WatchFixture bool
	InfluxURL    string
	InfluxToken  string // Please use env var as this is plaintext
	InfluxOrg    string
	InfluxBucket string

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext
	CacheTTL       time.Duration

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	ListenAddr string
}

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Project          string `mapstructure:"project"`
	Branch           string `mapstructure:"branch"`
	Source           string `mapstructure:"source"`
	Fixture          string `mapstructure:"fixture"`
	HistoryBackend   string `mapstructure:"history-backend"`
	HistoryDBConnect string `mapstructure:"history-db-connect"`
	InfluxURL        string `mapstructure:"influx-url"`
	InfluxToken      string `mapstructure:"influx-token"`
	InfluxOrg        string `mapstructure:"influx-org"`
	InfluxBucket     string `mapstructure:"influx-bucket"`
	CacheBackend     string `mapstructure:"cache-backend"`
	CacheDBConnect   string `mapstructure:"cache-db-connect"`
	CacheTTL         string `mapstructure:"cache-ttl"`
	Output           string `mapstructure:"output"`
	OutputFile       string `mapstructure:"output-file"`
	Precision        int    `mapstructure:"precision"`
	Width            int    `mapstructure:"width"`
	Color            string `mapstructure:"color"`

	// --- Fields from graphCmd.Flags() ---
	Graph            string  `mapstructure:"graph"`
	Metrics          string  `mapstructure:"metrics"`
	MaxCustomMetrics int     `mapstructure:"max-custom-metrics"`
	Start            string  `mapstructure:"start"`
	End              string  `mapstructure:"end"`
	Pointer          string  `mapstructure:"pointer"`
	AxisWidth        float64 `mapstructure:"axis-width"`
	SelectDate       string  `mapstructure:"select-date"`

	// --- Fields from serveCmd.Flags() ---
	Listen string `mapstructure:"listen"`
	Watch  bool   `mapstructure:"watch"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.CustomMetrics != nil {
		clone.CustomMetrics = make([]schema.MetricKey, len(c.CustomMetrics))
		copy(clone.CustomMetrics, c.CustomMetrics)
	}
	if c.Pointer != nil {
		p := *c.Pointer
		clone.Pointer = &p
	}
	return &clone
}

// ProjectKey returns the configured project and branch.
func (c *Config) ProjectKey() schema.ProjectKey {
	return schema.ProjectKey{Project: c.Project, Branch: c.Branch}
}

// GraphSpec returns the graph spec selected by the configuration.
func (c *Config) GraphSpec() schema.GraphSpec {
	if c.Graph == schema.GraphCustom {
		return schema.Custom(c.CustomMetrics...)
	}
	return schema.Predefined(c.Graph)
}

// DateWindow returns the configured date window; zero bounds are unbounded.
func (c *Config) DateWindow() schema.DateWindow {
	return schema.NewDateWindow(c.StartTime, c.EndTime)
}

// PixelRange returns the pointer coordinate range of the axis.
func (c *Config) PixelRange() [2]float64 {
	return [2]float64{0, c.AxisWidth}
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processGraphSelection(cfg, input); err != nil {
		return err
	}
	if err := processTimeRange(cfg, input, time.Now()); err != nil {
		return err
	}
	if err := processPointer(cfg, input); err != nil {
		return err
	}
	if err := processSource(cfg, input); err != nil {
		return err
	}
	return validateBackendConfigs(cfg, input)
}

// RevalidateGraph re-applies the graph selection and the date bounds of a request
// (e.g. an MCP tool call) on top of an already validated config. Empty graph and
// metrics keep the configured selection.
func RevalidateGraph(cfg *Config, graph, metrics, start, end, selectDate string) error {
	input := &ConfigRawInput{
		Graph:            graph,
		Metrics:          metrics,
		MaxCustomMetrics: cfg.MaxCustomMetrics,
		Start:            start,
		End:              end,
		SelectDate:       selectDate,
	}
	if input.Graph == "" {
		input.Graph = string(cfg.Graph)
		if input.Metrics == "" && cfg.Graph == schema.GraphCustom {
			parts := make([]string, len(cfg.CustomMetrics))
			for i, m := range cfg.CustomMetrics {
				parts[i] = string(m)
			}
			input.Metrics = strings.Join(parts, ",")
		}
	}
	if err := processGraphSelection(cfg, input); err != nil {
		return err
	}
	if err := processTimeRange(cfg, input, time.Now()); err != nil {
		return err
	}
	if !cfg.SelectDate.IsZero() {
		cfg.Pointer = nil
	}
	return nil
}

// ProcessProfilingConfig enables profiling when a file prefix is given.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	profilePrefix = strings.TrimSpace(profilePrefix)
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes and validates the output related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Project = strings.TrimSpace(input.Project)
	cfg.Branch = strings.TrimSpace(input.Branch)
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.WatchFixture = input.Watch

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Precision < 0 || input.Precision > 4 {
		return fmt.Errorf("precision must be between 0 and 4 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("--output-file is required for parquet output")
	}

	if input.Width < 0 {
		return fmt.Errorf("width cannot be negative (received %d)", input.Width)
	}

	cfg.ListenAddr = strings.TrimSpace(input.Listen)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	return nil
}

// processGraphSelection handles the graph type and the custom metric list.
func processGraphSelection(cfg *Config, input *ConfigRawInput) error {
	cfg.Graph = schema.GraphType(strings.ToLower(strings.TrimSpace(input.Graph)))
	if cfg.Graph == "" {
		cfg.Graph = schema.GraphIssues
	}
	if _, ok := schema.ValidGraphTypes[cfg.Graph]; !ok {
		return fmt.Errorf("invalid graph '%s'. must be issues, coverage, duplications, remediation, custom", input.Graph)
	}

	cfg.MaxCustomMetrics = input.MaxCustomMetrics
	if cfg.MaxCustomMetrics == 0 {
		cfg.MaxCustomMetrics = DefaultMaxCustomMetrics
	}
	if cfg.MaxCustomMetrics < 1 || cfg.MaxCustomMetrics > MaxCustomMetricsLimit {
		return fmt.Errorf("max-custom-metrics must be between 1 and %d (received %d)", MaxCustomMetricsLimit, input.MaxCustomMetrics)
	}

	cfg.CustomMetrics = nil
	for _, m := range ParseMetricList(input.Metrics) {
		cfg.CustomMetrics = append(cfg.CustomMetrics, schema.MetricKey(m))
	}
	if len(cfg.CustomMetrics) > 0 && cfg.Graph != schema.GraphCustom {
		return fmt.Errorf("--metrics requires --graph custom (received --graph %s)", cfg.Graph)
	}
	// The most recently listed metrics win when the list exceeds the cap.
	cfg.CustomMetrics = schema.Custom(cfg.CustomMetrics...).Metrics()
	if n := len(cfg.CustomMetrics); n > cfg.MaxCustomMetrics {
		cfg.CustomMetrics = cfg.CustomMetrics[n-cfg.MaxCustomMetrics:]
	}
	return nil
}

// processTimeRange handles the date parsing and time range validation.
func processTimeRange(cfg *Config, input *ConfigRawInput, now time.Time) error {
	start, err := ParseDateBound(input.Start, now)
	if err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}
	end, err := ParseDateBound(input.End, now)
	if err != nil {
		return fmt.Errorf("invalid end: %w", err)
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("start time (%s) cannot be after end time (%s)", start.Format(DateTimeFormat), end.Format(DateTimeFormat))
	}
	cfg.StartTime = start
	cfg.EndTime = end

	sel, err := ParseDateBound(input.SelectDate, now)
	if err != nil {
		return fmt.Errorf("invalid select-date: %w", err)
	}
	cfg.SelectDate = sel
	return nil
}

// processPointer handles the pointer position and the axis width.
func processPointer(cfg *Config, input *ConfigRawInput) error {
	cfg.AxisWidth = input.AxisWidth
	if cfg.AxisWidth == 0 {
		cfg.AxisWidth = DefaultAxisWidth
	}
	if cfg.AxisWidth < 0 {
		return fmt.Errorf("axis-width must be positive (received %g)", input.AxisWidth)
	}

	cfg.Pointer = nil
	if s := strings.TrimSpace(input.Pointer); s != "" {
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid pointer '%s': %w", s, err)
		}
		cfg.Pointer = &x
	}
	if cfg.Pointer != nil && !cfg.SelectDate.IsZero() {
		return fmt.Errorf("--pointer and --select-date cannot be combined")
	}
	return nil
}

// processSource handles the history source selection.
func processSource(cfg *Config, input *ConfigRawInput) error {
	cfg.Source = schema.SourceKind(strings.ToLower(strings.TrimSpace(input.Source)))
	if cfg.Source == "" {
		cfg.Source = schema.FixtureSource
	}
	if _, ok := schema.ValidSourceKinds[cfg.Source]; !ok {
		return fmt.Errorf("invalid source '%s'. must be fixture, sql, influx", input.Source)
	}

	cfg.FixturePath = strings.TrimSpace(input.Fixture)
	if cfg.FixturePath == "" {
		cfg.FixturePath = DefaultFixturePath
	}

	cfg.InfluxURL = input.InfluxURL
	cfg.InfluxToken = input.InfluxToken
	cfg.InfluxOrg = input.InfluxOrg
	cfg.InfluxBucket = input.InfluxBucket
	if cfg.Source == schema.InfluxSource {
		if cfg.InfluxURL == "" || cfg.InfluxBucket == "" {
			return fmt.Errorf("influx source requires --influx-url and --influx-bucket")
		}
	}
	return nil
}

// validateBackendConfigs validates history and cache backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- History Backend Validation ---
	cfg.HistoryBackend = schema.DatabaseBackend(strings.ToLower(input.HistoryBackend))
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.HistoryBackend]; !ok {
		return fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", input.HistoryBackend)
	}
	cfg.HistoryDBConnect = input.HistoryDBConnect
	if err := ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return err
	}
	if cfg.Source == schema.SQLSource && cfg.HistoryBackend == schema.NoneBackend {
		return fmt.Errorf("sql source requires a history backend other than none")
	}

	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	cfg.CacheTTL = DefaultCacheTTL
	if input.CacheTTL != "" {
		ttl, err := ParseLookbackDuration(input.CacheTTL)
		if err != nil {
			return fmt.Errorf("invalid cache-ttl: %w", err)
		}
		cfg.CacheTTL = ttl
	}

	// Validate that cache and history use different SQLite files
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.HistoryBackend == schema.SQLiteBackend {
		cachePath := cfg.CacheDBConnect
		if cachePath == "" {
			cachePath = GetCacheDBFilePath()
		}
		historyPath := cfg.HistoryDBConnect
		if historyPath == "" {
			historyPath = GetHistoryDBFilePath()
		}
		if cachePath == historyPath && cachePath != ":memory:" {
			return fmt.Errorf("cache and history storage must use different SQLite database files. Both resolve to %q", cachePath)
		}
	}
	return nil
}

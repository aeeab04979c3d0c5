// Package cmd defines the command-line interface for activity.
package cmd

import (
	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the history subcommands to the parent history command
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().StringP("project", "p", "", "Project key to chart")
	rootCmd.PersistentFlags().StringP("branch", "b", "main", "Branch of the project")
	rootCmd.PersistentFlags().StringP("graph", "g", string(schema.GraphIssues), "Graph: issues or coverage or duplications or remediation or custom")
	rootCmd.PersistentFlags().String("metrics", "", "Comma-separated metric keys of the custom graph")
	rootCmd.PersistentFlags().Int("max-custom-metrics", contract.DefaultMaxCustomMetrics, "Maximum number of metrics on the custom graph")
	rootCmd.PersistentFlags().String("start", "", "Window start in ISO8601, YYYY-MM-DD or time ago")
	rootCmd.PersistentFlags().String("end", "", "Window end in ISO8601, YYYY-MM-DD or time ago")
	rootCmd.PersistentFlags().String("source", string(schema.FixtureSource), "History source: fixture or sql or influx")
	rootCmd.PersistentFlags().String("fixture", contract.DefaultFixturePath, "Path to the YAML fixture used by the fixture source and ingest")
	rootCmd.PersistentFlags().String("influx-url", "", "InfluxDB URL for the influx source")
	rootCmd.PersistentFlags().String("influx-token", "", "InfluxDB token (prefer ACTIVITY_INFLUX_TOKEN)")
	rootCmd.PersistentFlags().String("influx-org", "", "InfluxDB organization")
	rootCmd.PersistentFlags().String("influx-bucket", "", "InfluxDB bucket")
	rootCmd.PersistentFlags().String("history-backend", string(schema.SQLiteBackend), "History backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("history-db-connect", "", "Database connection string for the history store (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.NoneBackend), "Fetch cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("cache-ttl", "15 minutes", "How long fetched histories stay cached")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric values")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of graphCmd to Viper
	graphCmd.Flags().String("pointer", "", "Pointer position on the axis, between 0 and --axis-width")
	graphCmd.Flags().Float64("axis-width", contract.DefaultAxisWidth, "Width of the axis the pointer moves over")
	graphCmd.Flags().String("select-date", "", "Show the tooltip of the sample closest to this date")
	if err := viper.BindPFlags(graphCmd.Flags()); err != nil {
		contract.LogFatal("Error binding graph flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen", contract.DefaultListenAddr, "Address the HTTP server listens on")
	serveCmd.Flags().Bool("watch", false, "Reload sessions when the fixture file changes")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of historyMigrateCmd to Viper
	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(historyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history migrate flags", err)
	}
}

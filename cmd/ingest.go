package cmd

import (
	"github.com/huangsam/activity/core"
	"github.com/huangsam/activity/internal/contract"
	"github.com/spf13/cobra"
)

// ingestCmd writes a fixture into a durable history backend.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a YAML fixture into the history store",
	Long: `Write the projects, analyses, events and measures of a YAML fixture into
the configured history store, or into InfluxDB when --source influx is set.

Ingesting is idempotent: analyses and measures are upserted by key, and the
events of an ingested analysis are replaced.

Examples:
  # Ingest into the default SQLite history store
  activity ingest --fixture history.yaml

  # Ingest into PostgreSQL
  ACTIVITY_HISTORY_BACKEND=postgresql ACTIVITY_HISTORY_DB_CONNECT="host=... dbname=..." activity ingest --fixture history.yaml

  # Ingest into InfluxDB
  activity ingest --source influx --influx-url http://localhost:8086 --influx-bucket activity`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteIngest(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot ingest fixture", err)
		}
	},
}

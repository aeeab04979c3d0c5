package cmd

import (
	"github.com/huangsam/activity/core"
	"github.com/huangsam/activity/internal/contract"
	"github.com/spf13/cobra"
)

// metricsCmd displays the predefined graphs and the known metrics.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display the predefined graphs and the metrics they chart",
	Long: `Show every predefined graph with its sub-graphs and breakdown metrics,
followed by every metric that can be charted.

Metrics registered in the history store (e.g. by 'activity ingest') are
listed after the built-in ones.

No history is loaded - this is purely informational.

Examples:
  # Show the graph catalog
  activity metrics

  # Export the catalog as JSON
  activity metrics --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteMetrics(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot display metrics", err)
		}
	},
}

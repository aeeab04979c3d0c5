package cmd

import (
	"github.com/huangsam/activity/core"
	"github.com/huangsam/activity/internal/contract"
	"github.com/spf13/cobra"
)

// graphCmd builds one activity graph.
var graphCmd = &cobra.Command{
	Use:   "graph [project]",
	Short: "Show how a project's measures evolved across analyses.",
	Long: `Load the analysis history of a project branch and print its activity graph.

Each predefined graph shows a fixed set of metrics, split in sub-graphs that share
one time axis. Gaps are kept where an analysis has no value for a metric, and the
events of every analysis (versions, quality gate changes) are listed on the axis.

The graph can be:
- Narrowed to a date window (--start, --end)
- Inspected at a pointer position (--pointer) or at a date (--select-date)
- Assembled from any known metrics (--graph custom --metrics ...)

Examples:
  # Show the issues graph of a project
  activity graph acme

  # Coverage over the last six months
  activity graph acme --graph coverage --start "6 months ago"

  # Inspect the values closest to a release date
  activity graph acme --graph coverage --select-date 2024-03-01

  # Chart custom metrics and export them for a notebook
  activity graph acme --graph custom --metrics ncloc,bugs --output parquet --output-file acme.parquet`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteGraph(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot build graph", err)
		}
	},
}

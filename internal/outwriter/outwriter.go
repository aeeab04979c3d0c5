// Package outwriter has output and writer logic.
package outwriter

import (
	"os"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"golang.org/x/term"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteGraph prints a displayed graph using the configured output format.
func (ow *OutWriter) WriteGraph(result schema.GraphResult, cfg *contract.Config, duration time.Duration) error {
	return PrintGraphResults(result, cfg, duration)
}

// WriteMetrics prints the graph and metric catalog using the configured output format.
func (ow *OutWriter) WriteMetrics(renderModel *schema.MetricsRenderModel, cfg *contract.Config) error {
	return PrintMetricsDefinitions(renderModel, cfg)
}

// WriteIngest prints the summary of an ingest run using the configured output format.
func (ow *OutWriter) WriteIngest(summaries []schema.IngestSummary, cfg *contract.Config, duration time.Duration) error {
	return PrintIngestResults(summaries, cfg, duration)
}

// GetMaxTableLabelWidth calculates the maximum width for series labels in table output
// based on terminal width and the number of value columns.
func GetMaxTableLabelWidth(cfg *contract.Config, valueColumns int) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Date column plus borders
	baseWidth := 28
	baseWidth += valueColumns * 14

	available := termWidth - baseWidth
	if available < 12 {
		return 12
	}
	if available > 40 {
		return 40
	}
	return available
}

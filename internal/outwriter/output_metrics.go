package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// getDisplayNameForGraph returns the display name with emoji for a given graph type.
func getDisplayNameForGraph(graph schema.GraphType) string {
	switch graph {
	case schema.GraphIssues:
		return "🐞 ISSUES"
	case schema.GraphCoverage:
		return "🧪 COVERAGE"
	case schema.GraphDuplications:
		return "📑 DUPLICATIONS"
	case schema.GraphRemediation:
		return "🛠️  REMEDIATION"
	default:
		return strings.ToUpper(string(graph))
	}
}

// PrintMetricsDefinitions displays the predefined graphs and the metric catalog.
// This is a static display that does not fetch any history.
func PrintMetricsDefinitions(renderModel *schema.MetricsRenderModel, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, renderModel)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVMetrics(w, renderModel)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return printMetricsText(w, renderModel)
		}, "Wrote text")
	}
}

// printMetricsText displays the catalog in human-readable text format.
func printMetricsText(w io.Writer, renderModel *schema.MetricsRenderModel) error {
	if _, err := fmt.Fprintf(w, "📈 %s\n", renderModel.Title); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", len(renderModel.Title)+3)); err != nil {
		return err
	}

	for _, g := range renderModel.Graphs {
		if _, err := fmt.Fprintf(w, "%s\n", getDisplayNameForGraph(g.Type)); err != nil {
			return err
		}
		for i, sub := range g.SubGraphs {
			if _, err := fmt.Fprintf(w, "   Sub-graph %d: %s\n", i+1, joinMetrics(sub)); err != nil {
				return err
			}
		}
		if len(g.Breakdown) > 0 {
			if _, err := fmt.Fprintf(w, "   Breakdown: %s\n", joinMetrics(g.Breakdown)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "%s: any %d metrics, one sub-graph per metric type\n\n", getDisplayNameForGraph(schema.GraphCustom), renderModel.MaxCustomMetrics); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, "📏 Metrics"); err != nil {
		return err
	}
	for _, m := range renderModel.Metrics {
		if _, err := fmt.Fprintf(w, "   %-32s %-32s %-9s %s\n", m.Key, m.Name, m.Type, m.Domain); err != nil {
			return err
		}
	}
	return nil
}

// writeCSVMetrics writes one row per metric with the graphs that display it.
func writeCSVMetrics(w io.Writer, renderModel *schema.MetricsRenderModel) error {
	usedBy := make(map[schema.MetricKey][]string)
	for _, g := range renderModel.Graphs {
		for _, sub := range g.SubGraphs {
			for _, m := range sub {
				usedBy[m] = append(usedBy[m], string(g.Type))
			}
		}
		for _, m := range g.Breakdown {
			usedBy[m] = append(usedBy[m], string(g.Type)+"*")
		}
	}

	header := []string{"key", "name", "type", "domain", "graphs"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, m := range renderModel.Metrics {
			record := []string{string(m.Key), m.Name, string(m.Type), m.Domain, strings.Join(usedBy[m.Key], "|")}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}

package outwriter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/internal/parquet"
	"github.com/huangsam/activity/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintGraphResults outputs a displayed graph, dispatching based on the output format configured.
func PrintGraphResults(result schema.GraphResult, cfg *contract.Config, duration time.Duration) error {
	fmtValue, rawValue := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSONResultsForGraph(w, result)
		}, "Wrote JSON graph"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVResultsForGraph(w, result, rawValue)
		}, "Wrote CSV graph"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := parquet.WriteSeriesParquet(parquet.ConvertSeriesGroups(result.SeriesGroups), cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote Parquet graph to %s\n", cfg.OutputFile)
	default:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return WriteGraphResults(w, result, cfg, fmtValue, duration)
		}, "Wrote text graph"); err != nil {
			return fmt.Errorf("error writing graph table output: %w", err)
		}
	}
	return nil
}

// WriteGraphResults writes the human-readable tables of a displayed graph:
// one table per sub-graph, then the tooltip when one is shown.
func WriteGraphResults(w io.Writer, result schema.GraphResult, cfg *contract.Config, fmtValue contract.ValueFormatter, duration time.Duration) error {
	if _, err := fmt.Fprintf(w, "📈 %s: %s graph (%s)\n", result.Project, result.Spec, result.State); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Window: %s | Analyses: %d\n", formatWindow(result.Window), result.Analyses); err != nil {
		return err
	}
	if result.Error != "" {
		if _, err := fmt.Fprintf(w, "⚠️  %s\n", result.Error); err != nil {
			return err
		}
	}
	if len(result.Dropped) > 0 {
		if _, err := fmt.Fprintf(w, "Dropped unknown metrics: %s\n", joinMetrics(result.Dropped)); err != nil {
			return err
		}
	}

	if !result.HasData {
		if _, err := fmt.Fprintln(w, "No history data to display."); err != nil {
			return err
		}
	} else {
		eventsByDate := groupEvents(result.Events, cfg.UseColors)
		for i, group := range result.SeriesGroups {
			if len(result.SeriesGroups) > 1 {
				if _, err := fmt.Fprintf(w, "\nSub-graph %d\n", i+1); err != nil {
					return err
				}
			}
			if err := writeSeriesTable(w, group, eventsByDate, cfg, fmtValue); err != nil {
				return err
			}
		}
	}

	if result.TooltipDetails != nil {
		if err := writeTooltipTable(w, result.TooltipDetails, cfg); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "Graph built in %v. Source: %s. Cache backend: %s\n", duration, cfg.Source, cfg.CacheBackend)
	return err
}

// writeSeriesTable prints a sub-graph with one row per axis date and one column per series.
func writeSeriesTable(w io.Writer, group []schema.Series, eventsByDate map[int64][]string, cfg *contract.Config, fmtValue contract.ValueFormatter) error {
	table := tablewriter.NewWriter(w)

	labelWidth := GetMaxTableLabelWidth(cfg, len(group))
	headers := []string{"Date"}
	for _, s := range group {
		headers = append(headers, contract.TruncateString(s.TranslatedName, labelWidth))
	}
	headers = append(headers, "Events")
	table.Header(headers)

	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	if len(group) > 0 {
		for j, p := range group[0].Data {
			row := []string{p.Date.Format(contract.DateTimeFormat)}
			for _, s := range group {
				row = append(row, formatCell(s.Name, s.Data[j].Y, cfg.UseColors, fmtValue))
			}
			row = append(row, strings.Join(eventsByDate[p.Date.UnixMilli()], ", "))
			data = append(data, row)
		}
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeTooltipTable prints the values, breakdown and events at the selected date.
func writeTooltipTable(w io.Writer, tip *schema.TooltipPayload, cfg *contract.Config) error {
	if _, err := fmt.Fprintf(w, "\n🔎 Tooltip at %s (sub-graph %d, point %d)\n", tip.Date.Format(contract.DateTimeFormat), tip.Graph+1, tip.Index+1); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "Value"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, v := range tip.Values {
		data = append(data, []string{v.TranslatedName, tooltipCell(v, cfg.UseColors)})
	}
	for _, v := range tip.Breakdown {
		data = append(data, []string{v.TranslatedName + " *", tooltipCell(v, cfg.UseColors)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, e := range tip.Events {
		label := fmt.Sprintf("[%s] %s", e.Category, e.Name)
		if cfg.UseColors {
			label = contract.EventColor.Sprint(label)
		}
		line := "  " + label
		if e.Description != "" {
			line += ": " + e.Description
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// formatCell renders one sample, showing gaps as a dash.
func formatCell(metric schema.MetricKey, v *schema.MeasureValue, useColors bool, fmtValue contract.ValueFormatter) string {
	if v == nil {
		if useColors {
			return contract.GapColor.Sprint("-")
		}
		return "-"
	}
	return colorValue(metric, fmtValue(metric, *v), useColors)
}

func tooltipCell(v schema.TooltipValue, useColors bool) string {
	if v.Value == nil {
		return "-"
	}
	return colorValue(v.Metric, v.Formatted, useColors)
}

// groupEvents indexes event labels by the millisecond instant of their analysis.
func groupEvents(events []schema.AxisEvent, useColors bool) map[int64][]string {
	out := make(map[int64][]string, len(events))
	for _, e := range events {
		label := e.Event.Name
		if useColors {
			label = contract.EventColor.Sprint(label)
		}
		k := e.Date.UnixMilli()
		out[k] = append(out[k], label)
	}
	return out
}

func formatWindow(win schema.DateWindow) string {
	if win.IsZero() {
		return "all dates"
	}
	start, end := "open", "open"
	if win.Start != nil {
		start = win.Start.Format(contract.DateTimeFormat)
	}
	if win.End != nil {
		end = win.End.Format(contract.DateTimeFormat)
	}
	return start + " → " + end
}

func joinMetrics(metrics []schema.MetricKey) string {
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}

package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintIngestResults outputs what an ingest run wrote, dispatching based on the output format configured.
func PrintIngestResults(summaries []schema.IngestSummary, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, summaries)
		}, "Wrote JSON ingest summary")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVResultsForIngest(w, summaries)
		}, "Wrote CSV ingest summary")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return WriteIngestTable(w, summaries, cfg, duration)
		}, "Wrote ingest summary")
	}
}

// WriteIngestTable prints one row per ingested project branch.
func WriteIngestTable(w io.Writer, summaries []schema.IngestSummary, cfg *contract.Config, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Project", "Analyses", "Measures", "Events", "Metrics"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, s := range summaries {
		data = append(data, ingestRecord(s))
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Ingest completed in %v. History backend: %s\n", duration, cfg.HistoryBackend)
	return err
}

func writeCSVResultsForIngest(w io.Writer, summaries []schema.IngestSummary) error {
	header := []string{"project", "analyses", "measures", "events", "metrics"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, s := range summaries {
			if err := cw.Write(ingestRecord(s)); err != nil {
				return err
			}
		}
		return nil
	})
}

func ingestRecord(s schema.IngestSummary) []string {
	return []string{
		s.Project.String(),
		strconv.Itoa(s.Analyses),
		strconv.Itoa(s.Measures),
		strconv.Itoa(s.Events),
		strconv.Itoa(s.Metrics),
	}
}

package iocache

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/activity/internal/parquet"
)

// ExecuteHistoryExport exports the measures and events of the history store to Parquet files.
func ExecuteHistoryExport(ctx context.Context, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	store := Manager.GetHistoryStore()
	if store == nil {
		return errors.New("history store is not initialized")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalAnalyses == 0 {
		return errors.New("no history data found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total analyses: %d\n", status.TotalAnalyses)
	fmt.Printf("Total measures: %d\n", status.TotalMeasures)

	measures, err := store.ExportMeasures(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve measures: %w", err)
	}
	events, err := store.ExportEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve events: %w", err)
	}

	measuresFile := outputFile + ".measures.parquet"
	if err := parquet.WriteMeasuresParquet(parquet.ConvertMeasureRows(measures), measuresFile); err != nil {
		return fmt.Errorf("failed to write measures: %w", err)
	}
	fmt.Printf("Exported %d measures to: %s\n", len(measures), measuresFile)

	eventsFile := outputFile + ".events.parquet"
	if err := parquet.WriteEventsParquet(parquet.ConvertEventRows(events), eventsFile); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}
	fmt.Printf("Exported %d events to: %s\n", len(events), eventsFile)

	fmt.Println("\nExport complete! The Parquet files can be used with:")
	fmt.Println("  - Apache Spark")
	fmt.Println("  - Pandas (via pyarrow)")
	fmt.Println("  - DuckDB")
	return nil
}

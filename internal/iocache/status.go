package iocache

import (
	"fmt"
	"sort"

	"github.com/huangsam/activity/schema"
)

// PrintCacheStatus prints cache status information.
func PrintCacheStatus(status schema.CacheStatus) {
	fmt.Printf("Cache Backend: %s\n", status.Backend)
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	fmt.Printf("Total Entries: %d\n", status.TotalEntries)
	if status.TotalEntries > 0 {
		fmt.Printf("Last Entry: %s\n", status.LastEntryTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("Oldest Entry: %s\n", status.OldestEntryTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Table Size: %d bytes\n", status.TableSizeBytes)
}

// PrintHistoryStatus prints history store status information.
func PrintHistoryStatus(status schema.HistoryStatus) {
	fmt.Printf("History Backend: %s\n", status.Backend)
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	fmt.Printf("Schema Version: %d", status.SchemaVersion)
	if status.SchemaDirty {
		fmt.Print(" (dirty)")
	}
	fmt.Println()
	fmt.Printf("Projects: %d\n", status.TotalProjects)
	fmt.Printf("Total Analyses: %d\n", status.TotalAnalyses)
	if status.TotalAnalyses > 0 {
		fmt.Printf("Latest Analysis: %s\n", status.LatestAnalysis.Format("2006-01-02 15:04:05"))
		fmt.Printf("Oldest Analysis: %s\n", status.OldestAnalysis.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Total Measures: %d\n", status.TotalMeasures)
	fmt.Printf("Total Events: %d\n", status.TotalEvents)

	tables := make([]string, 0, len(status.TableSizes))
	for table := range status.TableSizes {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	fmt.Println("Table Sizes:")
	for _, table := range tables {
		fmt.Printf("  %s: %d rows\n", table, status.TableSizes[table])
	}
}

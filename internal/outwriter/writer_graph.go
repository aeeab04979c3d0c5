package outwriter

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// writeJSONResultsForGraph marshals the schema.GraphResult to JSON and writes it.
func writeJSONResultsForGraph(w io.Writer, result schema.GraphResult) error {
	return writeJSON(w, result)
}

// writeCSVResultsForGraph writes one row per series sample. Gaps have an empty value.
func writeCSVResultsForGraph(w io.Writer, result schema.GraphResult, rawValue func(*schema.MeasureValue) string) error {
	header := []string{"graph", "metric", "name", "date", "value", "events"}
	eventsByDate := groupEvents(result.Events, false)

	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, group := range result.SeriesGroups {
			for _, s := range group {
				for _, p := range s.Data {
					row := []string{
						strconv.Itoa(i),
						string(s.Name),
						s.TranslatedName,
						p.Date.Format(contract.DateTimeFormat),
						rawValue(p.Y),
						strings.Join(eventsByDate[p.Date.UnixMilli()], "|"),
					}
					if err := cw.Write(row); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

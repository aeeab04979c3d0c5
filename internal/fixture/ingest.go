package fixture

import (
	"context"
	"fmt"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// Ingest writes every project of the source into store and reports what was written.
// Analyses are upserted, so ingesting the same fixture twice is harmless.
func Ingest(ctx context.Context, store contract.HistoryRecorder, src *Source) ([]schema.IngestSummary, error) {
	src.mu.RLock()
	projects := append([]Project(nil), src.file.Projects...)
	src.mu.RUnlock()

	summaries := make([]schema.IngestSummary, 0, len(projects))
	for _, p := range projects {
		key := schema.ProjectKey{Project: p.Project, Branch: p.Branch}
		summary := schema.IngestSummary{Project: key}

		if len(p.Metrics) > 0 {
			if err := store.RegisterMetrics(ctx, p.Metrics); err != nil {
				return summaries, fmt.Errorf("register metrics of %s: %w", key, err)
			}
			summary.Metrics = len(p.Metrics)
		}

		for _, a := range p.Analyses {
			analysis := schema.Analysis{Key: a.Key, Date: a.Date, Events: a.Events}
			if err := store.RecordAnalysis(ctx, key, analysis); err != nil {
				return summaries, fmt.Errorf("ingest %s: %w", key, err)
			}
			summary.Analyses++
			summary.Events += len(a.Events)

			if len(a.Measures) == 0 {
				continue
			}
			if err := store.RecordMeasures(ctx, key, a.Key, a.Measures); err != nil {
				return summaries, fmt.Errorf("ingest %s: %w", key, err)
			}
			summary.Measures += len(a.Measures)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

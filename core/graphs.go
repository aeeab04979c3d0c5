package core

import (
	"fmt"
	"slices"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// DefaultMaxCustomMetrics is the number of metrics a custom graph displays at once.
const DefaultMaxCustomMetrics = contract.DefaultMaxCustomMetrics

// GraphDefinition is the fixed metric table of a predefined graph.
type GraphDefinition struct {
	Type      schema.GraphType     `json:"type"`
	SubGraphs [][]schema.MetricKey `json:"subGraphs"`
	Breakdown []schema.MetricKey   `json:"breakdown,omitempty"`
}

// GraphDefinitionFor returns the metric table of a predefined graph type.
// The custom graph and unknown types have no fixed table.
func GraphDefinitionFor(graph schema.GraphType) (GraphDefinition, bool) {
	switch graph {
	case schema.GraphIssues:
		return GraphDefinition{
			Type:      graph,
			SubGraphs: [][]schema.MetricKey{{schema.MetricBugs, schema.MetricCodeSmells, schema.MetricVulnerabilities}},
			Breakdown: []schema.MetricKey{schema.MetricReliabilityRating, schema.MetricSecurityRating, schema.MetricSqaleRating},
		}, true
	case schema.GraphCoverage:
		return GraphDefinition{
			Type:      graph,
			SubGraphs: [][]schema.MetricKey{{schema.MetricCoverage}, {schema.MetricTests}},
			Breakdown: []schema.MetricKey{schema.MetricLinesToCover, schema.MetricUncoveredLines},
		}, true
	case schema.GraphDuplications:
		return GraphDefinition{
			Type:      graph,
			SubGraphs: [][]schema.MetricKey{{schema.MetricDuplicatedLinesDensity}, {schema.MetricDuplicatedBlocks}},
			Breakdown: []schema.MetricKey{schema.MetricNcloc, schema.MetricDuplicatedLines},
		}, true
	case schema.GraphRemediation:
		return GraphDefinition{
			Type: graph,
			SubGraphs: [][]schema.MetricKey{{
				schema.MetricSqaleIndex,
				schema.MetricReliabilityRemediationEffort,
				schema.MetricSecurityRemediationEffort,
			}},
		}, true
	case schema.GraphCustom:
		return GraphDefinition{}, false
	default:
		return GraphDefinition{}, false
	}
}

// PredefinedGraphs returns the metric tables of every predefined graph in display order.
func PredefinedGraphs() []GraphDefinition {
	defs := make([]GraphDefinition, 0, len(schema.PredefinedGraphTypes))
	for _, g := range schema.PredefinedGraphTypes {
		if def, ok := GraphDefinitionFor(g); ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// SubGraphMetrics returns the metrics of each sub-graph of spec.
// Custom metrics each get their own sub-graph, keeping the newest maxCustom.
func SubGraphMetrics(spec schema.GraphSpec, maxCustom int) [][]schema.MetricKey {
	if spec.IsCustom() {
		metrics := CapCustomMetrics(spec.Metrics(), maxCustom)
		groups := make([][]schema.MetricKey, len(metrics))
		for i, m := range metrics {
			groups[i] = []schema.MetricKey{m}
		}
		return groups
	}
	def, ok := GraphDefinitionFor(spec.Graph())
	if !ok {
		return nil
	}
	return def.SubGraphs
}

// BreakdownMetrics returns the tooltip-only metrics of spec.
func BreakdownMetrics(spec schema.GraphSpec) []schema.MetricKey {
	if spec.IsCustom() {
		return nil
	}
	def, _ := GraphDefinitionFor(spec.Graph())
	return def.Breakdown
}

// RequiredMetrics returns every metric needed to display spec, displayed metrics first.
func RequiredMetrics(spec schema.GraphSpec, maxCustom int) []schema.MetricKey {
	var out []schema.MetricKey
	for _, group := range SubGraphMetrics(spec, maxCustom) {
		out = append(out, group...)
	}
	for _, m := range BreakdownMetrics(spec) {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

// CapCustomMetrics keeps the newest maxCustom metrics. Metrics are ordered oldest first.
func CapCustomMetrics(metrics []schema.MetricKey, maxCustom int) []schema.MetricKey {
	if maxCustom <= 0 {
		maxCustom = DefaultMaxCustomMetrics
	}
	if len(metrics) <= maxCustom {
		return metrics
	}
	return metrics[len(metrics)-maxCustom:]
}

// WithCustomMetric returns spec with metric appended, evicting the oldest metric on overflow.
// Adding a metric that is already present returns spec unchanged.
func WithCustomMetric(spec schema.GraphSpec, metric schema.MetricKey, maxCustom int) (schema.GraphSpec, error) {
	if !spec.IsCustom() {
		return spec, fmt.Errorf("cannot add %s to %s: %w", metric, spec, contract.ErrNotCustomGraph)
	}
	metrics := spec.Metrics()
	if metric == "" || slices.Contains(metrics, metric) {
		return spec, nil
	}
	return schema.Custom(CapCustomMetrics(append(metrics, metric), maxCustom)...), nil
}

// WithoutCustomMetric returns spec without metric. Removing an absent metric returns spec unchanged.
func WithoutCustomMetric(spec schema.GraphSpec, metric schema.MetricKey) (schema.GraphSpec, error) {
	if !spec.IsCustom() {
		return spec, fmt.Errorf("cannot remove %s from %s: %w", metric, spec, contract.ErrNotCustomGraph)
	}
	metrics := spec.Metrics()
	idx := slices.Index(metrics, metric)
	if idx < 0 {
		return spec, nil
	}
	return schema.Custom(slices.Delete(metrics, idx, idx+1)...), nil
}

package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// GraphSpec selects what is displayed: a predefined graph type or a custom
// list of metrics. It is a tagged variant; use Predefined or Custom to build one.
type GraphSpec struct {
	graph   GraphType
	metrics []MetricKey
}

// Predefined creates a spec for a predefined graph type.
func Predefined(graph GraphType) GraphSpec {
	return GraphSpec{graph: graph}
}

// Custom creates a spec for a user-assembled metric list. Order is the order
// in which metrics were added; duplicates are removed keeping the first occurrence.
func Custom(metrics ...MetricKey) GraphSpec {
	seen := make(map[MetricKey]struct{}, len(metrics))
	out := make([]MetricKey, 0, len(metrics))
	for _, m := range metrics {
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return GraphSpec{graph: GraphCustom, metrics: out}
}

// Graph returns the graph type; GraphCustom for custom specs.
func (s GraphSpec) Graph() GraphType { return s.graph }

// IsCustom reports whether the spec is a custom metric list.
func (s GraphSpec) IsCustom() bool { return s.graph == GraphCustom }

// IsZero reports whether no spec was chosen.
func (s GraphSpec) IsZero() bool { return s.graph == "" }

// Metrics returns a copy of the custom metric list; nil for predefined specs.
func (s GraphSpec) Metrics() []MetricKey {
	if !s.IsCustom() {
		return nil
	}
	return slices.Clone(s.metrics)
}

// Equal reports whether two specs select the same graph and metrics.
func (s GraphSpec) Equal(o GraphSpec) bool {
	return s.graph == o.graph && slices.Equal(s.metrics, o.metrics)
}

// String renders the spec as "coverage" or "custom(ncloc,bugs)".
func (s GraphSpec) String() string {
	if !s.IsCustom() {
		return string(s.graph)
	}
	parts := make([]string, len(s.metrics))
	for i, m := range s.metrics {
		parts[i] = string(m)
	}
	return fmt.Sprintf("custom(%s)", strings.Join(parts, ","))
}

type graphSpecJSON struct {
	Graph   GraphType   `json:"graph"`
	Metrics []MetricKey `json:"metrics,omitempty"`
}

// MarshalJSON encodes the spec as {"graph": ..., "metrics": [...]}.
func (s GraphSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphSpecJSON{Graph: s.graph, Metrics: s.metrics})
}

// UnmarshalJSON decodes {"graph": ..., "metrics": [...]}.
func (s *GraphSpec) UnmarshalJSON(data []byte) error {
	var raw graphSpecJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Graph == "" {
		*s = GraphSpec{}
		return nil
	}
	if _, ok := ValidGraphTypes[raw.Graph]; !ok {
		return fmt.Errorf("invalid graph type '%s'", raw.Graph)
	}
	if raw.Graph == GraphCustom {
		*s = Custom(raw.Metrics...)
		return nil
	}
	*s = Predefined(raw.Graph)
	return nil
}

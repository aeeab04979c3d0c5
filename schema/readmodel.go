package schema

import "time"

// ReadModel is everything a renderer needs to draw the activity graph.
type ReadModel struct {
	Project      ProjectKey    `json:"project"`
	State        ComposerState `json:"state"`
	Spec         GraphSpec     `json:"spec"`
	Window       DateWindow    `json:"window"`
	SeriesGroups [][]Series    `json:"seriesGroups"`
	Tooltip      *TooltipState `json:"tooltip,omitempty"`
	HasData      bool          `json:"hasData"`
	Loading      bool          `json:"loading"`
	Dropped      []MetricKey   `json:"dropped,omitempty"`
	Analyses     int           `json:"analyses"`
	Events       []AxisEvent   `json:"events,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// AxisEvent is an event positioned on the displayed time axis.
type AxisEvent struct {
	Date  time.Time `json:"date"`
	Event Event     `json:"event"`
}

// TooltipValue is the value of one series (or breakdown metric) at the tooltip date.
type TooltipValue struct {
	Metric         MetricKey     `json:"metric"`
	TranslatedName string        `json:"translatedName"`
	Value          *MeasureValue `json:"value"`
	Formatted      string        `json:"formatted"`
}

// TooltipPayload is the content shown for the selected point.
type TooltipPayload struct {
	Graph     int            `json:"graph"`
	Index     int            `json:"index"`
	Date      time.Time      `json:"date"`
	Values    []TooltipValue `json:"values"`
	Events    []Event        `json:"events,omitempty"`
	Breakdown []TooltipValue `json:"breakdown,omitempty"`
}

// GraphResult is a read model together with the details of its tooltip, as printed by the CLI.
type GraphResult struct {
	ReadModel
	TooltipDetails *TooltipPayload `json:"tooltipDetails,omitempty"`
}

// GraphCatalogEntry is the metric table of one graph type.
type GraphCatalogEntry struct {
	Type      GraphType     `json:"type"`
	SubGraphs [][]MetricKey `json:"subGraphs"`
	Breakdown []MetricKey   `json:"breakdown,omitempty"`
}

// MetricsRenderModel is the complete catalog listing of graphs and metrics.
type MetricsRenderModel struct {
	Title            string              `json:"title"`
	Graphs           []GraphCatalogEntry `json:"graphs"`
	Metrics          []MetricDefinition  `json:"metrics"`
	MaxCustomMetrics int                 `json:"maxCustomMetrics"`
}

package schema

// MetricDefinition describes a metric known to the engine.
type MetricDefinition struct {
	Key    MetricKey  `json:"key" yaml:"key"`
	Name   string     `json:"name" yaml:"name"`
	Type   MetricType `json:"type" yaml:"type"`
	Domain string     `json:"domain" yaml:"domain"`
}

// DefaultMetrics is the built-in metric catalog, in display order.
var DefaultMetrics = []MetricDefinition{
	{MetricBugs, "Bugs", IntMetric, "Reliability"},
	{MetricReliabilityRating, "Reliability Rating", RatingMetric, "Reliability"},
	{MetricReliabilityRemediationEffort, "Reliability Remediation Effort", WorkDurMetric, "Reliability"},
	{MetricVulnerabilities, "Vulnerabilities", IntMetric, "Security"},
	{MetricSecurityRating, "Security Rating", RatingMetric, "Security"},
	{MetricSecurityRemediationEffort, "Security Remediation Effort", WorkDurMetric, "Security"},
	{MetricCodeSmells, "Code Smells", IntMetric, "Maintainability"},
	{MetricSqaleRating, "Maintainability Rating", RatingMetric, "Maintainability"},
	{MetricSqaleIndex, "Technical Debt", WorkDurMetric, "Maintainability"},
	{MetricCoverage, "Coverage", PercentMetric, "Coverage"},
	{MetricTests, "Unit Tests", IntMetric, "Coverage"},
	{MetricLinesToCover, "Lines to Cover", IntMetric, "Coverage"},
	{MetricUncoveredLines, "Uncovered Lines", IntMetric, "Coverage"},
	{MetricDuplicatedLinesDensity, "Duplicated Lines (%)", PercentMetric, "Duplications"},
	{MetricDuplicatedBlocks, "Duplicated Blocks", IntMetric, "Duplications"},
	{MetricDuplicatedLines, "Duplicated Lines", IntMetric, "Duplications"},
	{MetricNcloc, "Lines of Code", IntMetric, "Size"},
	{MetricAlertStatus, "Quality Gate Status", LevelMetric, "Releasability"},
}

var metricIndex = func() map[MetricKey]MetricDefinition {
	m := make(map[MetricKey]MetricDefinition, len(DefaultMetrics))
	for _, d := range DefaultMetrics {
		m[d.Key] = d
	}
	return m
}()

// LookupMetric returns the built-in definition of a metric.
func LookupMetric(key MetricKey) (MetricDefinition, bool) {
	d, ok := metricIndex[key]
	return d, ok
}

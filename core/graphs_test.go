package core

import (
	"errors"
	"testing"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphDefinitionFor(t *testing.T) {
	for _, g := range schema.PredefinedGraphTypes {
		def, ok := GraphDefinitionFor(g)
		require.True(t, ok, g)
		assert.Equal(t, g, def.Type)
		require.NotEmpty(t, def.SubGraphs)
		for _, sub := range def.SubGraphs {
			assert.GreaterOrEqual(t, len(sub), 1)
			assert.LessOrEqual(t, len(sub), 3)
		}
	}

	_, ok := GraphDefinitionFor(schema.GraphCustom)
	assert.False(t, ok)
	_, ok = GraphDefinitionFor("bogus")
	assert.False(t, ok)

	assert.Len(t, PredefinedGraphs(), len(schema.PredefinedGraphTypes))
}

func TestRequiredMetrics(t *testing.T) {
	got := RequiredMetrics(schema.Predefined(schema.GraphCoverage), 0)
	assert.Equal(t, []schema.MetricKey{
		schema.MetricCoverage, schema.MetricTests, schema.MetricLinesToCover, schema.MetricUncoveredLines,
	}, got)

	got = RequiredMetrics(schema.Custom(schema.MetricNcloc, schema.MetricBugs), 0)
	assert.Equal(t, []schema.MetricKey{schema.MetricNcloc, schema.MetricBugs}, got)

	assert.Empty(t, RequiredMetrics(schema.GraphSpec{}, 0))
}

// TestWithCustomMetric_FIFO adds a fourth metric to a full custom graph.
func TestWithCustomMetric_FIFO(t *testing.T) {
	spec := schema.Custom()
	var err error
	for _, m := range []schema.MetricKey{schema.MetricNcloc, schema.MetricBugs, schema.MetricVulnerabilities, schema.MetricCodeSmells} {
		spec, err = WithCustomMetric(spec, m, 3)
		require.NoError(t, err)
	}
	assert.Equal(t, []schema.MetricKey{schema.MetricBugs, schema.MetricVulnerabilities, schema.MetricCodeSmells}, spec.Metrics())
}

func TestWithCustomMetric(t *testing.T) {
	spec := schema.Custom(schema.MetricBugs)

	t.Run("already present", func(t *testing.T) {
		got, err := WithCustomMetric(spec, schema.MetricBugs, 3)
		require.NoError(t, err)
		assert.True(t, got.Equal(spec))
	})

	t.Run("predefined spec", func(t *testing.T) {
		_, err := WithCustomMetric(schema.Predefined(schema.GraphIssues), schema.MetricBugs, 3)
		assert.True(t, errors.Is(err, contract.ErrNotCustomGraph))
	})
}

func TestWithoutCustomMetric(t *testing.T) {
	spec := schema.Custom(schema.MetricBugs, schema.MetricNcloc)

	got, err := WithoutCustomMetric(spec, schema.MetricBugs)
	require.NoError(t, err)
	assert.Equal(t, []schema.MetricKey{schema.MetricNcloc}, got.Metrics())
	// the original is untouched
	assert.Equal(t, []schema.MetricKey{schema.MetricBugs, schema.MetricNcloc}, spec.Metrics())

	got, err = WithoutCustomMetric(spec, schema.MetricCoverage)
	require.NoError(t, err)
	assert.True(t, got.Equal(spec))

	_, err = WithoutCustomMetric(schema.Predefined(schema.GraphCoverage), schema.MetricBugs)
	assert.ErrorIs(t, err, contract.ErrNotCustomGraph)
}

func TestCapCustomMetrics(t *testing.T) {
	metrics := []schema.MetricKey{"a", "b", "c", "d", "e"}
	assert.Equal(t, []schema.MetricKey{"c", "d", "e"}, CapCustomMetrics(metrics, 0))
	assert.Equal(t, []schema.MetricKey{"e"}, CapCustomMetrics(metrics, 1))
	assert.Equal(t, metrics, CapCustomMetrics(metrics, 10))
}

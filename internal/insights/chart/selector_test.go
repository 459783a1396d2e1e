package chart

import (
	"testing"

	"customer-insights/internal/insights/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(values ...string) []dataset.Value {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		out[i] = dataset.TextValue(v)
	}
	return out
}

func numbers(values ...float64) []dataset.Value {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		out[i] = dataset.NumberValue(v)
	}
	return out
}

func temporalNumeric() *dataset.Dataset {
	return dataset.MustNew(
		dataset.Column{Name: "order_date", Values: texts("2024-01", "2024-02", "2024-03")},
		dataset.Column{Name: "revenue", Values: numbers(100, 140, 90)},
	)
}

func TestSelect_TrendQuestionPlotsTimeSeries(t *testing.T) {
	got := Derive(temporalNumeric(), "show the trend over time")

	require.NotNil(t, got)
	assert.Equal(t, &Spec{
		Archetype: TimeSeries,
		X:         "order_date",
		Y:         "revenue",
		View:      ViewLine,
		Title:     "Trend Analysis",
	}, got)
}

func TestSelect_GroupingWithoutCategoricalFallsThroughToComparison(t *testing.T) {
	got := Derive(temporalNumeric(), "show distribution by category")

	require.NotNil(t, got)
	assert.Equal(t, GenericComparison, got.Archetype)
	assert.Equal(t, "order_date", got.X)
	assert.Equal(t, "revenue", got.Y)
}

func TestSelect_Deterministic(t *testing.T) {
	d := temporalNumeric()
	for i := 0; i < 10; i++ {
		assert.Equal(t, TimeSeries, Derive(d, "Show the TREND over time").Archetype)
	}
}

func TestSelect_CategoricalDistributionViews(t *testing.T) {
	small := dataset.MustNew(
		dataset.Column{Name: "tier", Values: texts("Gold", "Gold", "Silver", "Silver")},
		dataset.Column{Name: "customers", Values: numbers(4, 6, 10, 2)},
	)
	got := Derive(small, "Create a chart of revenue by customer tier")
	require.NotNil(t, got)
	assert.Equal(t, CategoricalDistribution, got.Archetype)
	assert.Equal(t, "tier", got.X)
	assert.Equal(t, "customers", got.Y)
	assert.Equal(t, ViewPie, got.View)

	large := dataset.MustNew(
		dataset.Column{Name: "category", Values: texts("A", "B", "A", "B", "A", "B", "A", "B")},
		dataset.Column{Name: "units", Values: numbers(1, 2, 3, 4, 5, 6, 7, 8)},
	)
	got = Derive(large, "Show purchase distribution")
	require.NotNil(t, got)
	assert.Equal(t, CategoricalDistribution, got.Archetype)
	assert.Equal(t, ViewBar, got.View)
	assert.Equal(t, "Category Analysis", got.Title)
}

func TestSelect_RelationalQuestionPlotsCorrelation(t *testing.T) {
	d := dataset.MustNew(
		dataset.Column{Name: "customer", Values: texts("a", "b", "c")},
		dataset.Column{Name: "churn_risk", Values: numbers(0.1, 0.5, 0.9)},
		dataset.Column{Name: "satisfaction", Values: numbers(4.8, 3.1, 1.2)},
	)

	got := Derive(d, "How does churn risk relate to satisfaction?")
	require.NotNil(t, got)
	assert.Equal(t, Correlation, got.Archetype)
	assert.Equal(t, "churn_risk", got.X)
	assert.Equal(t, "satisfaction", got.Y)
	assert.Equal(t, ViewScatter, got.View)
}

func TestSelect_TrendWithoutTemporalFallsToCorrelation(t *testing.T) {
	d := dataset.MustNew(
		dataset.Column{Name: "engagement_score", Values: numbers(1, 2, 3)},
		dataset.Column{Name: "risk", Values: numbers(0.3, 0.2, 0.1)},
	)

	got := Derive(d, "trend of risk score")
	require.NotNil(t, got)
	assert.Equal(t, Correlation, got.Archetype)
}

func TestSelect_NoChart(t *testing.T) {
	single := dataset.MustNew(
		dataset.Column{Name: "note", Values: texts("call back", "sent offer", "no answer")},
	)
	for _, q := range []string{"", "trend over time", "distribution by tier", "risk score", "anything"} {
		assert.Nil(t, Derive(single, q), q)
	}

	assert.Nil(t, Derive(nil, "trend"))
	assert.Nil(t, Derive(dataset.MustNew(), "trend"))
}

func TestSelectWith_CustomOrder(t *testing.T) {
	reordered := []Rule{Rules[3], Rules[0]}
	got := SelectWith(reordered, temporalNumeric(), dataset.Classify(temporalNumeric()), "trend over time")
	require.NotNil(t, got)
	assert.Equal(t, GenericComparison, got.Archetype)
}

func TestFromAny(t *testing.T) {
	spec, ok := FromAny(map[string]any{"type": "Correlation", "x": "a", "y": "b"})
	require.True(t, ok)
	assert.Equal(t, &Spec{Archetype: Correlation, X: "a", Y: "b"}, spec)

	spec, ok = FromAny(Spec{Archetype: TimeSeries, X: "d", Y: "v"})
	require.True(t, ok)
	assert.Equal(t, "d", spec.X)

	_, ok = FromAny(map[string]any{"type": "heatmap"})
	assert.False(t, ok)

	_, ok = FromAny("bar")
	assert.False(t, ok)
}

package chart

import "strings"

type Archetype string

const (
	TimeSeries              Archetype = "time-series"
	CategoricalDistribution Archetype = "categorical-distribution"
	Correlation             Archetype = "correlation"
	GenericComparison       Archetype = "generic-comparison"
)

// View is a rendering hint for the client. It never changes the archetype.
type View string

const (
	ViewLine    View = "line"
	ViewPie     View = "pie"
	ViewBar     View = "bar"
	ViewScatter View = "scatter"
)

// ProportionViewMaxRows is the largest row count rendered as a proportion (pie) view.
const ProportionViewMaxRows = 5

// Spec describes the chart to draw. X is the horizontal axis or the labels,
// Y the vertical axis or the values.
type Spec struct {
	Archetype Archetype `json:"archetype"`
	X         string    `json:"x,omitempty"`
	Y         string    `json:"y,omitempty"`
	View      View      `json:"view,omitempty"`
	Title     string    `json:"title,omitempty"`
}

func (a Archetype) Valid() bool {
	switch a {
	case TimeSeries, CategoricalDistribution, Correlation, GenericComparison:
		return true
	}
	return false
}

var (
	TrendKeywords      = []string{"trend", "time", "over time"}
	GroupingKeywords   = []string{"tier", "category", "distribution"}
	RelationalKeywords = []string{"risk", "score", "correlation"}
)

func mentions(question string, keywords []string) bool {
	lower := strings.ToLower(question)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

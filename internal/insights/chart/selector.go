package chart

import (
	"customer-insights/internal/insights/dataset"
)

// Input is what every rule sees.
type Input struct {
	Data           *dataset.Dataset
	Classification dataset.Classification
	Question       string
}

func (in Input) columns(k dataset.Kind) []string {
	return in.Classification.Of(in.Data, k)
}

// Rule pairs a predicate with the builder that runs when it matches.
type Rule struct {
	Name  string
	Match func(Input) bool
	Build func(Input) *Spec
}

// Rules is evaluated top to bottom and the first match wins. The order is part of the
// contract: question intent beats raw shape.
var Rules = []Rule{
	{
		Name: "trend",
		Match: func(in Input) bool {
			return mentions(in.Question, TrendKeywords) &&
				len(in.columns(dataset.Temporal)) > 0 &&
				len(in.columns(dataset.Numeric)) > 0
		},
		Build: func(in Input) *Spec {
			return &Spec{
				Archetype: TimeSeries,
				X:         in.columns(dataset.Temporal)[0],
				Y:         in.columns(dataset.Numeric)[0],
				View:      ViewLine,
				Title:     "Trend Analysis",
			}
		},
	},
	{
		Name: "grouping",
		Match: func(in Input) bool {
			return mentions(in.Question, GroupingKeywords) &&
				len(in.columns(dataset.Categorical)) > 0 &&
				len(in.columns(dataset.Numeric)) > 0
		},
		Build: func(in Input) *Spec {
			spec := &Spec{
				Archetype: CategoricalDistribution,
				X:         in.columns(dataset.Categorical)[0],
				Y:         in.columns(dataset.Numeric)[0],
				View:      ViewBar,
				Title:     "Category Analysis",
			}
			if in.Data.Rows() <= ProportionViewMaxRows {
				spec.View = ViewPie
				spec.Title = "Distribution"
			}
			return spec
		},
	},
	{
		Name: "relational",
		Match: func(in Input) bool {
			return mentions(in.Question, RelationalKeywords) &&
				len(in.columns(dataset.Numeric)) >= 2
		},
		Build: func(in Input) *Spec {
			numeric := in.columns(dataset.Numeric)
			return &Spec{
				Archetype: Correlation,
				X:         numeric[0],
				Y:         numeric[1],
				View:      ViewScatter,
				Title:     "Correlation Analysis",
			}
		},
	},
	{
		Name: "comparison",
		Match: func(in Input) bool {
			return in.Data.Width() >= 2
		},
		Build: func(in Input) *Spec {
			names := in.Data.ColumnNames()
			return &Spec{
				Archetype: GenericComparison,
				X:         names[0],
				Y:         names[1],
				View:      ViewBar,
				Title:     "Data Analysis",
			}
		},
	},
}

// Select picks a chart for the data and question, or nil when no chart fits.
func Select(d *dataset.Dataset, c dataset.Classification, question string) *Spec {
	return SelectWith(Rules, d, c, question)
}

// SelectWith evaluates a custom rule list.
func SelectWith(rules []Rule, d *dataset.Dataset, c dataset.Classification, question string) *Spec {
	if d.IsEmpty() || len(c) == 0 {
		return nil
	}
	in := Input{Data: d, Classification: c, Question: question}
	for _, r := range rules {
		if r.Match(in) {
			return r.Build(in)
		}
	}
	return nil
}

// Derive classifies the dataset and selects a chart in one step.
func Derive(d *dataset.Dataset, question string) *Spec {
	return Select(d, dataset.Classify(d), question)
}

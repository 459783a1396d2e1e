package fallback

import (
	"strings"

	"customer-insights/internal/insights/dataset"
	"customer-insights/internal/insights/response"
)

// Entry is one canned answer. Keywords match by case-insensitive containment.
type Entry struct {
	Topic    string
	Keywords []string
	Response response.Response
}

// KnowledgeBase answers questions offline when the analytics backend cannot.
// It is immutable after construction and safe for concurrent use.
type KnowledgeBase struct {
	entries []Entry
}

func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{entries: defaultEntries()}
}

// Lookup returns the first entry whose keywords appear in the question, or nil.
func (kb *KnowledgeBase) Lookup(question string) *response.Response {
	entry, ok := kb.Match(question)
	if !ok {
		return nil
	}
	resp := entry.Response
	return &resp
}

// Match is Lookup that also reports the matching topic.
func (kb *KnowledgeBase) Match(question string) (Entry, bool) {
	lower := strings.ToLower(question)
	for _, e := range kb.entries {
		for _, kw := range e.Keywords {
			if strings.Contains(lower, kw) {
				return e.clone(), true
			}
		}
	}
	return Entry{}, false
}

// Entries returns the table in registration order.
func (kb *KnowledgeBase) Entries() []Entry {
	out := make([]Entry, len(kb.entries))
	for i, e := range kb.entries {
		out[i] = e.clone()
	}
	return out
}

// clone detaches an entry from the shared table so callers cannot alter it.
func (e Entry) clone() Entry {
	out := e
	out.Keywords = append([]string(nil), e.Keywords...)
	out.Response.Data = e.Response.Data.Clone()
	if e.Response.Chart != nil {
		c := *e.Response.Chart
		out.Response.Chart = &c
	}
	return out
}

func defaultEntries() []Entry {
	return []Entry{
		{
			Topic:    "churn",
			Keywords: []string{"churn", "risk", "leaving"},
			Response: response.Response{
				Message: "Based on our analysis, customers with high churn risk typically show: decreased login frequency, " +
					"support ticket escalations, and low satisfaction scores. " +
					"I recommend immediate outreach for customers with risk scores above 0.7.",
				Data: table(
					[]string{"Risk Level", "Count", "Action"},
					[]any{"High", 3, "Immediate outreach"},
					[]any{"Medium", 8, "Proactive engagement"},
					[]any{"Low", 15, "Standard nurturing"},
				),
			},
		},
		{
			Topic:    "revenue",
			Keywords: []string{"revenue", "money", "opportunity", "upsell"},
			Response: response.Response{
				Message: "Revenue opportunities include: upselling premium features to gold customers, " +
					"cross-selling complementary products, and expanding successful pilot programs.",
				Data: table(
					[]string{"Opportunity", "Potential", "Probability"},
					[]any{"Premium Upsell", "$45,000", "70%"},
					[]any{"Cross-sell", "$23,000", "85%"},
					[]any{"Expansion", "$67,000", "60%"},
				),
			},
		},
		{
			Topic:    "support",
			Keywords: []string{"support", "ticket", "issue", "problem"},
			Response: response.Response{
				Message: "Support trends show billing issues as the top category, followed by shipping delays. " +
					"Average resolution time is 18 hours with 4.2/5 satisfaction.",
				Data: table(
					[]string{"Issue Type", "Count", "Avg Resolution"},
					[]any{"Billing", 12, "24 hours"},
					[]any{"Shipping", 8, "12 hours"},
					[]any{"Technical", 5, "36 hours"},
				),
			},
		},
	}
}

func table(header []string, rows ...[]any) *dataset.Dataset {
	columns := make([]dataset.Column, len(header))
	for i, name := range header {
		values := make([]dataset.Value, len(rows))
		for r, row := range rows {
			values[r] = dataset.FromAny(row[i])
		}
		columns[i] = dataset.Column{Name: name, Values: values}
	}
	return dataset.MustNew(columns...)
}

package dataset

import "strings"

type Kind string

const (
	Temporal    Kind = "temporal"
	Categorical Kind = "categorical"
	Numeric     Kind = "numeric"
	Opaque      Kind = "opaque"
)

// Classification maps every column name of a dataset to its semantic kind.
type Classification map[string]Kind

var temporalNameHints = []string{"date", "time"}

// Classify tags each column independently. An empty dataset yields an empty map,
// which callers treat as "no usable shape".
func Classify(d *Dataset) Classification {
	out := make(Classification)
	if d.IsEmpty() {
		return out
	}
	for _, c := range d.columns {
		out[c.Name] = ClassifyColumn(c)
	}
	return out
}

// ClassifyColumn applies, in order: the name heuristic, the all-numeric check and the
// cardinality check.
func ClassifyColumn(c Column) Kind {
	lower := strings.ToLower(c.Name)
	for _, hint := range temporalNameHints {
		if strings.Contains(lower, hint) {
			return Temporal
		}
	}

	present := 0
	numeric := true
	distinct := make(map[Value]struct{})
	for _, v := range c.Values {
		if v.IsNull() {
			continue
		}
		present++
		if _, ok := v.Float(); !ok {
			numeric = false
		}
		distinct[v] = struct{}{}
	}

	if present == 0 {
		return Opaque
	}
	if numeric {
		return Numeric
	}
	if 2*len(distinct) <= len(c.Values) {
		return Categorical
	}
	return Opaque
}

// Of returns the names of the columns of kind k, in dataset order.
func (c Classification) Of(d *Dataset, k Kind) []string {
	var names []string
	for _, name := range d.ColumnNames() {
		if c[name] == k {
			names = append(names, name)
		}
	}
	return names
}

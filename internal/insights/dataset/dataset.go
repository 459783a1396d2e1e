package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrRaggedColumns   = errors.New("RAGGED_COLUMNS")
	ErrDuplicateColumn = errors.New("DUPLICATE_COLUMN")
	ErrUnsupportedData = errors.New("UNSUPPORTED_DATA_SHAPE")
)

type Column struct {
	Name   string
	Values []Value
}

// Dataset is an ordered set of equally sized named columns.
type Dataset struct {
	columns []Column
	index   map[string]int
}

func New(columns ...Column) (*Dataset, error) {
	d := &Dataset{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if _, exists := d.index[c.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		if len(d.columns) > 0 && len(c.Values) != len(d.columns[0].Values) {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d",
				ErrRaggedColumns, c.Name, len(c.Values), len(d.columns[0].Values))
		}
		values := make([]Value, len(c.Values))
		copy(values, c.Values)
		d.index[c.Name] = len(d.columns)
		d.columns = append(d.columns, Column{Name: c.Name, Values: values})
	}
	return d, nil
}

// MustNew panics on invalid input. It is meant for statically built tables.
func MustNew(columns ...Column) *Dataset {
	d, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Dataset) Rows() int {
	if d == nil || len(d.columns) == 0 {
		return 0
	}
	return len(d.columns[0].Values)
}

func (d *Dataset) Width() int {
	if d == nil {
		return 0
	}
	return len(d.columns)
}

// IsEmpty reports a dataset with no rows or no columns.
func (d *Dataset) IsEmpty() bool {
	return d.Rows() == 0 || d.Width() == 0
}

// Clone returns an independent copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	return MustNew(d.columns...)
}

// Columns returns a copy of the columns in order.
func (d *Dataset) Columns() []Column {
	if d == nil {
		return nil
	}
	out := make([]Column, len(d.columns))
	for i, c := range d.columns {
		values := make([]Value, len(c.Values))
		copy(values, c.Values)
		out[i] = Column{Name: c.Name, Values: values}
	}
	return out
}

func (d *Dataset) ColumnNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns a copy of the named column.
func (d *Dataset) Column(name string) (Column, bool) {
	if d == nil {
		return Column{}, false
	}
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	c := d.columns[i]
	values := make([]Value, len(c.Values))
	copy(values, c.Values)
	return Column{Name: c.Name, Values: values}, true
}

func (d *Dataset) Cell(row int, name string) Value {
	if d == nil {
		return NullValue()
	}
	i, ok := d.index[name]
	if !ok || row < 0 || row >= len(d.columns[i].Values) {
		return NullValue()
	}
	return d.columns[i].Values[row]
}

// Records returns the rows as maps, the shape upstream payloads use.
func (d *Dataset) Records() []map[string]any {
	rows := d.Rows()
	out := make([]map[string]any, rows)
	for r := 0; r < rows; r++ {
		rec := make(map[string]any, len(d.columns))
		for _, c := range d.columns {
			rec[c.Name] = c.Values[r].Interface()
		}
		out[r] = rec
	}
	return out
}

type wireDataset struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// MarshalJSON writes {"columns": [...], "rows": [[...], ...]} so column order survives.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	w := wireDataset{Columns: d.ColumnNames(), Rows: make([][]Value, d.Rows())}
	for r := range w.Rows {
		row := make([]Value, len(d.columns))
		for i, c := range d.columns {
			row[i] = c.Values[r]
		}
		w.Rows[r] = row
	}
	return json.Marshal(w)
}

func (d *Dataset) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var w wireDataset
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	columns := make([]Column, len(w.Columns))
	for i, name := range w.Columns {
		columns[i] = Column{Name: name, Values: make([]Value, len(w.Rows))}
	}
	for r, row := range w.Rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrRaggedColumns, r, len(row), len(columns))
		}
		for i, v := range row {
			columns[i].Values[r] = v
		}
	}
	built, err := New(columns...)
	if err != nil {
		return err
	}
	*d = *built
	return nil
}

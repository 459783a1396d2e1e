package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type ValueKind int

const (
	Null ValueKind = iota
	Text
	Number
	Time
)

func (k ValueKind) String() string {
	switch k {
	case Text:
		return "text"
	case Number:
		return "number"
	case Time:
		return "time"
	default:
		return "null"
	}
}

// Value is a single scalar cell.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	At   time.Time
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func NullValue() Value { return Value{Kind: Null} }

func TextValue(s string) Value { return Value{Kind: Text, Str: s} }

func NumberValue(f float64) Value { return Value{Kind: Number, Num: f} }

// TimeValue stores t in UTC without a monotonic reading so equal instants compare equal.
func TimeValue(t time.Time) Value { return Value{Kind: Time, At: t.UTC().Round(0)} }

// FromAny converts a decoded JSON value or a Go scalar into a cell.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return x
	case string:
		return fromString(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return NumberValue(f)
		}
		return TextValue(x.String())
	case bool:
		return TextValue(strconv.FormatBool(x))
	case time.Time:
		return TimeValue(x)
	case *time.Time:
		if x == nil {
			return NullValue()
		}
		return TimeValue(*x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NumberValue(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NumberValue(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) {
			return NullValue()
		}
		return NumberValue(f)
	case reflect.Ptr:
		if rv.IsNil() {
			return NullValue()
		}
		return FromAny(rv.Elem().Interface())
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return TextValue(fmt.Sprint(v))
	}
	return TextValue(string(encoded))
}

func fromString(s string) Value {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) >= len("2006-01-02") && trimmed[4] == '-' {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return TimeValue(t)
			}
		}
	}
	return TextValue(s)
}

func (v Value) IsNull() bool { return v.Kind == Null }

// Float reports whether the cell reads as a number, parsing text cells.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case Number:
		return v.Num, true
	case Text:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case Text:
		return v.Str
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case Time:
		return v.At.Format(time.RFC3339)
	default:
		return ""
	}
}

// Interface returns the plain Go value used for JSON encoding.
func (v Value) Interface() any {
	switch v.Kind {
	case Text:
		return v.Str
	case Number:
		return v.Num
	case Time:
		return v.At.Format(time.RFC3339Nano)
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

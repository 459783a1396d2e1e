package response

import (
	"fmt"
	"reflect"
)

type RawKind int

const (
	RawEmpty RawKind = iota
	RawText
	RawStructured
	RawOther
)

func (k RawKind) String() string {
	switch k {
	case RawText:
		return "text"
	case RawStructured:
		return "structured"
	case RawOther:
		return "other"
	default:
		return "empty"
	}
}

// Raw is an upstream payload: nothing, text (possibly JSON), a structured map, or
// some other value that only has a textual representation.
type Raw struct {
	kind   RawKind
	text   string
	fields map[string]any
	other  any
}

func Empty() Raw { return Raw{kind: RawEmpty} }

func Text(s string) Raw { return Raw{kind: RawText, text: s} }

func Structured(fields map[string]any) Raw {
	if fields == nil {
		return Empty()
	}
	return Raw{kind: RawStructured, fields: fields}
}

func Other(v any) Raw {
	if v == nil {
		return Empty()
	}
	return Raw{kind: RawOther, other: v}
}

// FromAny is the single step that tags an untyped upstream value.
func FromAny(v any) Raw {
	switch x := v.(type) {
	case nil:
		return Empty()
	case Raw:
		return x
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case *string:
		if x == nil {
			return Empty()
		}
		return Text(*x)
	case map[string]any:
		return Structured(x)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		fields := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			fields[iter.Key().String()] = iter.Value().Interface()
		}
		return Structured(fields)
	}
	return Other(v)
}

func (r Raw) Kind() RawKind { return r.kind }

func (r Raw) Text() (string, bool) {
	return r.text, r.kind == RawText
}

func (r Raw) Fields() (map[string]any, bool) {
	return r.fields, r.kind == RawStructured
}

// String returns the textual form, used as a cache value and in logs.
func (r Raw) String() string {
	switch r.kind {
	case RawText:
		return r.text
	case RawStructured:
		return fmt.Sprint(r.fields)
	case RawOther:
		return fmt.Sprint(r.other)
	default:
		return ""
	}
}

package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"time"
)

// object is a key-ordered view of a JSON object or a Go map.
type object struct {
	keys   []string
	values map[string]any
}

// orderedMap is what DecodeOrdered produces for JSON objects.
type orderedMap struct {
	object
}

// DecodeOrdered decodes JSON keeping object key order, which encoding/json drops.
// Numbers are returned as json.Number.
func DecodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := &orderedMap{object{values: make(map[string]any)}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, want string", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				if _, seen := m.values[key]; !seen {
					m.keys = append(m.keys, key)
				}
				m.values[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			list := []any{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		return tok, nil
	}
}

// Field returns a top-level field of an ordered JSON object, a Go map or a struct.
func Field(v any, key string) (any, bool) {
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}
	val, ok := obj.values[key]
	return val, ok
}

// IsObject reports whether v is a JSON object, a string-keyed map or a struct.
func IsObject(v any) bool {
	_, ok := asObject(v)
	return ok
}

// Plain converts ordered JSON values back into ordinary maps and slices.
func Plain(v any) any {
	switch x := v.(type) {
	case *orderedMap:
		out := make(map[string]any, len(x.keys))
		for _, k := range x.keys {
			out[k] = Plain(x.values[k])
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Plain(item)
		}
		return out
	default:
		return v
	}
}

// Coerce builds a Dataset from an upstream data payload. Supported shapes are a list of
// records, an object of equally sized columns, a single flat record, or a Dataset.
func Coerce(v any) (*Dataset, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: no data", ErrUnsupportedData)
	case *Dataset:
		if x == nil || x.IsEmpty() {
			return nil, fmt.Errorf("%w: empty dataset", ErrUnsupportedData)
		}
		return x, nil
	case Dataset:
		return Coerce(&x)
	}

	if list, ok := asList(v); ok {
		return fromRecords(list)
	}
	if obj, ok := asObject(v); ok {
		return fromObject(obj)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedData, v)
}

func fromRecords(list []any) (*Dataset, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty record list", ErrUnsupportedData)
	}

	records := make([]object, len(list))
	var order []string
	seen := make(map[string]bool)
	for i, item := range list {
		rec, ok := asObject(item)
		if !ok {
			return nil, fmt.Errorf("%w: record %d is %T", ErrUnsupportedData, i, item)
		}
		records[i] = rec
		for _, k := range rec.keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: records have no fields", ErrUnsupportedData)
	}

	columns := make([]Column, len(order))
	for i, name := range order {
		values := make([]Value, len(records))
		for r, rec := range records {
			values[r] = cell(rec.values[name])
		}
		columns[i] = Column{Name: name, Values: values}
	}
	return New(columns...)
}

func fromObject(obj object) (*Dataset, error) {
	if len(obj.keys) == 0 {
		return nil, fmt.Errorf("%w: empty object", ErrUnsupportedData)
	}

	lists := 0
	for _, k := range obj.keys {
		if _, ok := asList(obj.values[k]); ok {
			lists++
		}
	}

	switch lists {
	case 0:
		columns := make([]Column, len(obj.keys))
		for i, k := range obj.keys {
			columns[i] = Column{Name: k, Values: []Value{cell(obj.values[k])}}
		}
		return New(columns...)
	case len(obj.keys):
		columns := make([]Column, len(obj.keys))
		for i, k := range obj.keys {
			items, _ := asList(obj.values[k])
			values := make([]Value, len(items))
			for r, item := range items {
				values[r] = cell(item)
			}
			columns[i] = Column{Name: k, Values: values}
		}
		d, err := New(columns...)
		if err != nil {
			return nil, err
		}
		if d.Rows() == 0 {
			return nil, fmt.Errorf("%w: empty columns", ErrUnsupportedData)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: mixed list and scalar fields", ErrUnsupportedData)
	}
}

func cell(v any) Value {
	switch v.(type) {
	case *orderedMap, []any:
		return FromAny(Plain(v))
	}
	if composite(v) {
		if decoded, ok := viaJSON(v); ok {
			return FromAny(Plain(decoded))
		}
	}
	return FromAny(v)
}

var timeType = reflect.TypeOf(time.Time{})

// composite reports whether v is a struct, map, slice or array that FromAny would
// otherwise encode itself.
func composite(v any) bool {
	switch v.(type) {
	case Value, json.Number, []byte:
		return false
	}
	rv := indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct:
		return rv.Type() != timeType
	case reflect.Map, reflect.Slice, reflect.Array:
		return true
	}
	return false
}

func isStruct(v any) bool {
	rv := indirect(reflect.ValueOf(v))
	return rv.Kind() == reflect.Struct && rv.Type() != timeType
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// viaJSON reads a Go value back through its JSON encoding, so structs and typed
// containers look the same as the decoded text form of the same payload.
func viaJSON(v any) (any, bool) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	decoded, err := DecodeOrdered(encoded)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

func asObject(v any) (object, bool) {
	switch x := v.(type) {
	case nil:
		return object{}, false
	case *orderedMap:
		return x.object, true
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return object{keys: keys, values: x}, true
	}

	if isStruct(v) {
		decoded, ok := viaJSON(v)
		if m, isMap := decoded.(*orderedMap); ok && isMap {
			return m.object, true
		}
		return object{}, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return object{}, false
	}
	values := make(map[string]any, rv.Len())
	keys := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		keys = append(keys, k)
		values[k] = iter.Value().Interface()
	}
	sort.Strings(keys)
	return object{keys: keys, values: values}, true
}

func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case []any:
		return x, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

package chart

import (
	"fmt"
	"strings"

	"customer-insights/internal/insights/dataset"
)

// FromAny reads a chart supplied by the upstream payload. It accepts a Spec, a *Spec,
// or an object with a known "archetype" (or "type") and optional x/y/view/title fields.
func FromAny(v any) (*Spec, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case Spec:
		if !x.Archetype.Valid() {
			return nil, false
		}
		return &x, true
	case *Spec:
		if x == nil || !x.Archetype.Valid() {
			return nil, false
		}
		spec := *x
		return &spec, true
	}

	if !dataset.IsObject(v) {
		return nil, false
	}

	archetype := Archetype(strings.ToLower(field(v, "archetype")))
	if archetype == "" {
		archetype = Archetype(strings.ToLower(field(v, "type")))
	}
	if !archetype.Valid() {
		return nil, false
	}

	return &Spec{
		Archetype: archetype,
		X:         field(v, "x"),
		Y:         field(v, "y"),
		View:      View(field(v, "view")),
		Title:     field(v, "title"),
	}, true
}

func field(obj any, key string) string {
	val, ok := dataset.Field(obj, key)
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprint(val)
}

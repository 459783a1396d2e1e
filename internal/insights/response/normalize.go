package response

import (
	"fmt"
	"strings"

	"customer-insights/internal/insights/chart"
	"customer-insights/internal/insights/dataset"
)

// DefaultMessage replaces a missing or blank message.
const DefaultMessage = "I apologize, but I encountered an issue processing your request."

// Response is the canonical answer handed back to the client.
type Response struct {
	Message string           `json:"message"`
	Data    *dataset.Dataset `json:"data"`
	Chart   *chart.Spec      `json:"chart"`
}

func (r Response) HasData() bool {
	return r.Data != nil && !r.Data.IsEmpty()
}

// Outcome tells how a raw payload was read. It is diagnostic only.
type Outcome string

const (
	OutcomeStructured Outcome = "structured"
	OutcomeText       Outcome = "text"
	OutcomeUnparsable Outcome = "unparsable"
	OutcomeEmpty      Outcome = "empty"
	OutcomeOther      Outcome = "other"
)

// Normalize turns any raw payload into a Response. It never fails.
func Normalize(raw Raw, question string) Response {
	resp, _ := Interpret(raw, question)
	return resp
}

// Interpret is Normalize plus the Outcome, which lets callers spot an empty result
// after the blank message has been replaced.
func Interpret(raw Raw, question string) (resp Response, outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			resp = Response{Message: DefaultMessage}
			outcome = OutcomeUnparsable
		}
	}()

	switch raw.kind {
	case RawText:
		return fromText(raw.text, question)
	case RawStructured:
		return fromFields(raw.fields, question)
	case RawOther:
		msg := fmt.Sprint(raw.other)
		if strings.TrimSpace(msg) == "" {
			return Response{Message: DefaultMessage}, OutcomeEmpty
		}
		return Response{Message: msg}, OutcomeOther
	default:
		return Response{Message: DefaultMessage}, OutcomeEmpty
	}
}

func fromText(text, question string) (Response, Outcome) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Response{Message: DefaultMessage}, OutcomeEmpty
	}

	candidate := stripCodeFences(trimmed)
	if !strings.HasPrefix(candidate, "{") {
		return Response{Message: text}, OutcomeText
	}

	parsed, err := dataset.DecodeOrdered([]byte(candidate))
	if err != nil {
		return Response{Message: text}, OutcomeUnparsable
	}
	if _, ok := dataset.Field(parsed, "message"); !ok {
		return Response{Message: text}, OutcomeText
	}
	return fromFields(parsed, question)
}

func fromFields(obj any, question string) (Response, Outcome) {
	msgVal, _ := dataset.Field(obj, "message")
	message := textOf(msgVal)

	var data *dataset.Dataset
	if rawData, ok := dataset.Field(obj, "data"); ok {
		if d, err := dataset.Coerce(rawData); err == nil {
			data = d
		}
	}

	var spec *chart.Spec
	if rawChart, ok := dataset.Field(obj, "chart"); ok {
		if explicit, ok := chart.FromAny(rawChart); ok {
			spec = explicit
		}
	}
	if spec == nil && data != nil {
		spec = chart.Derive(data, question)
	}

	if strings.TrimSpace(message) == "" {
		resp := Response{Message: DefaultMessage, Data: data, Chart: spec}
		if data == nil {
			return resp, OutcomeEmpty
		}
		return resp, OutcomeStructured
	}
	return Response{Message: message, Data: data, Chart: spec}, OutcomeStructured
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return dataset.FromAny(dataset.Plain(v)).String()
}

// stripCodeFences removes a surrounding ```json ... ``` block that some models emit.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

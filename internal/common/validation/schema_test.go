package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var askSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"question"},
	"properties": map[string]interface{}{
		"question":   map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 2000},
		"customerId": map[string]interface{}{"type": "string"},
		"sessionId":  map[string]interface{}{"type": "string"},
	},
	"additionalProperties": false,
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name      string
		input     map[string]interface{}
		valid     bool
		wantField string
		wantCode  string
	}{
		{"valid minimal", map[string]interface{}{"question": "Who churned?"}, true, "", ""},
		{"valid scoped", map[string]interface{}{"question": "Overview", "customerId": "CUST_001"}, true, "", ""},
		{"missing question", map[string]interface{}{"customerId": "CUST_001"}, false, "question", "REQUIRED_FIELD_MISSING"},
		{"empty question", map[string]interface{}{"question": ""}, false, "question", "INVALID_LENGTH"},
		{"wrong type", map[string]interface{}{"question": 42}, false, "question", "INVALID_TYPE"},
		{"extra field", map[string]interface{}{"question": "q", "debug": true}, false, "debug", "EXTRA_FIELD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateInput(tt.input, askSchema)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			if tt.valid {
				assert.Empty(t, result.Errors)
				return
			}
			require.True(t, result.HasErrors(tt.wantField), "errors: %v", result.GetErrorMessages())
			assert.Equal(t, tt.wantCode, result.GetErrorsForField(tt.wantField)[0].Code)
		})
	}
}

func TestValidateInput_EmptySchemaAcceptsAnything(t *testing.T) {
	result, err := ValidateInput(map[string]interface{}{"anything": 1}, nil)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestCompile_RejectsBrokenSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 12})
	assert.Error(t, err)
}

func TestCompiledSchemaIsReusable(t *testing.T) {
	schema, err := Compile(askSchema)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		result, err := schema.Validate(map[string]interface{}{"question": "q"})
		require.NoError(t, err)
		assert.True(t, result.Valid)
	}
}

func TestNaming(t *testing.T) {
	assert.NoError(t, ValidateActivityNaming("insights.customer.ask"))
	assert.Error(t, ValidateActivityNaming("ask-customer-insights"))

	assert.NoError(t, ValidateTaskType("search-customer-documents"))
	assert.Error(t, ValidateTaskType("Search_Documents"))
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFallbackCmd_Match(t *testing.T) {
	out, err := execute(t, "fallback", "Which customers are at risk of churn?")
	require.NoError(t, err)

	var res struct {
		Matched  bool   `json:"matched"`
		Topic    string `json:"topic"`
		Response struct {
			Message string `json:"message"`
			Data    struct {
				Columns []string `json:"columns"`
				Rows    [][]any  `json:"rows"`
			} `json:"data"`
		} `json:"response"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Matched)
	assert.Equal(t, "churn", res.Topic)
	assert.Equal(t, []string{"Risk Level", "Count", "Action"}, res.Response.Data.Columns)
	assert.Len(t, res.Response.Data.Rows, 3)
}

func TestFallbackCmd_NoMatch(t *testing.T) {
	out, err := execute(t, "fallback", "weather today")
	require.NoError(t, err)
	assert.JSONEq(t, `{"matched": false, "response": null}`, out)
}

func TestAskCmd_OfflineUsesKnowledgeBase(t *testing.T) {
	out, err := execute(t, "ask", "--offline", "What are the most common support issues?")
	require.NoError(t, err)

	var res askResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "fallback", res.Source)
	assert.Equal(t, "support", res.Topic)
	assert.Equal(t, "TRANSPORT_FAILURE", res.Code)
	require.NotNil(t, res.Data)
	assert.Equal(t, 3, res.Data.Rows())
	assert.Equal(t, []string{"idle", "dispatching", "failed", "fallback_lookup", "fallback_hit", "idle"}, res.Trail)
}

func TestAskCmd_OfflineApology(t *testing.T) {
	out, err := execute(t, "ask", "--offline", "--output", "yaml", "weather today")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Equal(t, "apology", res["source"])
	assert.Nil(t, res["data"])
	assert.Equal(t, "NO_FALLBACK_AVAILABLE", res["errorCode"])
}

func TestClassifyCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revenue.json")
	payload := `[
		{"tier": "Gold", "revenue": 100},
		{"tier": "Gold", "revenue": 200},
		{"tier": "Silver", "revenue": 50},
		{"tier": "Silver", "revenue": 70}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	out, err := execute(t, "classify", path, "--question", "revenue by tier")
	require.NoError(t, err)

	var res struct {
		Rows           int               `json:"rows"`
		Columns        []string          `json:"columns"`
		Classification map[string]string `json:"classification"`
		Chart          map[string]string `json:"chart"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, []string{"tier", "revenue"}, res.Columns)
	assert.Equal(t, "categorical", res.Classification["tier"])
	assert.Equal(t, "numeric", res.Classification["revenue"])
	assert.Equal(t, "categorical-distribution", res.Chart["archetype"])
	assert.Equal(t, "pie", res.Chart["view"])
}

func TestClassifyFile_UnwrapsPayload(t *testing.T) {
	res, err := classifyFile([]byte(`{"message": "hi", "data": {"name": ["a", "b"]}}`), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, res.Columns)
	assert.Nil(t, res.Chart)
}

func TestClassifyCmd_Errors(t *testing.T) {
	_, err := execute(t, "classify", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "scalar.json")
	require.NoError(t, os.WriteFile(path, []byte(`42`), 0o600))
	_, err = execute(t, "classify", path)
	assert.Error(t, err)
}

func TestRootCmd_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "fallback", "--output", "xml", "churn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func shippedRegistry(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	return path
}

func TestRegistryCmd_ValidateAndList(t *testing.T) {
	path := shippedRegistry(t)

	out, err := execute(t, "registry", "validate", "--registry", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Registry validation passed")

	out, err = execute(t, "registry", "list", "--registry", path)
	require.NoError(t, err)
	var list []activitySummary
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "ask-customer-insights", list[0].TaskType)
	assert.Equal(t, "search-customer-documents", list[1].TaskType)
}

func TestRegistryCmd_CheckInput(t *testing.T) {
	path := shippedRegistry(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"question": "Top customers?"}`), 0o600))
	out, err := execute(t, "registry", "check-input", "--registry", path, "ask-customer-insights", good)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid": true}`, out)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"customerId": "C1"}`), 0o600))
	out, err = execute(t, "registry", "check-input", "--registry", path, "ask-customer-insights", bad)
	require.Error(t, err)
	assert.Contains(t, out, "REQUIRED_FIELD_MISSING")

	_, err = execute(t, "registry", "check-input", "--registry", path, "unknown-task", good)
	assert.Error(t, err)
}

package structout_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/structout"
	"github.com/reoring/structout/jsonschema"
)

type person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func (p *person) Validate() error {
	if p.Age < 0 {
		return errors.New("age must not be negative")
	}
	return nil
}

func TestValidator_DecodesAndRunsValidatable(t *testing.T) {
	v := structout.NewValidator[person]()
	got, err := v.Parse(`{"name":"Ada","age":36}`)
	require.NoError(t, err)
	assert.Equal(t, person{Name: "Ada", Age: 36}, got)

	_, err = v.Parse(`{"name":"Ada","age":-1}`)
	ve, ok := structout.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, `{"name":"Ada","age":-1}`, ve.RawResponse)
	assert.Contains(t, ve.Message, "age must not be negative")
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, structout.CodeHookFailed, ve.Issues[0].Code)
}

func TestValidator_HookOverridesValidatable(t *testing.T) {
	v := structout.NewValidator[person]().WithHook(func(p *person) error {
		if p.Name == "" {
			return errors.New("name required")
		}
		return nil
	})
	_, err := v.Parse(`{"name":"","age":-1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name required")
}

func TestValidator_ParseErrorKeepsRaw(t *testing.T) {
	_, err := structout.NewValidator[person]().Parse(`{"name":`)
	ve, ok := structout.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, `{"name":`, ve.RawResponse)
	assert.Contains(t, ve.Message, "Failed to parse response as JSON")
	assert.Equal(t, structout.CodeParseError, ve.Issues[0].Code)
}

func TestValidator_Empty(t *testing.T) {
	_, err := structout.NewValidator[person]().Parse("  ")
	iss, ok := structout.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, structout.CodeEmptyResponse, iss[0].Code)
}

func TestValidator_DuplicateKeysAndDepth(t *testing.T) {
	v := structout.NewValidator[person](structout.RejectDuplicateKeys())
	_, err := v.Parse(`{"name":"a","name":"b","age":1}`)
	iss, ok := structout.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, structout.CodeDuplicateKey, iss[0].Code)
	assert.Contains(t, iss[0].Message, "'name'")

	deep := structout.NewValidator[map[string]any](structout.MaxDepth(2))
	_, err = deep.Parse(`{"a":{"b":{"c":1}}}`)
	iss, ok = structout.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, structout.CodeTooDeep, iss[0].Code)
	assert.Equal(t, "/a/b", iss[0].Path)
}

func TestValidator_DisallowUnknownFields(t *testing.T) {
	_, err := structout.NewValidator[person](structout.DisallowUnknownFields()).Parse(`{"name":"a","age":1,"x":true}`)
	require.Error(t, err)
	_, err = structout.NewValidator[person]().Parse(`{"name":"a","age":1,"x":true}`)
	require.NoError(t, err)
}

func TestValidator_SchemaCheck(t *testing.T) {
	checker, err := jsonschema.Compile(jsonschema.Schema{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "minLength": 1},
			"age":  map[string]any{"type": "integer"},
		},
		"required": []any{"name", "age"},
	})
	require.NoError(t, err)
	v := structout.NewValidator[person](structout.WithSchemaCheck(checker))

	_, err = v.Parse(`{"name":"","age":3}`)
	iss, ok := structout.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, structout.CodeSchemaViolation, iss[0].Code)
	assert.Equal(t, "/name", iss[0].Path)

	_, err = v.Parse(`{"name":"x"}`)
	require.Error(t, err)

	_, err = v.Parse(`{"name":"x","age":3}`)
	require.NoError(t, err)
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                   `{"a":1}`,
		"```json\n{\"a\":1}\n```":   `{"a":1}`,
		"```\n[1,2]\n```":           `[1,2]`,
		"  ```JSON\n{\"a\":1}```  ": `{"a":1}`,
	}
	for in, want := range cases {
		if got := structout.StripCodeFence(in); got != want {
			t.Fatalf("StripCodeFence mismatch\n got=%q\nwant=%q", got, want)
		}
	}
}

// Package jsonschema holds helpers for schema trees. A schema is a plain
// JSON-shaped map so that dialect adapters can rewrite arbitrary keywords
// without a typed model getting in the way.
package jsonschema

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Schema is a JSON Schema document as a JSON-compatible tree:
// map[string]any, []any, []string, string, bool, numbers and nil.
type Schema = map[string]any

// Clone deep-copies a schema tree. Maps and slices are copied; scalars are
// shared.
func Clone(s Schema) Schema {
	if s == nil {
		return nil
	}
	return cloneValue(s).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Strings reads a string list stored either as []string or []any.
func Strings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// Members returns the subschemas of a list keyword (oneOf, anyOf, allOf,
// prefixItems) when it holds objects.
func Members(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		if ms, ok := v.([]map[string]any); ok {
			return ms
		}
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Marshal encodes a schema as compact JSON with sorted keys.
func Marshal(s Schema) ([]byte, error) {
	return json.Marshal(s)
}

// MarshalIndent encodes a schema as indented JSON.
func MarshalIndent(s Schema) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// MarshalYAML encodes a schema as YAML.
func MarshalYAML(s Schema) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("jsonschema: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse decodes a JSON schema document. Numbers are kept as json.Number.
func Parse(data []byte) (Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var s map[string]any
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("jsonschema: decode: %w", err)
	}
	return s, nil
}

// Normalize round-trips v through JSON so that trees built with []string or
// typed numbers compare equal to decoded ones.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

package dialect

import (
	"sort"

	"github.com/reoring/structout/jsonschema"
)

// Strict closes every object: additionalProperties is false and required
// lists every property. Optional fields therefore become required; callers
// that need optionality must make those field schemas nullable first.
type Strict struct{}

func (Strict) Name() string { return NameStrict }

func (Strict) Adapt(s jsonschema.Schema) (Result, error) {
	return Result{Schema: ToStrict(s)}, nil
}

// ToStrict returns a strict copy of s.
func ToStrict(s jsonschema.Schema) jsonschema.Schema {
	out := jsonschema.Clone(s)
	strictify(out)
	return out
}

func strictify(node map[string]any) {
	if node == nil {
		return
	}
	props, hasProps := node["properties"].(map[string]any)
	if node["type"] == "object" || hasProps {
		node["additionalProperties"] = false
		if hasProps {
			node["required"] = allKeys(node["required"], props)
		}
	}

	for _, kw := range []string{"properties", "patternProperties", "$defs", "definitions"} {
		if m, ok := node[kw].(map[string]any); ok {
			for _, v := range m {
				if child, ok := v.(map[string]any); ok {
					strictify(child)
				}
			}
		}
	}
	for _, kw := range []string{"items", "additionalItems", "not", "if", "then", "else", "contains", "propertyNames"} {
		if child, ok := node[kw].(map[string]any); ok {
			strictify(child)
		}
	}
	for _, kw := range []string{"items", "prefixItems", "allOf", "anyOf", "oneOf"} {
		for _, child := range jsonschema.Members(node[kw]) {
			strictify(child)
		}
	}
}

// allKeys keeps the order of the existing required list and appends the
// remaining property keys sorted.
func allKeys(prev any, props map[string]any) []string {
	out := make([]string, 0, len(props))
	seen := make(map[string]bool, len(props))
	if names, ok := jsonschema.Strings(prev); ok {
		for _, n := range names {
			if _, in := props[n]; in && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	rest := make([]string, 0, len(props))
	for k := range props {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

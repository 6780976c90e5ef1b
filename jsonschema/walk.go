package jsonschema

import (
	"sort"
	"strconv"
)

// subschemaMaps lists keywords whose value maps names to subschemas.
var subschemaMaps = []string{"properties", "patternProperties", "$defs", "definitions"}

// subschemaSingles lists keywords whose value is a single subschema.
var subschemaSingles = []string{
	"items", "additionalItems", "additionalProperties", "not",
	"if", "then", "else", "contains", "propertyNames",
}

// subschemaLists lists keywords whose value is an array of subschemas.
var subschemaLists = []string{"prefixItems", "allOf", "anyOf", "oneOf"}

// Walk visits every schema object in s depth-first, passing a JSON Pointer
// to each. Returning false from fn stops descent below that node.
func Walk(s Schema, fn func(ptr string, node map[string]any) bool) {
	walk("", s, fn)
}

func walk(ptr string, node map[string]any, fn func(string, map[string]any) bool) {
	if node == nil || !fn(ptr, node) {
		return
	}
	for _, kw := range subschemaMaps {
		m, ok := node[kw].(map[string]any)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if child, ok := m[k].(map[string]any); ok {
				walk(ptr+"/"+kw+"/"+escape(k), child, fn)
			}
		}
	}
	for _, kw := range subschemaSingles {
		if child, ok := node[kw].(map[string]any); ok {
			walk(ptr+"/"+kw, child, fn)
		}
		if kw == "items" {
			// draft-07 tuple form
			for i, child := range Members(node[kw]) {
				walk(ptr+"/items/"+strconv.Itoa(i), child, fn)
			}
		}
	}
	for _, kw := range subschemaLists {
		for i, child := range Members(node[kw]) {
			walk(ptr+"/"+kw+"/"+strconv.Itoa(i), child, fn)
		}
	}
}

// ContainsKey reports whether any schema object in s carries key.
func ContainsKey(s Schema, key string) bool {
	found := false
	Walk(s, func(_ string, node map[string]any) bool {
		if _, ok := node[key]; ok {
			found = true
		}
		return !found
	})
	return found
}

func escape(k string) string {
	out := make([]byte, 0, len(k))
	for i := 0; i < len(k); i++ {
		switch k[i] {
		case '~':
			out = append(out, '~', '0')
		case '/':
			out = append(out, '~', '1')
		default:
			out = append(out, k[i])
		}
	}
	return string(out)
}

package dialect

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/reoring/structout/jsonschema"
)

// DefaultDepthLimit bounds how many nested $ref expansions are inlined below
// the root before the remaining references are cut off.
const DefaultDepthLimit = 3

const depthLimitDescription = "recursive reference (depth limit reached)"

// unsupportedKeywords are removed from every node.
var unsupportedKeywords = []string{"examples", "title", "$schema", "$id", "default", "$defs", "definitions", "$ref"}

// Constrained targets backends with a narrow schema vocabulary: no $ref, no
// tuples and no free-form maps. The rewrite is lossy; adjacently tagged
// unions are flattened and reported as reversals.
type Constrained struct {
	// DepthLimit overrides DefaultDepthLimit when positive.
	DepthLimit int
}

func (Constrained) Name() string { return NameConstrained }

func (c Constrained) Adapt(s jsonschema.Schema) (Result, error) {
	depth := c.DepthLimit
	if depth <= 0 {
		depth = DefaultDepthLimit
	}
	run := &constrainedRun{diag: &simpleDiag{}}
	out := jsonschema.Clone(s)
	out = run.resolveRefs(out, depth)
	run.transform(out)
	return Result{Schema: out, Reversals: run.reversals, Warnings: run.diag.Warnings()}, nil
}

type constrainedRun struct {
	diag      *simpleDiag
	defs      map[string]map[string]any // keyed by "#/$defs/" or "#/definitions/" pointer
	reversals []ReversalDescriptor
}

// resolveRefs inlines local definitions. A root $ref is replaced by its
// target without consuming depth.
func (r *constrainedRun) resolveRefs(root map[string]any, depth int) map[string]any {
	r.defs = map[string]map[string]any{}
	for _, kw := range []string{"$defs", "definitions"} {
		m, ok := root[kw].(map[string]any)
		if !ok {
			continue
		}
		for name, v := range m {
			if def, ok := v.(map[string]any); ok {
				r.defs["#/"+kw+"/"+name] = def
			}
		}
	}
	if len(r.defs) == 0 {
		return root
	}
	delete(root, "$defs")
	delete(root, "definitions")
	if ref, ok := root["$ref"].(string); ok {
		if def, ok := r.defs[ref]; ok {
			root = mergeRef(def, root)
		} else {
			r.diag.warnf("$ref %q does not resolve to a local definition", ref)
		}
	}
	return r.inline(root, depth)
}

// mergeRef expands a $ref node: a copy of the definition with the node's
// sibling keywords layered on top.
func mergeRef(def, node map[string]any) map[string]any {
	out := jsonschema.Clone(def)
	for k, v := range node {
		if k == "$ref" {
			continue
		}
		out[k] = v
	}
	return out
}

func (r *constrainedRun) inline(node map[string]any, depth int) map[string]any {
	if ref, ok := node["$ref"].(string); ok {
		def, found := r.defs[ref]
		if !found {
			r.diag.warnf("$ref %q does not resolve to a local definition", ref)
			delete(node, "$ref")
			return node
		}
		if depth == 0 {
			r.diag.warnf("$ref %q cut off at depth limit", ref)
			return map[string]any{"type": "object", "description": depthLimitDescription}
		}
		return r.inline(mergeRef(def, node), depth-1)
	}
	if props, ok := node["properties"].(map[string]any); ok {
		for k, v := range props {
			if child, ok := v.(map[string]any); ok {
				props[k] = r.inline(child, depth)
			}
		}
	}
	for _, kw := range []string{"items", "additionalProperties"} {
		if child, ok := node[kw].(map[string]any); ok {
			node[kw] = r.inline(child, depth)
		}
	}
	for _, kw := range []string{"prefixItems", "oneOf", "anyOf", "allOf"} {
		arr, ok := node[kw].([]any)
		if !ok {
			continue
		}
		for i, v := range arr {
			if child, ok := v.(map[string]any); ok {
				arr[i] = r.inline(child, depth)
			}
		}
	}
	return node
}

func (r *constrainedRun) transform(node map[string]any) {
	for _, kw := range unsupportedKeywords {
		delete(node, kw)
	}
	if _, ok := node["additionalProperties"].(bool); ok {
		delete(node, "additionalProperties")
	}

	r.mapWorkaround(node)
	flattened := r.flattenTuple(node)
	if members, ok := node["oneOf"].([]any); ok {
		r.downgradeAdjacent(members)
	}

	if props, ok := node["properties"].(map[string]any); ok {
		for _, v := range props {
			if child, ok := v.(map[string]any); ok {
				r.transform(child)
			}
		}
	}
	if child, ok := node["items"].(map[string]any); ok && !flattened {
		r.transform(child)
	}
	for _, kw := range []string{"oneOf", "anyOf", "allOf"} {
		for _, child := range jsonschema.Members(node[kw]) {
			r.transform(child)
		}
	}
	if child, ok := node["additionalProperties"].(map[string]any); ok {
		r.transform(child)
	}
}

// mapWorkaround gives a free-form map placeholder properties, since the
// dialect cannot express an object without them.
func (r *constrainedRun) mapWorkaround(node map[string]any) {
	if node["type"] != "object" {
		return
	}
	if _, has := node["properties"]; has {
		return
	}
	value, ok := node["additionalProperties"].(map[string]any)
	if !ok {
		return
	}
	delete(node, "additionalProperties")

	desc, _ := node["description"].(string)
	keys, explicit := declaredKeys(desc)
	if !explicit {
		keys = []string{"key1", "key2", "key3"}
	}
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = jsonschema.Clone(value)
	}
	node["properties"] = props

	switch {
	case explicit:
		// The description already names the keys.
	case desc == "":
		node["description"] = fmt.Sprintf("Object with any string keys (%s are examples - use actual meaningful key names)", strings.Join(keys, ", "))
	default:
		node["description"] = fmt.Sprintf("%s (%s are example keys - use actual meaningful key names)", desc, strings.Join(keys, ", "))
	}
}

// declaredKeys parses the "Keys: [a, b, c]" convention.
func declaredKeys(desc string) ([]string, bool) {
	start := strings.Index(desc, "Keys: [")
	if start < 0 {
		return nil, false
	}
	rest := desc[start+len("Keys: ["):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return nil, false
	}
	var keys []string
	for _, k := range strings.Split(rest[:end], ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, len(keys) > 0
}

// flattenTuple replaces prefixItems with a single items schema. It reports
// whether it did, in which case items is already transformed.
func (r *constrainedRun) flattenTuple(node map[string]any) bool {
	raw, ok := node["prefixItems"].([]any)
	if !ok {
		return false
	}
	delete(node, "prefixItems")
	var unique []any
	for _, v := range raw {
		child, ok := v.(map[string]any)
		if !ok {
			continue
		}
		r.transform(child)
		dup := false
		for _, u := range unique {
			if reflect.DeepEqual(u, child) {
				dup = true
				break
			}
		}
		if !dup {
			unique = append(unique, child)
		}
	}
	switch len(unique) {
	case 0:
		node["items"] = map[string]any{}
	case 1:
		node["items"] = unique[0]
	default:
		node["items"] = map[string]any{"anyOf": unique}
	}
	delete(node, "minItems")
	delete(node, "maxItems")

	prefix := ""
	if desc, ok := node["description"].(string); ok && desc != "" {
		prefix = desc + ". "
	}
	node["description"] = fmt.Sprintf("%sFixed-length array (tuple) with %d elements", prefix, len(raw))
	return true
}

// adjacentMember describes a oneOf member in adjacent form.
type adjacentMember struct {
	tag, content, value string
	unit                bool
}

func singleEnum(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	vals, ok := jsonschema.Strings(m["enum"])
	if !ok || len(vals) != 1 {
		return "", false
	}
	return vals[0], true
}

func detectAdjacent(m map[string]any) (adjacentMember, bool) {
	props, ok := m["properties"].(map[string]any)
	if !ok {
		return adjacentMember{}, false
	}
	required, _ := jsonschema.Strings(m["required"])
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(props) == 1 && len(required) == 1 && required[0] == keys[0] {
		if v, ok := singleEnum(props[keys[0]]); ok {
			return adjacentMember{tag: keys[0], value: v, unit: true}, true
		}
		return adjacentMember{}, false
	}
	if m["type"] != "object" || len(required) != 2 {
		return adjacentMember{}, false
	}
	var am adjacentMember
	for _, k := range keys {
		if v, ok := singleEnum(props[k]); ok && am.tag == "" {
			am.tag, am.value = k, v
			continue
		}
		if p, ok := props[k].(map[string]any); ok && p["type"] == "object" {
			if _, has := p["properties"].(map[string]any); has {
				am.content = k
			}
		}
	}
	if am.tag == "" || am.content == "" {
		return adjacentMember{}, false
	}
	if !contains(required, am.tag) || !contains(required, am.content) {
		return adjacentMember{}, false
	}
	return am, true
}

// downgradeAdjacent rewrites a uniformly adjacent oneOf into internal form
// and records how to undo it.
func (r *constrainedRun) downgradeAdjacent(members []any) {
	var (
		tag, content string
		values       []string
		found        []adjacentMember
	)
	for _, raw := range members {
		m, ok := raw.(map[string]any)
		if !ok {
			return
		}
		am, ok := detectAdjacent(m)
		if !ok {
			return
		}
		if tag == "" {
			tag = am.tag
		} else if am.tag != tag {
			return
		}
		if !am.unit {
			if content == "" {
				content = am.content
			} else if am.content != content {
				return
			}
		}
		values = append(values, am.value)
		found = append(found, am)
	}
	if content == "" {
		return
	}
	for i, raw := range members {
		if found[i].unit {
			continue
		}
		m := raw.(map[string]any)
		inner := m["properties"].(map[string]any)[content].(map[string]any)
		if _, clash := inner["properties"].(map[string]any)[tag]; clash {
			r.diag.warnf("adjacent union %s/%s not flattened: variant %q has a field named %q", tag, content, found[i].value, tag)
			return
		}
	}
	for i, raw := range members {
		if !found[i].unit {
			flattenMember(raw.(map[string]any), content)
		}
	}
	r.addReversal(ReversalDescriptor{TagKey: tag, ContentKey: content, TagValues: values})
}

func flattenMember(m map[string]any, content string) {
	props := m["properties"].(map[string]any)
	inner := props[content].(map[string]any)
	delete(props, content)
	for k, v := range inner["properties"].(map[string]any) {
		props[k] = v
	}

	required, _ := jsonschema.Strings(m["required"])
	next := make([]string, 0, len(required))
	for _, k := range required {
		if k != content {
			next = append(next, k)
		}
	}
	innerReq, _ := jsonschema.Strings(inner["required"])
	for _, k := range innerReq {
		if !contains(next, k) {
			next = append(next, k)
		}
	}
	m["required"] = next

	if desc, ok := m["description"].(string); ok && desc != "" {
		m["description"] = desc + " (flattened for constrained output)"
	}
}

func (r *constrainedRun) addReversal(rd ReversalDescriptor) {
	for _, existing := range r.reversals {
		if existing.equal(rd) {
			return
		}
	}
	r.reversals = append(r.reversals, rd)
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

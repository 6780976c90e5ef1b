package dialect

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// ReversalDescriptor records an adjacent→internal flattening so that
// responses can be put back into adjacent form.
type ReversalDescriptor struct {
	TagKey     string   `json:"tag_key"`
	ContentKey string   `json:"content_key"`
	TagValues  []string `json:"tag_values"`
}

func (r ReversalDescriptor) has(v string) bool {
	for _, t := range r.TagValues {
		if t == v {
			return true
		}
	}
	return false
}

func (r ReversalDescriptor) equal(o ReversalDescriptor) bool {
	if r.TagKey != o.TagKey || r.ContentKey != o.ContentKey || len(r.TagValues) != len(o.TagValues) {
		return false
	}
	for i := range r.TagValues {
		if r.TagValues[i] != o.TagValues[i] {
			return false
		}
	}
	return true
}

// Reshape rewrites a decoded JSON tree in place and returns it. The tree is
// walked once; every object whose tag value belongs to a descriptor gets its
// other keys moved under that descriptor's content key. The first matching
// descriptor wins and a wrapped object is not visited again. Tag-only
// objects are left alone.
func Reshape(v any, revs ...ReversalDescriptor) any {
	if len(revs) == 0 {
		return v
	}
	return reshape(v, revs)
}

func reshape(v any, revs []ReversalDescriptor) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = reshape(child, revs)
		}
		if len(t) == 1 {
			return t
		}
		for _, r := range revs {
			tag, ok := t[r.TagKey].(string)
			if !ok || !r.has(tag) {
				continue
			}
			content := make(map[string]any, len(t)-1)
			for k, child := range t {
				if k == r.TagKey {
					continue
				}
				content[k] = child
				delete(t, k)
			}
			t[r.ContentKey] = content
			return t
		}
		return t
	case []any:
		for i := range t {
			t[i] = reshape(t[i], revs)
		}
	}
	return v
}

// ReshapeJSON decodes raw, reshapes it and re-encodes it. Numbers keep their
// original literal form. Without descriptors raw is returned unchanged.
func ReshapeJSON(raw []byte, revs ...ReversalDescriptor) ([]byte, error) {
	if len(revs) == 0 {
		return raw, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("dialect: decode response: %w", err)
	}
	out, err := json.Marshal(Reshape(v, revs...))
	if err != nil {
		return nil, fmt.Errorf("dialect: encode response: %w", err)
	}
	return out, nil
}

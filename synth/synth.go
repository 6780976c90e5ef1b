// Package synth turns container descriptors into canonical JSON Schema
// trees. Synthesis is pure and deterministic; the same descriptor always
// yields an equal tree.
package synth

import (
	"fmt"
	"strings"

	"github.com/reoring/structout/descriptor"
	"github.com/reoring/structout/jsonschema"
)

// Options tune synthesis.
type Options struct {
	// LiftAncestorRefs lifts a reference to any enclosing container into
	// $defs. Without it only direct self-reference is accepted and a cycle
	// through another container is reported as an error.
	LiftAncestorRefs bool
}

// Synthesize builds the canonical schema for c. References are resolved
// through r, which may be nil when c references nothing.
func Synthesize(c descriptor.ContainerDescriptor, r descriptor.Resolver, opts ...Options) (jsonschema.Schema, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	if err := descriptor.Validate(c); err != nil {
		return nil, err
	}
	s := &synthesizer{
		resolver: r,
		opts:     opt,
		lifted:   map[string]bool{},
		defs:     map[string]any{},
	}
	out, err := s.container(c)
	if err != nil {
		return nil, err
	}
	if len(s.defs) > 0 {
		out["$defs"] = s.defs
	}
	return out, nil
}

type synthesizer struct {
	resolver descriptor.Resolver
	opts     Options
	stack    []string
	lifted   map[string]bool
	defs     map[string]any
}

func refTo(name string) map[string]any {
	return map[string]any{"$ref": "#/$defs/" + name}
}

func (s *synthesizer) container(c descriptor.ContainerDescriptor) (map[string]any, error) {
	s.stack = append(s.stack, c.Name)
	var (
		body map[string]any
		err  error
	)
	if c.Kind == descriptor.KindEnum {
		body, err = s.enum(c)
	} else {
		body, err = s.object(c)
	}
	s.stack = s.stack[:len(s.stack)-1]
	if err != nil {
		return nil, err
	}
	if s.lifted[c.Name] {
		s.defs[c.Name] = body
		return refTo(c.Name), nil
	}
	return body, nil
}

func (s *synthesizer) ref(name string) (map[string]any, error) {
	if _, ok := s.defs[name]; ok {
		return refTo(name), nil
	}
	top := len(s.stack) - 1
	for i := top; i >= 0; i-- {
		if s.stack[i] != name {
			continue
		}
		if i != top && !s.opts.LiftAncestorRefs {
			return nil, &descriptor.Error{
				Container: s.stack[top],
				Reason: fmt.Sprintf("mutual recursion %s -> %s is not supported",
					strings.Join(s.stack[i:], " -> "), name),
			}
		}
		s.lifted[name] = true
		return refTo(name), nil
	}
	if s.resolver == nil {
		return nil, &descriptor.Error{Container: s.current(), Reason: fmt.Sprintf("unresolved reference %q (no resolver)", name)}
	}
	c, ok := s.resolver.Resolve(name)
	if !ok {
		return nil, &descriptor.Error{Container: s.current(), Reason: fmt.Sprintf("unresolved reference %q", name)}
	}
	if err := descriptor.Validate(c); err != nil {
		return nil, err
	}
	return s.container(c)
}

func (s *synthesizer) current() string {
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1]
}

func (s *synthesizer) shape(sh descriptor.TypeShape) (map[string]any, error) {
	switch v := sh.(type) {
	case descriptor.Primitive:
		return primitive(v.Of), nil
	case descriptor.Optional:
		return s.shape(v.Elem)
	case descriptor.Boxed:
		return s.shape(v.Elem)
	case descriptor.Array:
		items := map[string]any{"type": "string"}
		if v.Elem != nil {
			var err error
			if items, err = s.shape(v.Elem); err != nil {
				return nil, err
			}
		}
		out := map[string]any{"type": "array", "items": items}
		if v.Unique {
			out["uniqueItems"] = true
		}
		return out, nil
	case descriptor.Tuple:
		return s.fixedArray(v.Elems)
	case descriptor.Map:
		val, err := s.shape(v.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "object", "additionalProperties": val}, nil
	case descriptor.ObjectRef:
		return s.ref(v.Name)
	case descriptor.JSONAny:
		return map[string]any{}, nil
	}
	return nil, &descriptor.Error{Container: s.current(), Reason: fmt.Sprintf("unsupported shape %v", sh)}
}

func (s *synthesizer) fixedArray(elems []descriptor.TypeShape) (map[string]any, error) {
	prefix := make([]any, 0, len(elems))
	for _, e := range elems {
		es, err := s.shape(e)
		if err != nil {
			return nil, err
		}
		prefix = append(prefix, es)
	}
	return map[string]any{
		"type":        "array",
		"prefixItems": prefix,
		"minItems":    len(elems),
		"maxItems":    len(elems),
	}, nil
}

func primitive(k descriptor.PrimitiveKind) map[string]any {
	switch k {
	case descriptor.KindInteger, descriptor.KindNumber, descriptor.KindBoolean:
		return map[string]any{"type": string(k)}
	case descriptor.KindDateTime:
		return map[string]any{"type": "string", "format": "date-time", "description": "ISO-8601 formatted date and time"}
	case descriptor.KindDate:
		return map[string]any{"type": "string", "format": "date", "description": "ISO-8601 formatted date"}
	case descriptor.KindUUID:
		return map[string]any{"type": "string", "format": "uuid", "description": "UUID identifier string"}
	}
	return map[string]any{"type": "string"}
}

func (s *synthesizer) field(f descriptor.FieldDescriptor) (map[string]any, error) {
	out, err := s.shape(f.Shape)
	if err != nil {
		return nil, err
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if len(f.Examples) > 0 {
		out["examples"] = append([]any(nil), f.Examples...)
	}
	return out, nil
}

// fields builds properties and the required list. Optional fields are left
// out of required; nothing is made nullable.
func (s *synthesizer) fields(fs []descriptor.FieldDescriptor, rule descriptor.RenameRule) (map[string]any, []string, error) {
	props := make(map[string]any, len(fs))
	required := make([]string, 0, len(fs))
	for _, f := range fs {
		name := f.WireName(rule)
		fsch, err := s.field(f)
		if err != nil {
			return nil, nil, err
		}
		props[name] = fsch
		if !descriptor.IsOptional(f.Shape) {
			required = append(required, name)
		}
	}
	return props, required, nil
}

func (s *synthesizer) object(c descriptor.ContainerDescriptor) (map[string]any, error) {
	props, required, err := s.fields(c.Fields, c.RenameAll)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"type":       "object",
		"title":      title(c),
		"properties": props,
		"required":   required,
	}
	decorate(out, c)
	return out, nil
}

func title(c descriptor.ContainerDescriptor) string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

func decorate(out map[string]any, c descriptor.ContainerDescriptor) {
	if c.Description != "" {
		out["description"] = c.Description
	}
	if len(c.Examples) > 0 {
		out["examples"] = append([]any(nil), c.Examples...)
	}
}

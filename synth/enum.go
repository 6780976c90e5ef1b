package synth

import "github.com/reoring/structout/descriptor"

func (s *synthesizer) enum(c descriptor.ContainerDescriptor) (map[string]any, error) {
	if c.AllUnit() {
		names := make([]string, 0, len(c.Variants))
		for _, v := range c.Variants {
			names = append(names, v.WireName(c.RenameAll))
		}
		out := map[string]any{"type": "string", "enum": names, "title": title(c)}
		decorate(out, c)
		return out, nil
	}

	members := make([]any, 0, len(c.Variants))
	for _, v := range c.Variants {
		var (
			m   map[string]any
			err error
		)
		switch t := c.EffectiveTagging().(type) {
		case descriptor.Internal:
			m, err = s.internalVariant(v, c.RenameAll, t.Tag)
		case descriptor.Adjacent:
			m, err = s.adjacentVariant(v, c.RenameAll, t)
		case descriptor.Untagged:
			m, err = s.untaggedVariant(v)
		default:
			m, err = s.externalVariant(v, c.RenameAll)
		}
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	out := map[string]any{"oneOf": members, "title": title(c)}
	decorate(out, c)
	return out, nil
}

func variantDescription(v descriptor.VariantDescriptor) string {
	if v.Description != "" {
		return v.Description
	}
	return "Variant " + v.Name
}

func tagProperty(name string) map[string]any {
	return map[string]any{"type": "string", "enum": []string{name}}
}

// payload is the schema of a non-unit variant's data: the single element of
// a one-element tuple, a fixed-length array for wider tuples, or an object
// for named fields.
func (s *synthesizer) payload(v descriptor.VariantDescriptor) (map[string]any, error) {
	if v.Kind == descriptor.VariantTuple {
		if len(v.Elems) == 1 {
			return s.shape(v.Elems[0])
		}
		return s.fixedArray(v.Elems)
	}
	props, required, err := s.fields(v.Fields, descriptor.RenameNone)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}, nil
}

func wrapper(props map[string]any, required []string, desc string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
		"description":          desc,
	}
}

func (s *synthesizer) externalVariant(v descriptor.VariantDescriptor, rule descriptor.RenameRule) (map[string]any, error) {
	name := v.WireName(rule)
	if v.IsUnit() {
		return map[string]any{"type": "string", "enum": []string{name}, "description": variantDescription(v)}, nil
	}
	p, err := s.payload(v)
	if err != nil {
		return nil, err
	}
	return wrapper(map[string]any{name: p}, []string{name}, variantDescription(v)), nil
}

func (s *synthesizer) internalVariant(v descriptor.VariantDescriptor, rule descriptor.RenameRule, tag string) (map[string]any, error) {
	props := map[string]any{tag: tagProperty(v.WireName(rule))}
	required := []string{tag}
	// Tuple payloads cannot sit next to a tag; they degrade to the tag alone.
	if v.Kind == descriptor.VariantNamed {
		fprops, freq, err := s.fields(v.Fields, descriptor.RenameNone)
		if err != nil {
			return nil, err
		}
		for k, p := range fprops {
			props[k] = p
		}
		required = append(required, freq...)
	}
	return wrapper(props, required, variantDescription(v)), nil
}

func (s *synthesizer) adjacentVariant(v descriptor.VariantDescriptor, rule descriptor.RenameRule, t descriptor.Adjacent) (map[string]any, error) {
	props := map[string]any{t.Tag: tagProperty(v.WireName(rule))}
	required := []string{t.Tag}
	if !v.IsUnit() {
		p, err := s.payload(v)
		if err != nil {
			return nil, err
		}
		props[t.Content] = p
		required = append(required, t.Content)
	}
	return wrapper(props, required, variantDescription(v)), nil
}

func (s *synthesizer) untaggedVariant(v descriptor.VariantDescriptor) (map[string]any, error) {
	if v.IsUnit() {
		return map[string]any{"type": "null", "description": variantDescription(v)}, nil
	}
	p, err := s.payload(v)
	if err != nil {
		return nil, err
	}
	if _, has := p["description"]; !has {
		p["description"] = variantDescription(v)
	}
	return p, nil
}

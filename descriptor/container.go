package descriptor

import (
	"fmt"
	"strings"
)

// ContainerKind distinguishes struct and enum containers.
type ContainerKind int

const (
	KindStruct ContainerKind = iota
	KindEnum
)

func (k ContainerKind) String() string {
	if k == KindEnum {
		return "enum"
	}
	return "struct"
}

// FieldDescriptor describes one named field of a struct or of a named enum
// variant.
type FieldDescriptor struct {
	Name        string
	Shape       TypeShape
	Description string
	Examples    []any
	// Rename overrides the wire name of the field.
	Rename string
}

// WireName resolves the field's JSON name: field rename, then the container
// rule, then the original name.
func (f FieldDescriptor) WireName(rule RenameRule) string {
	if f.Rename != "" {
		return f.Rename
	}
	return rule.Apply(f.Name)
}

// VariantKind is the payload kind of an enum variant.
type VariantKind int

const (
	VariantUnit VariantKind = iota
	VariantTuple
	VariantNamed
)

// VariantDescriptor describes one enum variant. Elems is used by tuple
// variants, Fields by named variants.
type VariantDescriptor struct {
	Name        string
	Kind        VariantKind
	Elems       []TypeShape
	Fields      []FieldDescriptor
	Description string
	Rename      string
}

// WireName resolves the variant's tag value.
func (v VariantDescriptor) WireName(rule RenameRule) string {
	if v.Rename != "" {
		return v.Rename
	}
	return rule.Apply(v.Name)
}

// IsUnit reports whether the variant carries no payload.
func (v VariantDescriptor) IsUnit() bool {
	switch v.Kind {
	case VariantTuple:
		return len(v.Elems) == 0
	case VariantNamed:
		return len(v.Fields) == 0
	}
	return true
}

// EnumTagging selects the wire representation of an enum. A nil tagging
// means External.
type EnumTagging interface {
	String() string
	tagging()
}

// External encodes a variant as {"Variant": payload}.
type External struct{}

// Internal merges payload fields next to a tag field.
type Internal struct{ Tag string }

// Adjacent emits the tag and the payload as sibling fields.
type Adjacent struct{ Tag, Content string }

// Untagged emits the bare payload.
type Untagged struct{}

func (External) tagging() {}
func (Internal) tagging() {}
func (Adjacent) tagging() {}
func (Untagged) tagging() {}

func (External) String() string   { return "external" }
func (t Internal) String() string { return fmt.Sprintf("internal(tag=%s)", t.Tag) }
func (t Adjacent) String() string {
	return fmt.Sprintf("adjacent(tag=%s,content=%s)", t.Tag, t.Content)
}
func (Untagged) String() string { return "untagged" }

// ContainerDescriptor describes a struct or an enum.
type ContainerDescriptor struct {
	Kind        ContainerKind
	Name        string
	Description string
	Title       string
	Examples    []any
	RenameAll   RenameRule
	// ValidationHook names a semantic check applied after decoding.
	ValidationHook string

	Fields   []FieldDescriptor
	Variants []VariantDescriptor
	Tagging  EnumTagging
}

// EffectiveTagging returns the tagging mode, defaulting to External.
func (c ContainerDescriptor) EffectiveTagging() EnumTagging {
	if c.Tagging == nil {
		return External{}
	}
	return c.Tagging
}

// AllUnit reports whether every variant of an enum is a unit variant.
func (c ContainerDescriptor) AllUnit() bool {
	if c.Kind != KindEnum || len(c.Variants) == 0 {
		return false
	}
	for _, v := range c.Variants {
		if !v.IsUnit() {
			return false
		}
	}
	return true
}

// Refs lists the descriptor names referenced by the container's fields and
// variants.
func (c ContainerDescriptor) Refs() []string {
	var out []string
	seen := map[string]bool{}
	add := func(s TypeShape) {
		for _, n := range RefNames(s) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	for _, f := range c.Fields {
		add(f.Shape)
	}
	for _, v := range c.Variants {
		for _, e := range v.Elems {
			add(e)
		}
		for _, f := range v.Fields {
			add(f.Shape)
		}
	}
	return out
}

// Error reports a malformed descriptor. It is a programmer error and is
// never retried.
type Error struct {
	Container string
	Path      string // dotted location inside the container, may be empty
	Reason    string
}

func (e *Error) Error() string {
	b := &strings.Builder{}
	b.WriteString("descriptor")
	if e.Container != "" {
		fmt.Fprintf(b, " %s", e.Container)
	}
	if e.Path != "" {
		fmt.Fprintf(b, " at %s", e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func errorf(container, path, format string, a ...any) *Error {
	return &Error{Container: container, Path: path, Reason: fmt.Sprintf(format, a...)}
}

// Validate checks the structural invariants of a single descriptor. It does
// not resolve references.
func Validate(c ContainerDescriptor) error {
	if strings.TrimSpace(c.Name) == "" {
		return errorf("", "", "container name is empty")
	}
	if _, err := ParseRenameRule(string(c.RenameAll)); err != nil {
		return errorf(c.Name, "", "%v", err)
	}
	switch c.Kind {
	case KindStruct:
		if len(c.Variants) > 0 {
			return errorf(c.Name, "", "struct declares variants")
		}
		if c.Tagging != nil {
			return errorf(c.Name, "", "struct declares enum tagging %s", c.Tagging)
		}
		if len(c.Fields) == 0 {
			return errorf(c.Name, "", "struct has no fields")
		}
		return validateFields(c.Name, "", c.Fields, c.RenameAll)
	case KindEnum:
		if len(c.Fields) > 0 {
			return errorf(c.Name, "", "enum declares struct fields")
		}
		if len(c.Variants) == 0 {
			return errorf(c.Name, "", "enum has no variants")
		}
		return validateEnum(c)
	}
	return errorf(c.Name, "", "unknown container kind %d", c.Kind)
}

func validateFields(container, prefix string, fields []FieldDescriptor, rule RenameRule) error {
	seen := map[string]string{}
	for _, f := range fields {
		path := prefix + f.Name
		if f.Name == "" {
			return errorf(container, prefix, "field name is empty")
		}
		if f.Shape == nil {
			return errorf(container, path, "field has no shape")
		}
		if err := validateShape(container, path, f.Shape); err != nil {
			return err
		}
		wire := f.WireName(rule)
		if prev, dup := seen[wire]; dup {
			return errorf(container, path, "wire name %q already used by %s", wire, prev)
		}
		seen[wire] = f.Name
	}
	return nil
}

func validateShape(container, path string, s TypeShape) error {
	switch v := s.(type) {
	case nil:
		return errorf(container, path, "nil shape")
	case Optional:
		return validateShape(container, path, v.Elem)
	case Boxed:
		return validateShape(container, path, v.Elem)
	case Array:
		return validateShape(container, path, v.Elem)
	case Map:
		return validateShape(container, path, v.Value)
	case Tuple:
		if len(v.Elems) == 0 {
			return errorf(container, path, "tuple has no elements")
		}
		for i, e := range v.Elems {
			if err := validateShape(container, fmt.Sprintf("%s.%d", path, i), e); err != nil {
				return err
			}
		}
	case ObjectRef:
		if v.Name == "" {
			return errorf(container, path, "reference has no name")
		}
	case Primitive:
		switch v.Of {
		case KindString, KindInteger, KindNumber, KindBoolean, KindDateTime, KindDate, KindUUID, KindUnknown:
		default:
			return errorf(container, path, "unknown primitive kind %q", v.Of)
		}
	}
	return nil
}

func validateEnum(c ContainerDescriptor) error {
	switch t := c.EffectiveTagging().(type) {
	case Internal:
		if t.Tag == "" {
			return errorf(c.Name, "", "internal tagging requires a tag field")
		}
	case Adjacent:
		if t.Tag == "" || t.Content == "" {
			return errorf(c.Name, "", "adjacent tagging requires tag and content fields")
		}
		if t.Tag == t.Content {
			return errorf(c.Name, "", "adjacent tag and content fields are both %q", t.Tag)
		}
	}
	seen := map[string]string{}
	for _, v := range c.Variants {
		if v.Name == "" {
			return errorf(c.Name, "", "variant name is empty")
		}
		wire := v.WireName(c.RenameAll)
		if prev, dup := seen[wire]; dup {
			return errorf(c.Name, v.Name, "variant tag %q already used by %s", wire, prev)
		}
		seen[wire] = v.Name
		switch v.Kind {
		case VariantUnit:
			if len(v.Elems) > 0 || len(v.Fields) > 0 {
				return errorf(c.Name, v.Name, "unit variant carries a payload")
			}
		case VariantTuple:
			if len(v.Fields) > 0 {
				return errorf(c.Name, v.Name, "tuple variant declares named fields")
			}
			for i, e := range v.Elems {
				if err := validateShape(c.Name, fmt.Sprintf("%s.%d", v.Name, i), e); err != nil {
					return err
				}
			}
		case VariantNamed:
			if len(v.Elems) > 0 {
				return errorf(c.Name, v.Name, "named variant declares tuple elements")
			}
			if err := validateFields(c.Name, v.Name+".", v.Fields, RenameNone); err != nil {
				return err
			}
			if t, ok := c.EffectiveTagging().(Internal); ok {
				for _, f := range v.Fields {
					if f.WireName(RenameNone) == t.Tag {
						return errorf(c.Name, v.Name+"."+f.Name, "field collides with tag %q", t.Tag)
					}
				}
			}
		default:
			return errorf(c.Name, v.Name, "unknown variant kind %d", v.Kind)
		}
	}
	return nil
}

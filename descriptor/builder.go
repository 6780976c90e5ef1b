package descriptor

// StructBuilder assembles a struct descriptor.
type StructBuilder struct {
	c ContainerDescriptor
}

// FieldStep configures the most recently added field.
type FieldStep struct {
	b   *StructBuilder
	idx int
}

// Struct starts a struct descriptor named name.
func Struct(name string) *StructBuilder {
	return &StructBuilder{c: ContainerDescriptor{Kind: KindStruct, Name: name}}
}

// Describe sets the container description.
func (b *StructBuilder) Describe(desc string) *StructBuilder {
	b.c.Description = desc
	return b
}

// Title overrides the schema title (defaults to the name).
func (b *StructBuilder) Title(title string) *StructBuilder {
	b.c.Title = title
	return b
}

// Examples appends container-level example values.
func (b *StructBuilder) Examples(v ...any) *StructBuilder {
	b.c.Examples = append(b.c.Examples, v...)
	return b
}

// RenameAll sets the container rename rule.
func (b *StructBuilder) RenameAll(r RenameRule) *StructBuilder {
	b.c.RenameAll = r
	return b
}

// Hook names a semantic validation hook.
func (b *StructBuilder) Hook(id string) *StructBuilder {
	b.c.ValidationHook = id
	return b
}

// Field adds a field.
func (b *StructBuilder) Field(name string, shape TypeShape) *FieldStep {
	b.c.Fields = append(b.c.Fields, FieldDescriptor{Name: name, Shape: shape})
	return &FieldStep{b: b, idx: len(b.c.Fields) - 1}
}

// Build validates and returns the descriptor.
func (b *StructBuilder) Build() (ContainerDescriptor, error) {
	c := b.c
	c.Fields = append([]FieldDescriptor(nil), b.c.Fields...)
	if err := Validate(c); err != nil {
		return ContainerDescriptor{}, err
	}
	return c, nil
}

// MustBuild is Build that panics on error.
func (b *StructBuilder) MustBuild() ContainerDescriptor {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

func (f *FieldStep) field() *FieldDescriptor { return &f.b.c.Fields[f.idx] }

// Describe sets the field description.
func (f *FieldStep) Describe(desc string) *FieldStep {
	f.field().Description = desc
	return f
}

// Example appends example values for the field.
func (f *FieldStep) Example(v ...any) *FieldStep {
	f.field().Examples = append(f.field().Examples, v...)
	return f
}

// Rename overrides the field's wire name.
func (f *FieldStep) Rename(wire string) *FieldStep {
	f.field().Rename = wire
	return f
}

func (f *FieldStep) Field(name string, shape TypeShape) *FieldStep { return f.b.Field(name, shape) }
func (f *FieldStep) Build() (ContainerDescriptor, error)            { return f.b.Build() }
func (f *FieldStep) MustBuild() ContainerDescriptor                 { return f.b.MustBuild() }

// F is a standalone field literal for named enum variants.
func F(name string, shape TypeShape) FieldDescriptor {
	return FieldDescriptor{Name: name, Shape: shape}
}

// EnumBuilder assembles an enum descriptor.
type EnumBuilder struct {
	c ContainerDescriptor
}

// VariantStep configures the most recently added variant.
type VariantStep struct {
	b   *EnumBuilder
	idx int
}

// Enum starts an enum descriptor with External tagging.
func Enum(name string) *EnumBuilder {
	return &EnumBuilder{c: ContainerDescriptor{Kind: KindEnum, Name: name, Tagging: External{}}}
}

func (b *EnumBuilder) Describe(desc string) *EnumBuilder {
	b.c.Description = desc
	return b
}

func (b *EnumBuilder) Title(title string) *EnumBuilder {
	b.c.Title = title
	return b
}

func (b *EnumBuilder) Examples(v ...any) *EnumBuilder {
	b.c.Examples = append(b.c.Examples, v...)
	return b
}

func (b *EnumBuilder) RenameAll(r RenameRule) *EnumBuilder {
	b.c.RenameAll = r
	return b
}

func (b *EnumBuilder) Hook(id string) *EnumBuilder {
	b.c.ValidationHook = id
	return b
}

// Internal switches to internal tagging with the given tag field.
func (b *EnumBuilder) Internal(tag string) *EnumBuilder {
	b.c.Tagging = Internal{Tag: tag}
	return b
}

// Adjacent switches to adjacent tagging.
func (b *EnumBuilder) Adjacent(tag, content string) *EnumBuilder {
	b.c.Tagging = Adjacent{Tag: tag, Content: content}
	return b
}

// Untagged switches to untagged representation.
func (b *EnumBuilder) Untagged() *EnumBuilder {
	b.c.Tagging = Untagged{}
	return b
}

func (b *EnumBuilder) add(v VariantDescriptor) *VariantStep {
	b.c.Variants = append(b.c.Variants, v)
	return &VariantStep{b: b, idx: len(b.c.Variants) - 1}
}

// Unit adds a payload-free variant.
func (b *EnumBuilder) Unit(name string) *VariantStep {
	return b.add(VariantDescriptor{Name: name, Kind: VariantUnit})
}

// Tuple adds a positional variant.
func (b *EnumBuilder) Tuple(name string, elems ...TypeShape) *VariantStep {
	return b.add(VariantDescriptor{Name: name, Kind: VariantTuple, Elems: append([]TypeShape(nil), elems...)})
}

// Named adds a variant with named fields.
func (b *EnumBuilder) Named(name string, fields ...FieldDescriptor) *VariantStep {
	return b.add(VariantDescriptor{Name: name, Kind: VariantNamed, Fields: append([]FieldDescriptor(nil), fields...)})
}

func (b *EnumBuilder) Build() (ContainerDescriptor, error) {
	c := b.c
	c.Variants = append([]VariantDescriptor(nil), b.c.Variants...)
	if err := Validate(c); err != nil {
		return ContainerDescriptor{}, err
	}
	return c, nil
}

func (b *EnumBuilder) MustBuild() ContainerDescriptor {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

func (v *VariantStep) variant() *VariantDescriptor { return &v.b.c.Variants[v.idx] }

// Describe sets the variant description.
func (v *VariantStep) Describe(desc string) *VariantStep {
	v.variant().Description = desc
	return v
}

// Rename overrides the variant's tag value.
func (v *VariantStep) Rename(wire string) *VariantStep {
	v.variant().Rename = wire
	return v
}

func (v *VariantStep) Unit(name string) *VariantStep { return v.b.Unit(name) }
func (v *VariantStep) Tuple(name string, elems ...TypeShape) *VariantStep {
	return v.b.Tuple(name, elems...)
}
func (v *VariantStep) Named(name string, fields ...FieldDescriptor) *VariantStep {
	return v.b.Named(name, fields...)
}
func (v *VariantStep) Build() (ContainerDescriptor, error) { return v.b.Build() }
func (v *VariantStep) MustBuild() ContainerDescriptor      { return v.b.MustBuild() }

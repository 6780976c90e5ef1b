package descriptor

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Describer lets a Go type supply its own descriptor. Enums, which Go cannot
// express as a type, are registered this way.
type Describer interface {
	StructoutDescriptor() ContainerDescriptor
}

var (
	describerType = reflect.TypeOf((*Describer)(nil)).Elem()
	timeType      = reflect.TypeOf(time.Time{})
	uuidType      = reflect.TypeOf(uuid.UUID{})
	rawType       = reflect.TypeOf(json.RawMessage(nil))
)

// ResolveStructKey resolves a struct field's external key.
// Priority: structout:"name=..." > json tag name > field name; "-" disables the field.
func ResolveStructKey(sf reflect.StructField) string {
	if gt := sf.Tag.Get("structout"); gt != "" {
		for _, p := range strings.Split(gt, ",") {
			p = strings.TrimSpace(p)
			if p == "-" {
				return "-"
			}
			if strings.HasPrefix(p, "name=") {
				return strings.TrimPrefix(p, "name=")
			}
		}
	}
	if jt := sf.Tag.Get("json"); jt != "" {
		if jt == "-" {
			return "-"
		}
		if i := strings.IndexByte(jt, ','); i >= 0 {
			if i == 0 {
				return sf.Name
			}
			return jt[:i]
		}
		return jt
	}
	return sf.Name
}

func tagOptions(sf reflect.StructField) map[string]bool {
	opts := map[string]bool{}
	if jt := sf.Tag.Get("json"); jt != "" {
		for _, p := range strings.Split(jt, ",")[1:] {
			opts[strings.TrimSpace(p)] = true
		}
	}
	if gt := sf.Tag.Get("structout"); gt != "" {
		for _, p := range strings.Split(gt, ",") {
			p = strings.TrimSpace(p)
			if p != "" && !strings.Contains(p, "=") {
				opts[p] = true
			}
		}
	}
	return opts
}

// Derive builds the descriptor for T. Nested struct types become ObjectRefs
// named after their Go type; use DeriveInto to register them too.
func Derive[T any]() (ContainerDescriptor, error) {
	d := &deriver{seen: map[reflect.Type]string{}}
	var zero T
	c, err := d.container(reflect.TypeOf(&zero).Elem())
	if err != nil {
		return ContainerDescriptor{}, err
	}
	return c, nil
}

// DeriveInto derives T and every struct type reachable from it, registering
// each descriptor in r. Names already present in r are left untouched.
func DeriveInto[T any](r *Registry) (ContainerDescriptor, error) {
	d := &deriver{seen: map[reflect.Type]string{}}
	var zero T
	root, err := d.container(reflect.TypeOf(&zero).Elem())
	if err != nil {
		return ContainerDescriptor{}, err
	}
	all := append([]ContainerDescriptor{root}, d.nested...)
	for _, c := range all {
		if _, exists := r.Resolve(c.Name); exists {
			continue
		}
		if err := r.Register(c); err != nil {
			return ContainerDescriptor{}, err
		}
	}
	return root, nil
}

type deriver struct {
	seen   map[reflect.Type]string
	nested []ContainerDescriptor
}

func (d *deriver) container(t reflect.Type) (ContainerDescriptor, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if c, ok := describe(t); ok {
		d.seen[t] = c.Name
		return c, nil
	}
	if t.Kind() != reflect.Struct {
		return ContainerDescriptor{}, fmt.Errorf("descriptor: cannot derive from %s (want struct or Describer)", t)
	}
	if t.Name() == "" {
		return ContainerDescriptor{}, fmt.Errorf("descriptor: cannot derive from anonymous struct %s", t)
	}
	d.seen[t] = t.Name()
	c := ContainerDescriptor{Kind: KindStruct, Name: t.Name()}
	fields, err := d.fields(t, t.Name())
	if err != nil {
		return ContainerDescriptor{}, err
	}
	c.Fields = fields
	if err := Validate(c); err != nil {
		return ContainerDescriptor{}, err
	}
	return c, nil
}

func (d *deriver) fields(t reflect.Type, owner string) ([]FieldDescriptor, error) {
	var out []FieldDescriptor
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() && !(sf.Anonymous && indirect(sf.Type).Kind() == reflect.Struct) {
			continue
		}
		key := ResolveStructKey(sf)
		if key == "-" {
			continue
		}
		ft := sf.Type
		if sf.Anonymous && sf.Tag.Get("json") == "" && indirect(ft).Kind() == reflect.Struct {
			if _, ok := describe(indirect(ft)); !ok {
				embedded, err := d.fields(indirect(ft), owner)
				if err != nil {
					return nil, err
				}
				out = append(out, embedded...)
				continue
			}
		}
		shape, err := d.shape(ft, owner+"."+sf.Name)
		if err != nil {
			return nil, err
		}
		opts := tagOptions(sf)
		if (opts["omitempty"] || opts["omitzero"] || opts["optional"]) && !IsOptional(shape) {
			shape = Optional{Elem: shape}
		}
		fd := FieldDescriptor{Name: sf.Name, Shape: shape, Description: sf.Tag.Get("description")}
		if key != sf.Name {
			fd.Rename = key
		}
		if ex, ok := sf.Tag.Lookup("example"); ok {
			fd.Examples = []any{ex}
		}
		out = append(out, fd)
	}
	return out, nil
}

func (d *deriver) shape(t reflect.Type, path string) (TypeShape, error) {
	switch t {
	case timeType:
		return DateTime(), nil
	case uuidType:
		return UUID(), nil
	case rawType:
		return Any(), nil
	}
	if c, ok := describe(t); ok {
		if _, done := d.seen[t]; !done {
			d.seen[t] = c.Name
			d.nested = append(d.nested, c)
		}
		return Ref(c.Name), nil
	}
	switch t.Kind() {
	case reflect.Pointer:
		elem, err := d.shape(t.Elem(), path)
		if err != nil {
			return nil, err
		}
		if elem.Kind() == ShapeObjectRef {
			elem = Box(elem)
		}
		return Opt(elem), nil
	case reflect.String:
		return String(), nil
	case reflect.Bool:
		return Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(), nil
	case reflect.Float32, reflect.Float64:
		return Number(), nil
	case reflect.Interface:
		return Any(), nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return String(), nil
		}
		elem, err := d.shape(t.Elem(), path+"[]")
		if err != nil {
			return nil, err
		}
		return ArrayOf(elem), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("descriptor: %s: map key must be a string, got %s", path, t.Key())
		}
		v, err := d.shape(t.Elem(), path+"{}")
		if err != nil {
			return nil, err
		}
		return MapOf(v), nil
	case reflect.Struct:
		if name, ok := d.seen[t]; ok {
			return Ref(name), nil
		}
		c, err := d.container(t)
		if err != nil {
			return nil, fmt.Errorf("descriptor: %s: %w", path, err)
		}
		d.nested = append(d.nested, c)
		return Ref(c.Name), nil
	}
	return nil, fmt.Errorf("descriptor: %s: unsupported Go type %s", path, t)
}

func describe(t reflect.Type) (ContainerDescriptor, bool) {
	if t.Implements(describerType) {
		return reflect.Zero(t).Interface().(Describer).StructoutDescriptor(), true
	}
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(describerType) {
		return reflect.New(t).Interface().(Describer).StructoutDescriptor(), true
	}
	return ContainerDescriptor{}, false
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

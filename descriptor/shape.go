// Package descriptor defines the passive type model consumed by schema
// synthesis. Descriptors are produced once (builders, Derive, YAML files) and
// treated as read-only afterwards.
package descriptor

import (
	"fmt"
	"strings"
)

// ShapeKind identifies a TypeShape variant.
type ShapeKind int

const (
	ShapePrimitive ShapeKind = iota
	ShapeOptional
	ShapeArray
	ShapeTuple
	ShapeMap
	ShapeBoxed
	ShapeObjectRef
	ShapeAny
)

// TypeShape is the closed set of field shapes. Only types in this package
// implement it.
type TypeShape interface {
	Kind() ShapeKind
	String() string
	isShape()
}

// PrimitiveKind names a scalar kind. The string-formatted kinds (DateTime,
// Date, UUID) are JSON strings with a format annotation.
type PrimitiveKind string

const (
	KindString   PrimitiveKind = "string"
	KindInteger  PrimitiveKind = "integer"
	KindNumber   PrimitiveKind = "number"
	KindBoolean  PrimitiveKind = "boolean"
	KindDateTime PrimitiveKind = "date-time"
	KindDate     PrimitiveKind = "date"
	KindUUID     PrimitiveKind = "uuid"
	// KindUnknown marks an element type that could not be detected.
	KindUnknown PrimitiveKind = "unknown"
)

// Primitive is a scalar shape.
type Primitive struct{ Of PrimitiveKind }

// Optional marks a field that may be omitted.
type Optional struct{ Elem TypeShape }

// Array is a homogeneous list. Unique marks set semantics.
type Array struct {
	Elem   TypeShape
	Unique bool
}

// Tuple is a fixed-length heterogeneous list.
type Tuple struct{ Elems []TypeShape }

// Map is an object with string keys and uniform values.
type Map struct{ Value TypeShape }

// Boxed is an ownership indirection. It is transparent to schema synthesis.
type Boxed struct{ Elem TypeShape }

// ObjectRef refers to another container descriptor by name.
type ObjectRef struct{ Name string }

// JSONAny accepts any JSON value.
type JSONAny struct{}

func (Primitive) Kind() ShapeKind { return ShapePrimitive }
func (Optional) Kind() ShapeKind  { return ShapeOptional }
func (Array) Kind() ShapeKind     { return ShapeArray }
func (Tuple) Kind() ShapeKind     { return ShapeTuple }
func (Map) Kind() ShapeKind       { return ShapeMap }
func (Boxed) Kind() ShapeKind     { return ShapeBoxed }
func (ObjectRef) Kind() ShapeKind { return ShapeObjectRef }
func (JSONAny) Kind() ShapeKind   { return ShapeAny }

func (Primitive) isShape() {}
func (Optional) isShape()  {}
func (Array) isShape()     {}
func (Tuple) isShape()     {}
func (Map) isShape()       {}
func (Boxed) isShape()     {}
func (ObjectRef) isShape() {}
func (JSONAny) isShape()   {}

func (p Primitive) String() string { return string(p.Of) }
func (o Optional) String() string  { return "optional<" + shapeString(o.Elem) + ">" }
func (a Array) String() string {
	if a.Unique {
		return "set<" + shapeString(a.Elem) + ">"
	}
	return "array<" + shapeString(a.Elem) + ">"
}
func (t Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = shapeString(e)
	}
	return "tuple<" + strings.Join(parts, ",") + ">"
}
func (m Map) String() string       { return "map<" + shapeString(m.Value) + ">" }
func (b Boxed) String() string     { return "box<" + shapeString(b.Elem) + ">" }
func (r ObjectRef) String() string { return r.Name }
func (JSONAny) String() string     { return "any" }

func shapeString(s TypeShape) string {
	if s == nil {
		return "<nil>"
	}
	return s.String()
}

// Shorthand constructors.

func String() TypeShape   { return Primitive{Of: KindString} }
func Int() TypeShape      { return Primitive{Of: KindInteger} }
func Number() TypeShape   { return Primitive{Of: KindNumber} }
func Bool() TypeShape     { return Primitive{Of: KindBoolean} }
func DateTime() TypeShape { return Primitive{Of: KindDateTime} }
func Date() TypeShape     { return Primitive{Of: KindDate} }
func UUID() TypeShape     { return Primitive{Of: KindUUID} }
func Unknown() TypeShape  { return Primitive{Of: KindUnknown} }
func Any() TypeShape      { return JSONAny{} }

func Opt(elem TypeShape) TypeShape     { return Optional{Elem: elem} }
func ArrayOf(elem TypeShape) TypeShape { return Array{Elem: elem} }
func SetOf(elem TypeShape) TypeShape   { return Array{Elem: elem, Unique: true} }
func MapOf(value TypeShape) TypeShape  { return Map{Value: value} }
func Box(elem TypeShape) TypeShape     { return Boxed{Elem: elem} }
func Ref(name string) TypeShape        { return ObjectRef{Name: name} }
func TupleOf(elems ...TypeShape) TypeShape {
	return Tuple{Elems: append([]TypeShape(nil), elems...)}
}

// IsOptional reports whether the outermost layer of s is Optional. Boxed is
// looked through because it carries no schema meaning.
func IsOptional(s TypeShape) bool {
	for {
		switch v := s.(type) {
		case Optional:
			return true
		case Boxed:
			s = v.Elem
		default:
			return false
		}
	}
}

// RefNames returns every ObjectRef name reachable from s through Optional,
// Boxed, Array, Tuple and Map layers, in first-seen order.
func RefNames(s TypeShape) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(TypeShape)
	walk = func(s TypeShape) {
		switch v := s.(type) {
		case ObjectRef:
			if !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v.Name)
			}
		case Optional:
			walk(v.Elem)
		case Boxed:
			walk(v.Elem)
		case Array:
			walk(v.Elem)
		case Map:
			walk(v.Value)
		case Tuple:
			for _, e := range v.Elems {
				walk(e)
			}
		}
	}
	walk(s)
	return out
}

// ParseShape parses the compact type expression used by descriptor files:
//
//	string | integer | number | boolean | date-time | date | uuid | any
//	optional<T> | array<T> | set<T> | map<T> | box<T> | tuple<A,B,...>
//	TypeName (reference to another descriptor)
//
// A trailing "?" is accepted as shorthand for optional<T>.
func ParseShape(expr string) (TypeShape, error) {
	p := &shapeParser{src: expr}
	s, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("descriptor: unexpected %q at offset %d in %q", p.src[p.pos:], p.pos, expr)
	}
	return s, nil
}

type shapeParser struct {
	src string
	pos int
}

func (p *shapeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *shapeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '<' || c == '>' || c == ',' || c == '?' || c == ' ' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *shapeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return fmt.Errorf("descriptor: expected %q at offset %d in %q", c, p.pos, p.src)
	}
	p.pos++
	return nil
}

func (p *shapeParser) peek(c byte) bool {
	p.skipSpace()
	return p.pos < len(p.src) && p.src[p.pos] == c
}

func (p *shapeParser) parse() (TypeShape, error) {
	s, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	if p.peek('?') {
		p.pos++
		s = Optional{Elem: s}
	}
	return s, nil
}

func (p *shapeParser) parseBase() (TypeShape, error) {
	name := p.ident()
	if name == "" {
		return nil, fmt.Errorf("descriptor: missing type name at offset %d in %q", p.pos, p.src)
	}
	switch name {
	case "string", "integer", "number", "boolean", "date-time", "date", "uuid", "unknown":
		return Primitive{Of: PrimitiveKind(name)}, nil
	case "any":
		return JSONAny{}, nil
	case "optional", "array", "set", "map", "box":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		switch name {
		case "optional":
			return Optional{Elem: elem}, nil
		case "array":
			return Array{Elem: elem}, nil
		case "set":
			return Array{Elem: elem, Unique: true}, nil
		case "map":
			return Map{Value: elem}, nil
		default:
			return Boxed{Elem: elem}, nil
		}
	case "tuple":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		var elems []TypeShape
		for {
			e, err := p.parse()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.peek(',') {
				p.pos++
				continue
			}
			break
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return Tuple{Elems: elems}, nil
	}
	return ObjectRef{Name: name}, nil
}

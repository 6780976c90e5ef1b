package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// fileContainer is the YAML form of a ContainerDescriptor.
type fileContainer struct {
	Kind        string        `yaml:"kind"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Title       string        `yaml:"title"`
	Examples    []any         `yaml:"examples"`
	RenameAll   string        `yaml:"renameAll"`
	Hook        string        `yaml:"hook"`
	Fields      []fileField   `yaml:"fields"`
	Tagging     *fileTagging  `yaml:"tagging"`
	Variants    []fileVariant `yaml:"variants"`
}

type fileField struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Examples    []any  `yaml:"examples"`
	Rename      string `yaml:"rename"`
}

type fileTagging struct {
	Mode    string `yaml:"mode"`
	Tag     string `yaml:"tag"`
	Content string `yaml:"content"`
}

type fileVariant struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Rename      string      `yaml:"rename"`
	Elems       []string    `yaml:"elems"`
	Fields      []fileField `yaml:"fields"`
}

// LoadYAML decodes one or more descriptors from a (possibly multi-document)
// YAML stream. Each document is either a single container or a list of them.
func LoadYAML(data []byte) ([]ContainerDescriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out []ContainerDescriptor
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("descriptor: decode yaml: %w", err)
		}
		if len(node.Content) == 0 {
			continue
		}
		var docs []fileContainer
		if node.Content[0].Kind == yaml.SequenceNode {
			if err := node.Decode(&docs); err != nil {
				return nil, fmt.Errorf("descriptor: decode yaml: %w", err)
			}
		} else {
			var one fileContainer
			if err := node.Decode(&one); err != nil {
				return nil, fmt.Errorf("descriptor: decode yaml: %w", err)
			}
			docs = []fileContainer{one}
		}
		for _, fc := range docs {
			c, err := fc.toDescriptor()
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// LoadYAMLRegistry loads descriptors into a fresh registry and checks that all
// references resolve.
func LoadYAMLRegistry(data []byte) (*Registry, error) {
	cs, err := LoadYAML(data)
	if err != nil {
		return nil, err
	}
	r, err := NewRegistry(cs...)
	if err != nil {
		return nil, err
	}
	if err := r.CheckRefs(); err != nil {
		return nil, err
	}
	return r, nil
}

func (fc fileContainer) toDescriptor() (ContainerDescriptor, error) {
	rule, err := ParseRenameRule(fc.RenameAll)
	if err != nil {
		return ContainerDescriptor{}, errorf(fc.Name, "", "%v", err)
	}
	c := ContainerDescriptor{
		Name:           fc.Name,
		Description:    fc.Description,
		Title:          fc.Title,
		Examples:       normalizeYAMLValues(fc.Examples),
		RenameAll:      rule,
		ValidationHook: fc.Hook,
	}
	switch fc.Kind {
	case "", "struct":
		c.Kind = KindStruct
		if c.Fields, err = toFields(fc.Name, fc.Fields); err != nil {
			return ContainerDescriptor{}, err
		}
	case "enum":
		c.Kind = KindEnum
		if c.Tagging, err = fc.Tagging.toTagging(fc.Name); err != nil {
			return ContainerDescriptor{}, err
		}
		for _, fv := range fc.Variants {
			v := VariantDescriptor{Name: fv.Name, Description: fv.Description, Rename: fv.Rename}
			switch {
			case len(fv.Fields) > 0 && len(fv.Elems) > 0:
				return ContainerDescriptor{}, errorf(fc.Name, fv.Name, "variant declares both fields and elems")
			case len(fv.Fields) > 0:
				v.Kind = VariantNamed
				if v.Fields, err = toFields(fc.Name, fv.Fields); err != nil {
					return ContainerDescriptor{}, err
				}
			case len(fv.Elems) > 0:
				v.Kind = VariantTuple
				for _, e := range fv.Elems {
					s, err := ParseShape(e)
					if err != nil {
						return ContainerDescriptor{}, errorf(fc.Name, fv.Name, "%v", err)
					}
					v.Elems = append(v.Elems, s)
				}
			default:
				v.Kind = VariantUnit
			}
			c.Variants = append(c.Variants, v)
		}
	default:
		return ContainerDescriptor{}, errorf(fc.Name, "", "unknown kind %q", fc.Kind)
	}
	return c, nil
}

func toFields(container string, ffs []fileField) ([]FieldDescriptor, error) {
	out := make([]FieldDescriptor, 0, len(ffs))
	for _, ff := range ffs {
		s, err := ParseShape(ff.Type)
		if err != nil {
			return nil, errorf(container, ff.Name, "%v", err)
		}
		out = append(out, FieldDescriptor{
			Name:        ff.Name,
			Shape:       s,
			Description: ff.Description,
			Examples:    normalizeYAMLValues(ff.Examples),
			Rename:      ff.Rename,
		})
	}
	return out, nil
}

func (ft *fileTagging) toTagging(container string) (EnumTagging, error) {
	if ft == nil {
		return External{}, nil
	}
	switch ft.Mode {
	case "", "external":
		return External{}, nil
	case "internal":
		return Internal{Tag: ft.Tag}, nil
	case "adjacent":
		return Adjacent{Tag: ft.Tag, Content: ft.Content}, nil
	case "untagged":
		return Untagged{}, nil
	}
	return nil, errorf(container, "", "unknown tagging mode %q", ft.Mode)
}

func normalizeYAMLValues(vs []any) []any {
	if len(vs) == 0 {
		return nil
	}
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = yamlNormalizeValue(v)
	}
	return out
}

// yamlNormalizeValue converts YAML-decoded values (which may contain
// map[any]any) into JSON-compatible values recursively.
func yamlNormalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = yamlNormalizeValue(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = yamlNormalizeValue(vv)
		}
		return out
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = yamlNormalizeValue(t[i])
		}
		return arr
	default:
		return v
	}
}

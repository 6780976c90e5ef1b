package jsonschema

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	sjs "github.com/santhosh-tekuri/jsonschema/v5"
)

const resourceURL = "https://structout.local/schema.json"

// Violation is one failed keyword at an instance location.
type Violation struct {
	Path    string // JSON Pointer into the instance
	Keyword string // JSON Pointer into the schema
	Message string
}

// Checker validates decoded JSON values against a compiled schema.
type Checker struct {
	schema *sjs.Schema
}

// Compile compiles s as a draft 2020-12 document.
func Compile(s Schema) (*Checker, error) {
	raw, err := Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: marshal: %w", err)
	}
	c := sjs.NewCompiler()
	c.Draft = sjs.Draft2020
	if err := c.AddResource(resourceURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("jsonschema: add resource: %w", err)
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: compile: %w", err)
	}
	return &Checker{schema: compiled}, nil
}

// Check validates v (as produced by a JSON decoder) and returns the leaf
// violations sorted by instance path. A nil slice means v is valid.
func (c *Checker) Check(v any) ([]Violation, error) {
	err := c.schema.Validate(v)
	if err == nil {
		return nil, nil
	}
	var ve *sjs.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	var out []Violation
	collectLeaves(ve, &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func collectLeaves(ve *sjs.ValidationError, out *[]Violation) {
	if len(ve.Causes) == 0 {
		*out = append(*out, Violation{Path: ve.InstanceLocation, Keyword: ve.KeywordLocation, Message: ve.Message})
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

package structout

import (
	"github.com/reoring/structout/descriptor"
	"github.com/reoring/structout/dialect"
	"github.com/reoring/structout/jsonschema"
	"github.com/reoring/structout/synth"
)

// SynthesizeSchema builds the canonical schema for c, resolving references
// through r. Malformed descriptors yield a *SynthesisError.
func SynthesizeSchema(c descriptor.ContainerDescriptor, r descriptor.Resolver) (jsonschema.Schema, error) {
	return synth.Synthesize(c, r)
}

// SchemaFor derives the descriptor of T and every struct it references and
// synthesizes the canonical schema.
func SchemaFor[T any]() (jsonschema.Schema, error) {
	reg := &descriptor.Registry{}
	root, err := descriptor.DeriveInto[T](reg)
	if err != nil {
		return nil, err
	}
	return synth.Synthesize(root, reg)
}

// AdaptStrict closes every object in s. The input is not modified.
func AdaptStrict(s jsonschema.Schema) jsonschema.Schema {
	return dialect.ToStrict(s)
}

// AdaptConstrained rewrites s for the constrained-JSON dialect. depthLimit
// bounds $ref inlining; zero selects dialect.DefaultDepthLimit. The returned
// descriptors must be applied to responses with ReshapeResponse.
func AdaptConstrained(s jsonschema.Schema, depthLimit int) (jsonschema.Schema, []dialect.ReversalDescriptor) {
	res, _ := dialect.Constrained{DepthLimit: depthLimit}.Adapt(s)
	return res.Schema, res.Reversals
}

// Adapt rewrites s for the named dialect.
func Adapt(s jsonschema.Schema, dialectName string, depthLimit int) (dialect.Result, error) {
	a, err := dialect.New(dialectName, depthLimit)
	if err != nil {
		return dialect.Result{}, err
	}
	return a.Adapt(s)
}

// ReshapeResponse puts a constrained-dialect response back into canonical
// shape.
func ReshapeResponse(raw []byte, revs ...dialect.ReversalDescriptor) ([]byte, error) {
	return dialect.ReshapeJSON(raw, revs...)
}

package structout

// Package structout provides:
//
// - A descriptor model for structs and tagged enums (see package descriptor)
// - Canonical JSON Schema synthesis, including self-referential types via $defs
// - Dialect adapters for strict and constrained-JSON structured-output backends
// - Response reshaping that undoes lossy adapter rewrites
// - A validate-and-retry coordinator that feeds failures back into the conversation
//
// Design policy:
// - Keep only public APIs in the root package; put details in subpackages.
// - Schemas are plain map trees so callers can embed them in any request type.
// - Descriptors and synthesized schemas are immutable; conversation history is per call.
//
// Typical usage:
//
//	cfg := structout.NewConfigBuilder().Model("m").Dialect("strict").MustBuild()
//	g, err := structout.NewGenerator[Movie](backend, cfg)
//	res, err := g.Generate(ctx, "Describe Inception")
//	fmt.Println(res.Value.Title, res.Attempts)
//
// Lower-level entry points:
//
//	s, err := structout.SynthesizeSchema(desc, registry)
//	wire, revs := structout.AdaptConstrained(s, 0)
//	canonical, err := structout.ReshapeResponse(raw, revs...)
//	res, err := structout.MaterializeWithRetry(ctx, msgs, 2, call, validator.Parse)

package structout

import (
	"context"
	"fmt"

	"github.com/reoring/structout/descriptor"
	"github.com/reoring/structout/dialect"
	"github.com/reoring/structout/jsonschema"
	"github.com/reoring/structout/schemacache"
	"github.com/reoring/structout/synth"
)

// Request is what a Backend receives for one attempt.
type Request struct {
	Messages []Message
	// Schema is the wire schema in the configured dialect.
	Schema     jsonschema.Schema
	SchemaName string
	Config     Config
}

// Response is a successful backend reply.
type Response struct {
	Text  string
	Usage *TokenUsage
}

// Backend sends one request to a generative model. Non-success replies
// should be returned as *TransportError, e.g. via NewTransportError.
type Backend interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (Response, error)

func (f BackendFunc) Call(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

type generatorSettings struct {
	root          *descriptor.ContainerDescriptor
	resolver      descriptor.Resolver
	cache         *schemacache.Cache
	system        string
	schemaCheck   bool
	validatorOpts []ValidatorOption
	retryOpts     []RetryOption
	synthOpts     synth.Options
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*generatorSettings)

// WithDescriptor uses c instead of deriving the descriptor from T.
func WithDescriptor(c descriptor.ContainerDescriptor, r descriptor.Resolver) GeneratorOption {
	return func(s *generatorSettings) { s.root, s.resolver = &c, r }
}

// WithSchemaCache memoizes the wire schema.
func WithSchemaCache(c *schemacache.Cache) GeneratorOption {
	return func(s *generatorSettings) { s.cache = c }
}

// WithSystemPrompt prepends a system turn to every conversation.
func WithSystemPrompt(text string) GeneratorOption {
	return func(s *generatorSettings) { s.system = text }
}

// WithResponseSchemaCheck validates reshaped responses against the
// canonical schema before decoding.
func WithResponseSchemaCheck() GeneratorOption {
	return func(s *generatorSettings) { s.schemaCheck = true }
}

// WithValidatorOptions passes options to the response Validator.
func WithValidatorOptions(opts ...ValidatorOption) GeneratorOption {
	return func(s *generatorSettings) { s.validatorOpts = append(s.validatorOpts, opts...) }
}

// WithRetryOptions passes options to MaterializeWithRetry.
func WithRetryOptions(opts ...RetryOption) GeneratorOption {
	return func(s *generatorSettings) { s.retryOpts = append(s.retryOpts, opts...) }
}

// WithLiftedAncestorRefs accepts mutually recursive descriptors by lifting
// every cycle member into $defs.
func WithLiftedAncestorRefs() GeneratorOption {
	return func(s *generatorSettings) { s.synthOpts.LiftAncestorRefs = true }
}

// Generator produces validated values of T from a Backend.
type Generator[T any] struct {
	backend  Backend
	cfg      Config
	root     descriptor.ContainerDescriptor
	resolver descriptor.Resolver
	settings generatorSettings
	hook     func(*T) error
}

// NewGenerator binds T, a backend and a configuration. The descriptor of T is
// derived by reflection unless WithDescriptor is given.
func NewGenerator[T any](backend Backend, cfg Config, opts ...GeneratorOption) (*Generator[T], error) {
	if backend == nil {
		return nil, fmt.Errorf("structout: backend is required")
	}
	var s generatorSettings
	for _, o := range opts {
		o(&s)
	}
	g := &Generator[T]{backend: backend, cfg: cfg, settings: s}
	if s.root != nil {
		g.root, g.resolver = *s.root, s.resolver
	} else {
		reg := &descriptor.Registry{}
		root, err := descriptor.DeriveInto[T](reg)
		if err != nil {
			return nil, err
		}
		g.root, g.resolver = root, reg
	}
	if _, err := dialect.New(cfg.Dialect(), cfg.DepthLimit()); err != nil {
		return nil, err
	}
	return g, nil
}

// WithHook returns a copy of g that runs fn on every decoded value.
func (g *Generator[T]) WithHook(fn func(*T) error) *Generator[T] {
	cp := *g
	cp.hook = fn
	return &cp
}

// Config returns the bound configuration.
func (g *Generator[T]) Config() Config { return g.cfg }

type prepared struct {
	wire      schemacache.Entry
	canonical jsonschema.Schema
}

// WireSchema returns the schema sent to the backend and the reversals that
// will be applied to its responses.
func (g *Generator[T]) WireSchema(ctx context.Context) (jsonschema.Schema, []dialect.ReversalDescriptor, error) {
	p, err := g.prepare(ctx)
	if err != nil {
		return nil, nil, err
	}
	return p.wire.Schema, p.wire.Reversals, nil
}

func (g *Generator[T]) prepare(ctx context.Context) (prepared, error) {
	canonical, err := synth.Synthesize(g.root, g.resolver, g.settings.synthOpts)
	if err != nil {
		return prepared{}, err
	}
	compute := func() (schemacache.Entry, error) {
		res, err := Adapt(canonical, g.cfg.Dialect(), g.cfg.DepthLimit())
		if err != nil {
			return schemacache.Entry{}, err
		}
		return schemacache.Entry{Schema: res.Schema, Reversals: res.Reversals, Warnings: res.Warnings}, nil
	}
	var entry schemacache.Entry
	if g.settings.cache != nil {
		key, kerr := schemacache.KeyFor(g.root.Name, canonical, g.cfg.Dialect(), g.cfg.DepthLimit())
		if kerr != nil {
			return prepared{}, kerr
		}
		entry, err = g.settings.cache.GetOrCompute(ctx, key, compute)
	} else {
		entry, err = compute()
	}
	if err != nil {
		return prepared{}, err
	}
	return prepared{wire: entry, canonical: canonical}, nil
}

func (g *Generator[T]) buildValidator(canonical jsonschema.Schema) (*Validator[T], error) {
	opts := append([]ValidatorOption(nil), g.settings.validatorOpts...)
	if g.settings.schemaCheck {
		checker, err := jsonschema.Compile(canonical)
		if err != nil {
			return nil, fmt.Errorf("structout: compile response schema: %w", err)
		}
		opts = append(opts, WithSchemaCheck(checker))
	}
	v := NewValidator[T](opts...)
	if g.hook != nil {
		v = v.WithHook(g.hook)
	}
	return v, nil
}

// Generate asks for a value of T described by prompt.
func (g *Generator[T]) Generate(ctx context.Context, prompt string, media ...MediaFile) (Result[T], error) {
	return g.GenerateMessages(ctx, []Message{UserMessage(prompt, media...)})
}

// GenerateMessages runs the full pipeline over an initial conversation:
// synthesize, adapt, call, reshape, validate and retry.
func (g *Generator[T]) GenerateMessages(ctx context.Context, msgs []Message) (Result[T], error) {
	p, err := g.prepare(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	v, err := g.buildValidator(p.canonical)
	if err != nil {
		return Result[T]{}, err
	}

	initial := msgs
	if g.settings.system != "" {
		initial = append([]Message{{Role: RoleSystem, Text: g.settings.system}}, msgs...)
	}

	call := func(ctx context.Context, history []Message) (Reply, error) {
		if d := g.cfg.Timeout(); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		resp, err := g.backend.Call(ctx, Request{
			Messages:   history,
			Schema:     jsonschema.Clone(p.wire.Schema),
			SchemaName: g.root.Name,
			Config:     g.cfg,
		})
		if err != nil {
			if te, ok := AsTransportError(err); ok {
				te.Kind = te.Kind.WithModelHint(g.cfg.Model())
			}
			return Reply{}, err
		}
		return Reply{Text: resp.Text, Usage: resp.Usage}, nil
	}

	parse := func(raw string) (T, error) {
		body := raw
		if len(p.wire.Reversals) > 0 {
			if reshaped, err := dialect.ReshapeJSON([]byte(StripCodeFence(raw)), p.wire.Reversals...); err == nil {
				body = string(reshaped)
			}
			// undecodable text falls through to the validator's parse error
		}
		out, err := v.Parse(body)
		if ve, ok := AsValidationError(err); ok {
			ve.RawResponse = raw
		}
		return out, err
	}

	return MaterializeWithRetry(ctx, initial, g.cfg.MaxRetries(), call, parse, g.settings.retryOpts...)
}

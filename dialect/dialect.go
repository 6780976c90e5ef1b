// Package dialect rewrites canonical schemas for the structured-output
// conventions of different backends, and reverses lossy rewrites on the
// responses.
package dialect

import (
	"errors"
	"fmt"

	"github.com/reoring/structout/jsonschema"
)

// Dialect names.
const (
	NameCanonical   = "canonical"
	NameStrict      = "strict"
	NameConstrained = "constrained"
)

// ErrUnknownDialect is returned by New for an unregistered name.
var ErrUnknownDialect = errors.New("dialect: unknown dialect")

// Adapter rewrites a canonical schema. Implementations must not modify the
// input tree.
type Adapter interface {
	Name() string
	Adapt(s jsonschema.Schema) (Result, error)
}

// Result is an adapted schema plus what is needed to undo lossy rewrites on
// responses.
type Result struct {
	Schema    jsonschema.Schema
	Reversals []ReversalDescriptor
	Warnings  []string
}

// Lossy reports whether responses must be reshaped before validation.
func (r Result) Lossy() bool { return len(r.Reversals) > 0 }

// Diag carries non-fatal warnings produced during adaptation.
type Diag interface {
	HasWarnings() bool
	Warnings() []string
}

type simpleDiag struct{ ws []string }

func (d *simpleDiag) HasWarnings() bool        { return len(d.ws) > 0 }
func (d *simpleDiag) Warnings() []string       { return append([]string(nil), d.ws...) }
func (d *simpleDiag) warnf(f string, a ...any) { d.ws = append(d.ws, fmt.Sprintf(f, a...)) }

// Canonical passes schemas through unchanged.
type Canonical struct{}

func (Canonical) Name() string { return NameCanonical }

func (Canonical) Adapt(s jsonschema.Schema) (Result, error) {
	return Result{Schema: jsonschema.Clone(s)}, nil
}

// New returns the adapter registered under name. depthLimit only affects the
// constrained dialect; zero selects DefaultDepthLimit.
func New(name string, depthLimit int) (Adapter, error) {
	switch name {
	case NameCanonical, "":
		return Canonical{}, nil
	case NameStrict:
		return Strict{}, nil
	case NameConstrained:
		return Constrained{DepthLimit: depthLimit}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownDialect, name)
}

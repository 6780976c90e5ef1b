package descriptor

import (
	"fmt"
	"sort"
	"sync"
)

// Resolver maps an ObjectRef name to its descriptor.
type Resolver interface {
	Resolve(name string) (ContainerDescriptor, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (ContainerDescriptor, bool)

func (f ResolverFunc) Resolve(name string) (ContainerDescriptor, bool) { return f(name) }

// Registry is a concurrency-safe set of descriptors keyed by name. Entries are
// immutable once registered.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]ContainerDescriptor
}

// NewRegistry returns an empty registry, optionally seeded with descriptors.
func NewRegistry(cs ...ContainerDescriptor) (*Registry, error) {
	r := &Registry{byName: map[string]ContainerDescriptor{}}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates c and stores it. Registering a second descriptor under
// an existing name is an error.
func (r *Registry) Register(c ContainerDescriptor) error {
	if err := Validate(c); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName == nil {
		r.byName = map[string]ContainerDescriptor{}
	}
	if _, exists := r.byName[c.Name]; exists {
		return fmt.Errorf("descriptor: %s already registered", c.Name)
	}
	r.byName[c.Name] = c
	return nil
}

// MustRegister is Register that panics on error. Intended for package init.
func (r *Registry) MustRegister(cs ...ContainerDescriptor) *Registry {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Resolve implements Resolver.
func (r *Registry) Resolve(name string) (ContainerDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Names lists registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// CheckRefs verifies that every reference reachable from the registered
// descriptors resolves.
func (r *Registry) CheckRefs() error {
	for _, n := range r.Names() {
		c, _ := r.Resolve(n)
		for _, ref := range c.Refs() {
			if _, ok := r.Resolve(ref); !ok {
				return errorf(n, "", "unresolved reference %q", ref)
			}
		}
	}
	return nil
}

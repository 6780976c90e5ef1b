// Package schemacache memoizes synthesized and adapted schemas. Entries are
// immutable once stored; readers receive private copies.
package schemacache

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/reoring/structout/dialect"
	"github.com/reoring/structout/jsonschema"
	"github.com/reoring/structout/metrics"
)

// Entry is a cached wire schema with its reversal descriptors.
type Entry struct {
	Schema    jsonschema.Schema            `json:"schema"`
	Reversals []dialect.ReversalDescriptor `json:"reversals,omitempty"`
	Warnings  []string                     `json:"warnings,omitempty"`
	// Fingerprint is the RFC 8785 digest of Schema.
	Fingerprint string `json:"fingerprint"`
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	out := e
	out.Schema = jsonschema.Clone(e.Schema)
	if e.Reversals != nil {
		out.Reversals = make([]dialect.ReversalDescriptor, len(e.Reversals))
		for i, r := range e.Reversals {
			r.TagValues = append([]string(nil), r.TagValues...)
			out.Reversals[i] = r
		}
	}
	out.Warnings = append([]string(nil), e.Warnings...)
	return out
}

// Store persists entries by key. Get reports found=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
}

// Key identifies a wire schema by container name, the fingerprint of the
// canonical schema it was adapted from, dialect and depth limit. Two
// descriptors sharing a name but not a shape get different keys.
func Key(container, fingerprint, dialectName string, depthLimit int) string {
	if dialectName == "" {
		dialectName = dialect.NameCanonical
	}
	return container + "|" + fingerprint + "|" + dialectName + "|" + strconv.Itoa(depthLimit)
}

// KeyFor fingerprints canonical and returns its Key.
func KeyFor(container string, canonical jsonschema.Schema, dialectName string, depthLimit int) (string, error) {
	fp, err := jsonschema.Fingerprint(canonical)
	if err != nil {
		return "", fmt.Errorf("schemacache: fingerprint %s: %w", container, err)
	}
	return Key(container, fp, dialectName, depthLimit), nil
}

// Cache fronts a Store and collapses concurrent computations of one key.
type Cache struct {
	store   Store
	metrics *metrics.Collectors
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records hits and misses.
func WithMetrics(m *metrics.Collectors) Option {
	return func(c *Cache) { c.metrics = m }
}

// New returns a cache over store. A nil store selects a MemoryStore.
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Cache{store: store}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetOrCompute returns the entry for key, computing and storing it on a
// miss. The fingerprint is filled in when compute leaves it empty.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func() (Entry, error)) (Entry, error) {
	if e, ok, err := c.store.Get(ctx, key); err != nil {
		return Entry{}, fmt.Errorf("schemacache: get %s: %w", key, err)
	} else if ok {
		c.metrics.CacheLookup(true)
		return e.Clone(), nil
	}
	c.metrics.CacheLookup(false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		e, err := compute()
		if err != nil {
			return Entry{}, err
		}
		if e.Fingerprint == "" {
			fp, err := jsonschema.Fingerprint(e.Schema)
			if err != nil {
				return Entry{}, fmt.Errorf("schemacache: fingerprint: %w", err)
			}
			e.Fingerprint = fp
		}
		if err := c.store.Put(ctx, key, e.Clone()); err != nil {
			return Entry{}, fmt.Errorf("schemacache: put %s: %w", key, err)
		}
		return e, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry).Clone(), nil
}

package schemacache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/structout/dialect"
	"github.com/reoring/structout/jsonschema"
	"github.com/reoring/structout/metrics"
	"github.com/reoring/structout/schemacache"
)

func sampleEntry() schemacache.Entry {
	return schemacache.Entry{
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []any{"name"},
		},
		Reversals: []dialect.ReversalDescriptor{{TagKey: "status", ContentKey: "data", TagValues: []string{"Success"}}},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "User|ab12|strict|3", schemacache.Key("User", "ab12", dialect.NameStrict, 3))
	assert.Equal(t, "User|ab12|canonical|0", schemacache.Key("User", "ab12", "", 0))
}

func TestKeyFor(t *testing.T) {
	a := map[string]any{"type": "object", "properties": map[string]any{"price": map[string]any{"type": "integer"}}}
	b := map[string]any{"type": "object", "properties": map[string]any{"sku": map[string]any{"type": "string"}}}

	ka, err := schemacache.KeyFor("Item", a, dialect.NameStrict, 3)
	require.NoError(t, err)
	kb, err := schemacache.KeyFor("Item", b, dialect.NameStrict, 3)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)

	again, err := schemacache.KeyFor("Item", jsonschema.Clone(a), dialect.NameStrict, 3)
	require.NoError(t, err)
	assert.Equal(t, ka, again)

	fp, err := jsonschema.Fingerprint(a)
	require.NoError(t, err)
	assert.Equal(t, schemacache.Key("Item", fp, dialect.NameStrict, 3), ka)
}

func TestCache_ComputesOnceAndCopies(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := schemacache.New(nil, schemacache.WithMetrics(m))
	ctx := context.Background()

	var calls int
	compute := func() (schemacache.Entry, error) {
		calls++
		return sampleEntry(), nil
	}

	e1, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	require.NotEmpty(t, e1.Fingerprint)

	// mutating a returned entry must not leak into the cache
	e1.Schema["type"] = "string"
	e1.Reversals[0].TagValues[0] = "mutated"

	e2, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "object", e2.Schema["type"])
	assert.Equal(t, "Success", e2.Reversals[0].TagValues[0])
	assert.Equal(t, e1.Fingerprint, e2.Fingerprint)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestCache_ComputeErrorNotStored(t *testing.T) {
	store := schemacache.NewMemoryStore()
	c := schemacache.New(store)
	boom := errors.New("boom")
	_, err := c.GetOrCompute(context.Background(), "k", func() (schemacache.Entry, error) {
		return schemacache.Entry{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())
}

func TestCache_ConcurrentFirstPopulation(t *testing.T) {
	c := schemacache.New(nil)
	var calls atomic.Int32
	gate := make(chan struct{})
	compute := func() (schemacache.Entry, error) {
		calls.Add(1)
		<-gate
		return sampleEntry(), nil
	}

	var wg sync.WaitGroup
	results := make([]schemacache.Entry, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := c.GetOrCompute(context.Background(), "k", compute)
			assert.NoError(t, err)
			results[i] = e
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(len(results)))
	for _, e := range results {
		assert.Equal(t, results[0].Fingerprint, e.Fingerprint)
	}
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err = schemacache.NewRedisStore(schemacache.RedisConfig{})
	require.Error(t, err)

	store, err := schemacache.NewRedisStore(schemacache.RedisConfig{Client: client, TTL: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	c := schemacache.New(store)
	first, err := c.GetOrCompute(ctx, "User|strict|3", func() (schemacache.Entry, error) { return sampleEntry(), nil })
	require.NoError(t, err)
	assert.True(t, mr.Exists("structout:schema:User|strict|3"))
	assert.Equal(t, time.Minute, mr.TTL("structout:schema:User|strict|3"))

	got, ok, err := store.Get(ctx, "User|strict|3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Fingerprint, got.Fingerprint)
	assert.Equal(t, "object", got.Schema["type"])
	assert.Equal(t, []string{"Success"}, got.Reversals[0].TagValues)

	// a second writer does not replace the first entry
	other := sampleEntry()
	other.Fingerprint = "other"
	require.NoError(t, store.Put(ctx, "User|strict|3", other))
	got, _, err = store.Get(ctx, "User|strict|3")
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, got.Fingerprint)
}

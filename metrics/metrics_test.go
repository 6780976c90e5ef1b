package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/structout/metrics"
)

func TestCollectors_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	c.ObserveAttempt(metrics.OutcomeValidation, 10*time.Millisecond)
	c.ObserveAttempt(metrics.OutcomeSuccess, 20*time.Millisecond)
	c.Retry(metrics.OutcomeValidation)
	c.Result(metrics.OutcomeSuccess)
	c.CacheLookup(true)
	c.CacheLookup(false)
	c.CacheLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Attempts.WithLabelValues(metrics.OutcomeValidation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Retries.WithLabelValues(metrics.OutcomeValidation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Results.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("miss")))

	n, err := testutil.GatherAndCount(reg, "structout_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCollectors_NilSafe(t *testing.T) {
	var c *metrics.Collectors
	c.ObserveAttempt(metrics.OutcomeSuccess, time.Second)
	c.Retry("x")
	c.Result("x")
	c.CacheLookup(true)
}

// Package metrics exposes Prometheus collectors for the retry coordinator
// and the schema cache. All methods are safe on a nil *Collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "structout"

// Attempt outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation_error"
	OutcomeTransport  = "transport_error"
	OutcomeOther      = "error"
)

// Collectors groups every metric the library records.
type Collectors struct {
	Attempts        *prometheus.CounterVec
	Retries         *prometheus.CounterVec
	Results         *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg creates
// unregistered collectors.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Backend attempts by outcome.",
		}, []string{"outcome"}),
		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retries scheduled, by reason.",
		}, []string{"reason"}),
		Results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materialize_results_total",
			Help:      "Completed materialize calls by result.",
		}, []string{"result"}),
		AttemptDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of a single backend attempt including validation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_cache_lookups_total",
			Help:      "Schema cache lookups by result (hit, miss).",
		}, []string{"result"}),
	}
}

// ObserveAttempt records one attempt.
func (c *Collectors) ObserveAttempt(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Attempts.WithLabelValues(outcome).Inc()
	c.AttemptDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Retry records a scheduled retry.
func (c *Collectors) Retry(reason string) {
	if c == nil {
		return
	}
	c.Retries.WithLabelValues(reason).Inc()
}

// Result records the end of a materialize call.
func (c *Collectors) Result(result string) {
	if c == nil {
		return
	}
	c.Results.WithLabelValues(result).Inc()
}

// CacheLookup records a schema cache hit or miss.
func (c *Collectors) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	c.CacheLookups.WithLabelValues("miss").Inc()
}

// Package metrics exposes the service's Prometheus collectors. All recording
// methods are safe on a nil *Metrics so components can run uninstrumented in
// tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "polidossier"

// DefaultBuckets are the oracle latency buckets (in seconds). Completions are
// slow, so the range is wider than the Prometheus defaults.
var DefaultBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60}

// Metrics holds every collector the service records into.
type Metrics struct {
	registry *prometheus.Registry

	OracleCalls   *prometheus.CounterVec
	OracleLatency *prometheus.HistogramVec
	CacheLookups  *prometheus.CounterVec
	CacheSize     prometheus.Gauge
	PhotoChecks   *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	RateLimited   prometheus.Counter
}

// New creates a registry with the service collectors plus Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		OracleCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Completion calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		OracleLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Completion round-trip latency.",
			Buckets:   DefaultBuckets,
		}, []string{"provider"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Record cache lookups by result (fresh, stale, miss).",
		}, []string{"result"}),
		CacheSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_records",
			Help:      "Records held in the unbounded record cache.",
		}),
		PhotoChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photo_checks_total",
			Help:      "Photo URL validations by result (accepted, default).",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client limiter.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOracle records one completion call.
func (m *Metrics) ObserveOracle(provider string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.OracleCalls.WithLabelValues(provider, outcome).Inc()
	m.OracleLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// CacheLookup records a cache lookup result.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// SetCacheSize records the current number of cached records.
func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.CacheSize.Set(float64(n))
}

// PhotoCheck records whether a candidate photo was accepted.
func (m *Metrics) PhotoCheck(accepted bool) {
	if m == nil {
		return
	}
	result := "default"
	if accepted {
		result = "accepted"
	}
	m.PhotoChecks.WithLabelValues(result).Inc()
}

// Request records a served HTTP request.
func (m *Metrics) Request(method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, status).Inc()
}

// Limited records a request rejected by the rate limiter.
func (m *Metrics) Limited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

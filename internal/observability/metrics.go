package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Navigation fetch outcomes.
const (
	FetchOK        = "ok"
	FetchError     = "error"
	FetchDiscarded = "discarded"
)

// Metrics groups the collectors the site exports.
type Metrics struct {
	registry      *prometheus.Registry
	fetches       *prometheus.CounterVec
	mounts        prometheus.Gauge
	evictions     prometheus.Counter
	fetchDuration prometheus.Histogram
}

// NewMetrics registers the site collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "site",
			Name:      "navigation_fetch_total",
			Help:      "Navigation data fetches by outcome.",
		}, []string{"outcome"}),
		mounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "site",
			Name:      "header_mounts",
			Help:      "Header instances currently mounted.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "site",
			Name:      "header_evictions_total",
			Help:      "Header instances unmounted early because the mount cap was reached.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "site",
			Name:      "navigation_fetch_seconds",
			Help:      "Time from mount until the navigation join settles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.fetches, m.mounts, m.evictions, m.fetchDuration)
	return m
}

// ObserveFetch records the outcome and duration of one navigation join.
func (m *Metrics) ObserveFetch(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(seconds)
}

// MountAdded increments the mounted header gauge.
func (m *Metrics) MountAdded() {
	if m != nil {
		m.mounts.Inc()
	}
}

// MountRemoved decrements the mounted header gauge.
func (m *Metrics) MountRemoved() {
	if m != nil {
		m.mounts.Dec()
	}
}

// MountEvicted counts a header unmounted to make room under the mount cap.
func (m *Metrics) MountEvicted() {
	if m != nil {
		m.evictions.Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, primarily for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

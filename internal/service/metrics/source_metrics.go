package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SourceMetrics instruments provider calls made through the source decorators.
type SourceMetrics struct {
	latency *prometheus.HistogramVec
	results *prometheus.CounterVec
	retries *prometheus.CounterVec
	cache   *prometheus.CounterVec
}

// NewSourceMetrics registers the source collectors on reg.
func NewSourceMetrics(reg prometheus.Registerer) *SourceMetrics {
	f := promauto.With(reg)
	return &SourceMetrics{
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "risklab",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of provider fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risklab",
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Provider fetches by outcome",
		}, []string{"provider", "outcome"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risklab",
			Subsystem: "source",
			Name:      "retries_total",
			Help:      "Retried provider fetches",
		}, []string{"provider"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risklab",
			Subsystem: "source",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result",
		}, []string{"provider", "result"}),
	}
}

// ObserveFetch records one provider call. outcome is ok, transient or permanent.
func (m *SourceMetrics) ObserveFetch(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(provider).Observe(seconds)
	m.results.WithLabelValues(provider, outcome).Inc()
}

// RecordRetry counts a retry attempt.
func (m *SourceMetrics) RecordRetry(provider string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(provider).Inc()
}

// RecordCache counts a cache hit or miss.
func (m *SourceMetrics) RecordCache(provider string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(provider, result).Inc()
}

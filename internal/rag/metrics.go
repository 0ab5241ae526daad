package rag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes retrieval query counters for scraping.
type Metrics struct {
	queries *prometheus.CounterVec
	latency prometheus.Histogram
}

// NewMetrics registers the query metrics on the given registerer.
// A nil registerer leaves the metrics unregistered, which tests use to
// avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "rag",
			Name:      "queries_total",
			Help:      "Retrieval queries, by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "rag",
			Name:      "query_duration_seconds",
			Help:      "Retrieval query latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.queries, m.latency)
	}
	return m
}

func (m *Metrics) recordQuery(outcome string, seconds float64) {
	m.queries.WithLabelValues(outcome).Inc()
	m.latency.Observe(seconds)
}

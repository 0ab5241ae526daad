package embedding

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes embedding counters for scraping.
type Metrics struct {
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	generated   *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewMetrics registers the embedding metrics on the given registerer.
// A nil registerer leaves the metrics unregistered, which tests use to
// avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "embedding",
			Name:      "cache_hits_total",
			Help:      "Embedding requests served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "embedding",
			Name:      "cache_misses_total",
			Help:      "Embedding requests that reached a provider.",
		}),
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "embedding",
			Name:      "generated_total",
			Help:      "Embeddings generated, by model.",
		}, []string{"model"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "embedding",
			Name:      "provider_failures_total",
			Help:      "Provider embed failures, by model.",
		}, []string{"model"}),
	}
	if reg != nil {
		reg.MustRegister(m.cacheHits, m.cacheMisses, m.generated, m.failures)
	}
	return m
}

func (m *Metrics) recordCacheHit() { m.cacheHits.Inc() }

func (m *Metrics) recordCacheMiss() { m.cacheMisses.Inc() }

func (m *Metrics) recordGenerated(model string) { m.generated.WithLabelValues(model).Inc() }

func (m *Metrics) recordFailure(model string) { m.failures.WithLabelValues(model).Inc() }

package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes indexing counters for scraping.
type Metrics struct {
	scans     *prometheus.CounterVec
	documents *prometheus.CounterVec
	active    prometheus.Gauge
}

// NewMetrics registers the indexing metrics on the given registerer.
// A nil registerer leaves the metrics unregistered, which tests use to
// avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "indexer",
			Name:      "scans_total",
			Help:      "Indexing scans by type.",
		}, []string{"type"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "indexer",
			Name:      "documents_total",
			Help:      "Documents seen by indexing, by outcome.",
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docpipe",
			Subsystem: "indexer",
			Name:      "active_jobs",
			Help:      "Indexing jobs currently in flight.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.scans, m.documents, m.active)
	}
	return m
}

func (m *Metrics) recordScan(scanType string) { m.scans.WithLabelValues(scanType).Inc() }

func (m *Metrics) recordOutcome(outcome string) { m.documents.WithLabelValues(outcome).Inc() }

func (m *Metrics) setActiveJobs(n int) { m.active.Set(float64(n)) }

// Package metrics defines the Prometheus collectors the index reports to and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the index.
type Metrics struct {
	QueriesTotal          *prometheus.CounterVec
	QueryLatency          prometheus.Histogram
	QueryResults          prometheus.Histogram
	DocumentsAddedTotal   *prometheus.CounterVec
	DuplicateDocuments    prometheus.Counter
	FrequentQueriesPruned prometheus.Counter
	StorageRetriesTotal   *prometheus.CounterVec
	CorpusDocuments       prometheus.Gauge
}

// New creates the collectors and registers them on reg. Passing
// prometheus.DefaultRegisterer exposes them on the process scrape endpoint;
// tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textindex_queries_total",
				Help: "Total queries by result type (hit, zero_result, unranked, error).",
			},
			[]string{"result"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "textindex_query_latency_seconds",
				Help:    "End-to-end query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		QueryResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "textindex_query_results",
				Help:    "Number of documents matched per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		DocumentsAddedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textindex_documents_added_total",
				Help: "Corpus add/update calls by outcome.",
			},
			[]string{"outcome"},
		),
		DuplicateDocuments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "textindex_duplicate_documents_total",
				Help: "Documents added whose checksum already existed under another path.",
			},
		),
		FrequentQueriesPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "textindex_frequent_queries_pruned_total",
				Help: "Frequent-query entries evicted by pruning.",
			},
		),
		StorageRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textindex_storage_retries_total",
				Help: "Storage read attempts that failed and were retried, by operation.",
			},
			[]string{"operation"},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "textindex_corpus_documents",
				Help: "Documents in the corpus at the last initialization.",
			},
		),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResults,
		m.DocumentsAddedTotal,
		m.DuplicateDocuments,
		m.FrequentQueriesPruned,
		m.StorageRetriesTotal,
		m.CorpusDocuments,
	)

	return m
}

// NewUnregistered returns collectors attached to a private registry, for
// callers that do not export metrics.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// RetryObserver returns a retry hook counting failed attempts of op. It is
// safe to call on a nil *Metrics.
func (m *Metrics) RetryObserver(op string) func(attempt int, err error) {
	if m == nil {
		return nil
	}
	counter := m.StorageRetriesTotal.WithLabelValues(op)
	return func(int, error) {
		counter.Inc()
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

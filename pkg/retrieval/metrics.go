package retrieval

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// pipelineMetrics instruments the ingestion and query paths. Collectors work
// unregistered, so a nil registerer simply keeps them process-local.
type pipelineMetrics struct {
	documentsIngested prometheus.Counter
	chunksIngested    prometheus.Counter
	ingestDuration    prometheus.Histogram
	queries           prometheus.Counter
	emptyResults      prometheus.Counter
	queryDuration     prometheus.Histogram
	rerankDuration    prometheus.Histogram
}

func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	m := &pipelineMetrics{
		documentsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wayfind",
			Subsystem: "retrieval",
			Name:      "documents_ingested_total",
			Help:      "Documents successfully ingested.",
		}),
		chunksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wayfind",
			Subsystem: "retrieval",
			Name:      "chunks_ingested_total",
			Help:      "Chunks embedded and upserted.",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wayfind",
			Subsystem: "retrieval",
			Name:      "ingest_duration_seconds",
			Help:      "End-to-end document ingestion latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wayfind",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Retrieval queries served.",
		}),
		emptyResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wayfind",
			Subsystem: "retrieval",
			Name:      "empty_results_total",
			Help:      "Queries that matched no candidates.",
		}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wayfind",
			Subsystem: "retrieval",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency including rerank.",
			Buckets:   prometheus.DefBuckets,
		}),
		rerankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wayfind",
			Subsystem: "retrieval",
			Name:      "rerank_duration_seconds",
			Help:      "Cross-encoder rerank latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.documentsIngested,
			m.chunksIngested,
			m.ingestDuration,
			m.queries,
			m.emptyResults,
			m.queryDuration,
			m.rerankDuration,
		)
	}
	return m
}

func (m *pipelineMetrics) observeIngest(chunks int, start time.Time) {
	m.documentsIngested.Inc()
	m.chunksIngested.Add(float64(chunks))
	m.ingestDuration.Observe(time.Since(start).Seconds())
}

func (m *pipelineMetrics) observeQuery(empty bool, start time.Time) {
	m.queries.Inc()
	if empty {
		m.emptyResults.Inc()
	}
	m.queryDuration.Observe(time.Since(start).Seconds())
}

// Package metrics holds the Prometheus collectors for the search service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search outcomes used as the "outcome" label.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

var (
	// Latency of a full search (retrieve + rerank)
	SearchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "prodsearch_search_latency_seconds",
		Help:    "Latency of product search requests",
		Buckets: prometheus.DefBuckets,
	})

	// Search requests by outcome
	SearchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prodsearch_search_requests_total",
		Help: "Total number of product search requests by outcome",
	}, []string{"outcome"})

	// Size of returned result lists
	SearchResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "prodsearch_search_results",
		Help:    "Number of results returned per search",
		Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
	})

	EmbeddingCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prodsearch_embedding_cache_hits_total",
		Help: "Query embeddings served from cache",
	})

	EmbeddingCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prodsearch_embedding_cache_misses_total",
		Help: "Query embeddings computed by the embedding model",
	})
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			SearchLatency,
			SearchRequests,
			SearchResults,
			EmbeddingCacheHits,
			EmbeddingCacheMisses,
		)
	})
}

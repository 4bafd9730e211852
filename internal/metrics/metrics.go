package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Embedding provider calls
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dineai_embedding_requests_total",
			Help: "Total embedding provider calls by outcome",
		},
		[]string{"model", "outcome"}, // "success", "error", "cache_hit"
	)

	EmbeddingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dineai_embedding_duration_seconds",
			Help:    "Duration of embedding provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	EmbeddingBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dineai_embedding_breaker_state",
			Help: "Embedding circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Ingestion
	IngestRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dineai_ingest_records_total",
			Help: "Catalog items processed by ingestion, by outcome",
		},
		[]string{"outcome"}, // "embedded", "dropped"
	)

	IngestRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dineai_ingest_retries_total",
			Help: "Embedding retries performed during ingestion",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dineai_ingest_duration_seconds",
			Help:    "Duration of a full ingestion run in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	VectorStoreRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dineai_vectorstore_records",
			Help: "Records currently held by the vector store",
		},
	)

	// Recommendation
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dineai_recommendations_total",
			Help: "Recommendation calls by candidate source",
		},
		[]string{"source"}, // "vector", "fallback", "error"
	)

	FallbackReasons = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dineai_fallback_total",
			Help: "Fallback activations by reason",
		},
		[]string{"reason"}, // "empty_store", "embedding_error"
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dineai_recommend_duration_seconds",
			Help:    "Latency of recommendation calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ResultCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dineai_result_cache_hits_total",
			Help: "Recommendation result cache hits",
		},
	)

	ResultCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dineai_result_cache_misses_total",
			Help: "Recommendation result cache misses",
		},
	)

	// HTTP
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dineai_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordEmbedding records one embedding call.
func RecordEmbedding(model string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	EmbeddingRequests.WithLabelValues(model, outcome).Inc()
	EmbeddingDuration.WithLabelValues(model).Observe(duration.Seconds())
}

func RecordRecommendation(source string, duration time.Duration) {
	Recommendations.WithLabelValues(source).Inc()
	RecommendDuration.Observe(duration.Seconds())
}

func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

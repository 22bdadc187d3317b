// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_check_verdicts_total",
			Help: "Total number of verdicts by outcome",
		},
		[]string{"outcome"},
	)

	VerifyErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_check_verify_errors_total",
			Help: "Total number of uploads that failed before a verdict",
		},
		[]string{"stage"},
	)

	SimilarityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listing_check_similarity_score",
			Help:    "Maximum image/prompt cosine similarity per scored upload",
			Buckets: prometheus.LinearBuckets(-0.1, 0.05, 12),
		},
	)

	EmbeddingCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_check_embedding_calls_total",
			Help: "Total number of calls that reached an embedding backend",
		},
		[]string{"provider", "status"},
	)

	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_check_embedding_cache_hits_total",
			Help: "Total number of vectors served from the embedding cache",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "listing_check_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "route", "status"},
	)
)

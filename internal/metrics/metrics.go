package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedpipe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedpipe_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Ingestion
	IngestRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedpipe_ingest_runs_total",
			Help: "Total number of ingestion runs started",
		},
	)

	IngestRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedpipe_ingest_run_duration_seconds",
			Help:    "Wall time of a full ingestion run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// FeedsProcessed is labelled by outcome (success|failure) and, for
	// failures, the stage that failed.
	FeedsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedpipe_feeds_processed_total",
			Help: "Feeds processed, by outcome and stage",
		},
		[]string{"outcome", "stage"},
	)

	ArticlesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedpipe_articles_upserted_total",
			Help: "Article rows handled by the upsert store, by result",
		},
		[]string{"result"},
	)

	// Categorization
	ArticlesCategorized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedpipe_articles_categorized_total",
			Help: "Categorization results by label",
		},
		[]string{"category"},
	)

	ClassifierErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedpipe_classifier_errors_total",
			Help: "Classifier failures resolved to the fallback label",
		},
	)

	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedpipe_application_info",
			Help: "Application information",
		},
		[]string{"version", "storage"},
	)
)

// Init records static application info.
func Init(version, storage string) {
	ApplicationInfo.WithLabelValues(version, storage).Set(1)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	FetchAttempts   *prometheus.CounterVec
	PagesProcessed  *prometheus.CounterVec
	FeaturesFound   *prometheus.CounterVec
	FeaturesSaved   *prometheus.CounterVec
	FeaturesSkipped *prometheus.CounterVec
	FeaturesFailed  *prometheus.CounterVec
	QuotaHalts      prometheus.Counter
	FetchDuration   prometheus.Histogram
	ErrorsCount     *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		FetchAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "The total number of WFS fetch attempts",
		}, []string{"typename", "outcome"}),
		PagesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_processed_total",
			Help:      "The total number of pages processed per sync mode",
		}, []string{"mode"}),
		FeaturesFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_found_total",
			Help:      "The total number of features decoded from responses",
		}, []string{"entity"}),
		FeaturesSaved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_saved_total",
			Help:      "The total number of features persisted",
		}, []string{"entity"}),
		FeaturesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_skipped_total",
			Help:      "The total number of features skipped for missing identity or geometry",
		}, []string{"entity"}),
		FeaturesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_failed_total",
			Help:      "The total number of features routed to the failed-record store",
		}, []string{"entity"}),
		QuotaHalts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_halts_total",
			Help:      "The total number of syncs halted by quota exhaustion",
		}),
		FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Wall-clock duration of successful WFS fetches",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ErrorsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}

// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourceAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_source_attempts_total",
			Help: "Provider attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	SourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallpaper_source_duration_seconds",
			Help:    "Duration of a single provider call in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	FetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_fetch_outcomes_total",
			Help: "Fallback chain results",
		},
		[]string{"outcome"},
	)

	ValidationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_validation_results_total",
			Help: "Image validation results by reason",
		},
		[]string{"result"},
	)

	EntitlementDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_entitlement_decisions_total",
			Help: "Allowance decisions by tier and result",
		},
		[]string{"tier", "result"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_deliveries_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallpaper_delivery_duration_seconds",
			Help:    "Duration of a full pipeline run in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ScheduledPosts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_scheduled_posts_total",
			Help: "Scheduled channel posts by outcome",
		},
		[]string{"outcome"},
	)

	ActiveSchedules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wallpaper_active_schedules",
			Help: "Number of registered schedule jobs",
		},
	)
)

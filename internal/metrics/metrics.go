// Package metrics exposes Prometheus instruments for the analytics pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIngested counts stored events by kind.
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_events_ingested_total",
			Help: "Total number of analytics events stored",
		},
		[]string{"kind"},
	)

	// EventsRejected counts submissions that were not stored.
	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_events_rejected_total",
			Help: "Total number of analytics submissions rejected",
		},
		[]string{"reason"},
	)

	// ResolutionMisses counts course events stored without a course reference.
	ResolutionMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_course_resolution_misses_total",
			Help: "Course events whose slug did not match a course",
		},
	)

	// QueryDuration tracks stats and listing query latency.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_analytics_query_duration_seconds",
			Help:    "Duration of analytics read operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// CounterDrift is the number of courses whose live counters disagree with
	// the event log as of the last audit.
	CounterDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_course_counter_drift_courses",
			Help: "Courses whose view/click counters differ from event-derived totals",
		},
	)
)

// Rejection reasons.
const (
	ReasonValidation = "validation"
	ReasonStorage    = "storage"
)

// ObserveQuery records the time elapsed since start for operation.
func ObserveQuery(operation string, start time.Time) {
	QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

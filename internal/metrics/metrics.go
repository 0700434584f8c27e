// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache lookups by result: hit/miss
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_cache_lookups_total",
			Help: "Total number of cache-aside lookups",
		},
		[]string{"result"},
	)

	// Answers recorded by source (live/sync) and outcome (inserted/updated/ignored)
	AnswersRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_answers_recorded_total",
			Help: "Total number of answers processed",
		},
		[]string{"source", "outcome"},
	)

	SessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_sessions_completed_total",
			Help: "Total number of scored session completions",
		},
		[]string{"certificate"}, // eligible/not_eligible
	)

	QuestionSetsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assessment_question_sets_generated_total",
			Help: "Total number of category question sets generated",
		},
	)

	// Certificate jobs by outcome: enqueued/succeeded/retried/dead
	CertificateJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_certificate_jobs_total",
			Help: "Certificate job lifecycle events",
		},
		[]string{"outcome"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessment_operation_duration_seconds",
			Help:    "Time spent in engine operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
)

// Observe records how long an operation took since start and whether it failed.
func Observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// Package metrics registers the prometheus collectors exposed on
// /metrics (wired by pkg/api via promhttp against the default
// registry). Collectors are package-level so every package can record
// against them without threading a Recorder through constructors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth reports the number of jobs sitting in each status,
	// sampled periodically by a ticker in cmd/worker.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "triage_queue_depth",
		Help: "Number of jobs currently in each queue status.",
	}, []string{"status"})

	// JobOutcomes counts job acknowledgements by type and outcome
	// (success, retry for a requeue, failed for a terminal failure).
	JobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_job_outcomes_total",
		Help: "Count of job acknowledgements by job type and outcome.",
	}, []string{"job_type", "outcome"})

	// JobFailureCauses counts terminal failures by the HandlerError
	// cause label (spec §4.6: download, extract, llm1, llm2, chat_post,
	// parse, db, fatal).
	JobFailureCauses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_job_failures_total",
		Help: "Count of terminal job failures by cause.",
	}, []string{"job_type", "cause"})

	// StageDuration observes wall-clock time spent in each pipeline
	// stage, independent of queue wait time. Dispatcher.Handle records
	// one observation per dispatched job, labelled with its job_type.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "triage_pipeline_stage_duration_seconds",
		Help:    "Duration of each pipeline stage handler, in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)

// ObserveStage is a small helper for the common "time this block, record
// on return" pattern used by pipeline step handlers.
func ObserveStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordJobOutcome increments JobOutcomes for a non-failure ack
// (success or retry-without-exhaustion).
func RecordJobOutcome(jobType, outcome string) {
	JobOutcomes.WithLabelValues(jobType, outcome).Inc()
}

// RecordJobFailure increments both JobOutcomes (outcome="failed") and
// JobFailureCauses for a terminal failure.
func RecordJobFailure(jobType, cause string) {
	JobOutcomes.WithLabelValues(jobType, "failed").Inc()
	JobFailureCauses.WithLabelValues(jobType, cause).Inc()
}

// SetQueueDepth overwrites the gauge for one status with a freshly
// sampled count.
func SetQueueDepth(status string, count float64) {
	QueueDepth.WithLabelValues(status).Set(count)
}

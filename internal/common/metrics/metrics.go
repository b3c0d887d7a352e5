// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// ScoresComputed counts composite family scores by confidence tier, so
	// dashboards can watch the high/medium/low mix drift as LLM availability
	// changes.
	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resort_scores_computed_total",
			Help: "Total number of composite family scores computed, by confidence",
		},
		[]string{"confidence"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of LLM API calls, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_used_total",
			Help: "Total tokens consumed by LLM calls, by operation",
		},
		[]string{"operation"},
	)

	ResortsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resorts_published_total",
			Help: "Total publish pipeline outcomes (published, flagged, unpublished)",
		},
		[]string{"action"},
	)
)

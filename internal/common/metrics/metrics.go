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

	ParseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_parse_total",
			Help: "Total number of parse queries by outcome",
		},
		[]string{"outcome"},
	)

	ParseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nlu_parse_duration_seconds",
			Help:    "Duration of parse queries in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	SlotResolutionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_slot_resolution_failures_total",
			Help: "Slots whose text could not be resolved to a value",
		},
		[]string{"entity"},
	)

	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_model_loads_total",
			Help: "Model bundle loads by status",
		},
		[]string{"status"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_cache_requests_total",
			Help: "Parse cache lookups by result",
		},
		[]string{"result"},
	)
)

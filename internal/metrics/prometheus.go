package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts finished executions by result status.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeexec_executions_total",
			Help: "Total number of code executions",
		},
		[]string{"outcome"},
	)

	// ExecutionDuration tracks the wall time of job handling in seconds.
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safeexec_execution_duration_seconds",
			Help:    "Duration of code executions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"outcome"},
	)

	// PeakMemoryBytes records the peak resident memory reported per run.
	PeakMemoryBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "safeexec_peak_memory_bytes",
			Help:    "Peak resident memory of executed programs",
			Buckets: prometheus.ExponentialBuckets(1<<20, 2, 10), // 1MiB to 512MiB
		},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "safeexec_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// SandboxFailures counts host-side failures to launch a run (not user code errors).
	SandboxFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "safeexec_sandbox_failures_total",
			Help: "Total number of sandbox infrastructure failures",
		},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FaultsTotal tracks normalized faults per context and severity
	FaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_faults_total",
			Help: "Total number of faults handled",
		},
		[]string{"context", "severity"},
	)

	// RecoveryAttempts tracks strategy invocations per context and outcome
	RecoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_recovery_attempts_total",
			Help: "Total number of recovery attempts",
		},
		[]string{"context", "outcome"},
	)

	// RecoveryDuration tracks how long strategy attempts take
	RecoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faultline_recovery_duration_seconds",
			Help:    "Recovery attempt duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"context"},
	)

	// FallbacksTotal tracks fallback invocations per context
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_fallbacks_total",
			Help: "Total number of fallback invocations",
		},
		[]string{"context"},
	)

	// SafeMode is 1 once safe mode has been entered
	SafeMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faultline_safe_mode",
			Help: "Whether the global safe mode is active",
		},
	)

	// LogSize tracks the number of records in the live fault log
	LogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faultline_log_size",
			Help: "Number of records in the live fault log",
		},
	)

	// RotationsTotal tracks log rotations
	RotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_log_rotations_total",
			Help: "Total number of fault log rotations",
		},
	)

	// ArchiveErrors tracks failures shipping archives to a sink
	ArchiveErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_archive_errors_total",
			Help: "Total number of failed archive writes",
		},
		[]string{"sink"},
	)
)

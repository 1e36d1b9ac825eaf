// Package metrics declares the Prometheus collectors of the service. They are
// registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webmarcas_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webmarcas_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RegistroTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webmarcas_registro_transitions_total",
			Help: "Registro status transitions committed, by target status",
		},
		[]string{"status"},
	)

	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webmarcas_ledger_operations_total",
			Help: "Credit ledger entries written, by operation",
		},
		[]string{"operation"},
	)

	VerificationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webmarcas_verification_lookups_total",
			Help: "Public verification lookups, by outcome",
		},
		[]string{"result"},
	)

	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webmarcas_alerts_triggered_total",
			Help: "Alerts recorded, by level and service",
		},
		[]string{"level", "service"},
	)

	AnchorAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webmarcas_anchor_attempts_total",
			Help: "OpenTimestamps anchoring attempts, by result",
		},
		[]string{"result"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webmarcas_job_duration_seconds",
			Help:    "Duration of scheduled jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job", "result"},
	)
)

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
)

// DocuSign pipeline
var (
	TokenExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esign_token_exchanges_total",
			Help: "JWT bearer token exchanges by outcome (granted, consent_required, failed)",
		},
		[]string{"outcome"},
	)

	AccountResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esign_account_resolutions_total",
			Help: "Account resolutions by outcome (ok, degraded, failed)",
		},
		[]string{"outcome"},
	)

	EnvelopesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esign_envelopes_submitted_total",
			Help: "Envelopes created, by template and the route that accepted them",
		},
		[]string{"template", "route"},
	)

	EnvelopeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esign_envelope_failures_total",
			Help: "Envelope submissions that failed, by error code",
		},
		[]string{"error_code"},
	)
)

// Notifications
var (
	NotificationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esign_notification_attempts_total",
			Help: "Outcome webhook POST attempts (success, http_error, network_error)",
		},
		[]string{"outcome"},
	)

	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esign_notification_deliveries_total",
			Help: "Outcome webhook dispatches by final result",
		},
		[]string{"delivered"},
	)

	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esign_alerts_sent_total",
			Help: "Fallback alerts sent when the webhook is unreachable",
		},
		[]string{"sink", "outcome"},
	)
)

var RateLimitedRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_rate_limited_total",
		Help: "HTTP requests rejected by the per-company rate limiter",
	},
	[]string{"route"},
)

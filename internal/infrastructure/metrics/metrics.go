// Package metrics provides Prometheus metrics for identity-gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequestsTotal counts provider HTTP calls by operation and outcome.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity_gateway",
			Name:      "provider_requests_total",
			Help:      "Total number of identity provider requests",
		},
		[]string{"operation", "outcome"},
	)

	// ProviderRequestDuration measures provider call latency per attempt.
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "identity_gateway",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of identity provider requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// AdminTokenRefreshTotal counts admin token refreshes by status.
	AdminTokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity_gateway",
			Name:      "admin_token_refresh_total",
			Help:      "Total number of admin token refreshes",
		},
		[]string{"status"},
	)

	// AdminTokenSharedTotal counts callers that waited on another caller's refresh.
	AdminTokenSharedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "identity_gateway",
			Name:      "admin_token_shared_refresh_total",
			Help:      "Total number of callers served by a coalesced admin token refresh",
		},
	)

	// WorkflowErrorsTotal counts workflow failures by error kind.
	WorkflowErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity_gateway",
			Name:      "workflow_errors_total",
			Help:      "Total number of failed auth workflows",
		},
		[]string{"workflow", "kind"},
	)

	// RateLimitedTotal counts requests rejected by a named rate limiter.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity_gateway",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by rate limiting",
		},
		[]string{"limiter"},
	)
)

// RecordProviderRequest records one provider call attempt.
func RecordProviderRequest(operation, outcome string, duration float64) {
	ProviderRequestsTotal.WithLabelValues(operation, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(operation).Observe(duration)
}

// RecordAdminTokenRefresh records the outcome of an admin token refresh.
func RecordAdminTokenRefresh(status string) {
	AdminTokenRefreshTotal.WithLabelValues(status).Inc()
}

// RecordSharedRefresh records a caller that reused an in-flight refresh.
func RecordSharedRefresh() {
	AdminTokenSharedTotal.Inc()
}

// RecordWorkflowError records a failed workflow.
func RecordWorkflowError(workflow, kind string) {
	WorkflowErrorsTotal.WithLabelValues(workflow, kind).Inc()
}

// RecordRateLimited records a request rejected by limiter.
func RecordRateLimited(limiter string) {
	RateLimitedTotal.WithLabelValues(limiter).Inc()
}

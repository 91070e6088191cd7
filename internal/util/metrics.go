package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_started_total",
		Help: "Total number of checkout sessions opened",
	})

	CheckoutsSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_succeeded_total",
		Help: "Total number of checkout sessions that reached verified payment",
	})

	CheckoutsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_expired_total",
		Help: "Total number of checkout sessions expired by the reaper",
	})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of pending orders reserved on the backend",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	GatewayLoadAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_load_attempts_total",
		Help: "Total number of gateway library load attempts",
	})

	GatewayLoadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_load_failures_total",
		Help: "Total number of failed gateway library loads",
	})

	PaymentsVerifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_verified_total",
		Help: "Total number of payments verified and finalized",
	})

	VerificationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifications_failed_total",
		Help: "Total number of failed payment verifications",
	}, []string{"reason"})

	GatewayFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_failures_total",
		Help: "Total number of payments the gateway reported as failed",
	})

	GatewayDismissalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_dismissals_total",
		Help: "Total number of widget invocations dismissed by the payer",
	})

	BackendRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_latency_seconds",
		Help:    "Latency of institute-backend API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

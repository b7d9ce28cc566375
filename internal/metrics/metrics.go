// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		},
		[]string{"backend"},
	)

	// Ingest
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpage_events_received_total",
			Help: "Valid tracking events received, by event type and source platform",
		},
		[]string{"event_type", "source"},
	)

	EventsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpage_events_rejected_total",
			Help: "Tracking requests rejected by validation",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpage_store_errors_total",
			Help: "Event store failures by operation",
		},
		[]string{"operation"},
	)

	// Notifications
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpage_notifications_total",
			Help: "Telegram notifications by result (sent, failed, rejected)",
		},
		[]string{"result"},
	)

	NotificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkpage_notification_duration_seconds",
			Help:    "Telegram sendMessage latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkpage_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Dashboard
	DashboardFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpage_dashboard_fallbacks_total",
			Help: "Dashboard requests answered with an empty summary after a store error",
		},
	)
)

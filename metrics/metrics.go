package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SafetyEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herway_safety_events_total",
		Help: "Safety events emitted by the user flows",
	}, []string{"type", "severity"})

	SOSSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herway_sos_sessions_total",
		Help: "SOS sessions opened, by escalation source",
	}, []string{"source"})

	ActiveDashboards = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "herway_active_dashboards",
		Help: "Users with an in-memory safety dashboard",
	})

	GuardianAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herway_guardian_alerts_total",
		Help: "Guardian alert deliveries by channel and outcome",
	}, []string{"channel", "outcome"})

	GuardianQueueDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herway_guardian_queue_drops_total",
		Help: "Guardian alerts dropped because the delivery queue was full",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herway_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "herway_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herway_rate_limited_total",
		Help: "Requests or socket frames rejected by rate limiting",
	}, []string{"scope"})

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "herway_websocket_connections",
		Help: "Open websocket connections",
	})
)

// IncSafetyEvent records one emitted safety event.
func IncSafetyEvent(eventType, severity string) {
	if severity == "" {
		severity = "info"
	}
	SafetyEventsTotal.WithLabelValues(eventType, severity).Inc()
}

// IncGuardianAlert records a delivery attempt on one channel.
func IncGuardianAlert(channel string, ok bool) {
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	GuardianAlertsTotal.WithLabelValues(channel, outcome).Inc()
}

// Package metrics exposes the dialer-router's Prometheus instrumentation,
// grounded on this stack's promauto usage pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_events_received_total",
		Help: "Total number of ARI events received from the media server.",
	}, []string{"type"})

	EventProcessingErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_event_processing_errors_total",
		Help: "Total number of ARI events that failed to process.",
	}, []string{"type"})

	CallsRoutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_calls_routed_total",
		Help: "Total number of calls routed to an agent.",
	}, []string{"queue"})

	CallsQueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_calls_queued_total",
		Help: "Total number of calls placed on hold in a queue.",
	}, []string{"queue"})

	CallsAbandonedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_calls_abandoned_total",
		Help: "Total number of waiting calls that hung up before being routed.",
	}, []string{"queue"})

	OriginationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_origination_failures_total",
		Help: "Total number of failed agent originations.",
	}, []string{"queue"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "router_queue_depth",
		Help: "Current number of calls waiting in a queue.",
	}, []string{"queue"})

	AgentsAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "router_agents_available",
		Help: "Current number of agents in AVAILABLE state, by queue.",
	}, []string{"queue"})

	LiveFeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "router_live_feed_connections",
		Help: "Current number of connected supervisor live feed WebSocket clients.",
	})

	ARIReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_ari_reconnects_total",
		Help: "Total number of ARI event stream reconnect attempts.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_http_requests_total",
		Help: "Total number of HTTP requests handled, by route and status code.",
	}, []string{"route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "router_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_relay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	RelayConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_relay_connections",
			Help: "Currently registered relay connections",
		},
	)

	RelayInboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_inbound_messages_total",
			Help: "Inbound relay payloads by result",
		},
		[]string{"result"}, // "accepted" or "malformed"
	)

	RelayDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_deliveries_total",
			Help: "Per-member deliveries by result",
		},
		[]string{"result"}, // "queued" or "dropped"
	)

	// Store metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_store_operations_total",
			Help: "Chat store API operations by result",
		},
		[]string{"operation", "result"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"path"},
	)
)

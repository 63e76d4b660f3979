package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the gateway
type Metrics struct {
	// Broker bridge metrics
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
	EventsDelivered *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsEnded   *prometheus.CounterVec

	registry *ConnectionRegistry
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics(registry *ConnectionRegistry) *Metrics {
	metrics := &Metrics{
		registry: registry,

		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachback_broker_events_published_total",
			Help: "Total number of events published to the input stream",
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachback_broker_publish_errors_total",
			Help: "Total number of failed publishes (logged, never propagated)",
		}),

		// Delivered by topic: "question" or "score"
		EventsDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "teachback_broker_events_delivered_total",
			Help: "Total number of broker events delivered to a live connection",
		}, []string{"topic"}),

		// Dropped by reason: "no_connection", "malformed" or "slow_consumer"
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "teachback_broker_events_dropped_total",
			Help: "Total number of broker events dropped before delivery",
		}, []string{"reason"}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachback_sessions_started_total",
			Help: "Total number of teaching sessions started",
		}),

		// Ended by reason: "timeout", "confusion", "user"
		SessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "teachback_sessions_ended_total",
			Help: "Total number of teaching sessions ended, by reason",
		}, []string{"reason"}),
	}

	// Live connection count comes straight from the registry
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "teachback_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
		func() float64 {
			if registry != nil {
				return float64(registry.Count())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

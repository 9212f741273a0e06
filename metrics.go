package vnats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors for publisher, consumer and connection activity.
// All collectors are registered on the default registry; expose them with
// MetricsHandler.
var (
	eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nats_events_published_total",
		Help: "Total number of events published to NATS JetStream",
	}, []string{"event_type", "stream", "status"})

	publishDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nats_publish_duration_seconds",
		Help:    "Time taken to publish event to NATS JetStream",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"event_type"})

	publishErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nats_publish_errors_total",
		Help: "Total number of publish errors by error type",
	}, []string{"event_type", "error_type"})

	publishRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nats_publish_retries_total",
		Help: "Total number of publish retry attempts",
	}, []string{"event_type", "attempt"})

	payloadSizeBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nats_event_payload_size_bytes",
		Help:    "Size of event payloads in bytes",
		Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
	}, []string{"event_type"})

	eventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nats_events_consumed_total",
		Help: "Total number of events consumed from NATS JetStream",
	}, []string{"event_type", "consumer", "status"})

	consumeDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nats_consume_duration_seconds",
		Help:    "Time taken to process consumed event",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"event_type", "consumer"})

	consumerLagMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nats_consumer_lag_messages",
		Help: "Number of pending messages waiting to be consumed",
	}, []string{"stream", "consumer"})

	consumerProcessingMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nats_consumer_processing_messages",
		Help: "Number of messages currently being processed by consumer",
	}, []string{"consumer"})

	consumerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nats_consumer_errors_total",
		Help: "Total number of consumer errors",
	}, []string{"consumer", "error_type"})

	connectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	}, []string{"client_name"})

	reconnectionAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nats_reconnection_attempts_total",
		Help: "Total number of reconnection attempts",
	}, []string{"client_name", "status"})
)

// MetricsHandler returns an http.Handler serving all vnats collectors in
// Prometheus exposition format. Mount it on a mux at /metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

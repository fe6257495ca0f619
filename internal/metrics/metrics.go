package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipbox_gateway_calls_total",
			Help: "Calls to the shipping provider by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shipbox_gateway_call_duration_seconds",
			Help:    "Shipping provider call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	QuoteFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipbox_quote_fallbacks_total",
			Help: "Quote requests answered with fixed fallback rates",
		},
		[]string{"reason"},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipbox_webhooks_total",
			Help: "Inbound webhooks by processing outcome",
		},
		[]string{"outcome"},
	)

	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipbox_sync_items_total",
			Help: "Tracking refreshes performed by batch sync",
		},
		[]string{"outcome"},
	)

	QueueMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipbox_queue_messages_total",
			Help: "Consumed Kafka messages by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveGateway записывает исход и длительность одного вызова провайдера.
func ObserveGateway(op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	GatewayCallsTotal.WithLabelValues(op, outcome).Inc()
	GatewayCallDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

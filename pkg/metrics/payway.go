package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaywayMetrics tracks traffic to and from the payment gateway.
type PaywayMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestFailures *prometheus.CounterVec
	pushbacks       *prometheus.CounterVec
}

// NewPaywayMetrics registers the gateway metrics on the provided registerer.
func NewPaywayMetrics(reg prometheus.Registerer) *PaywayMetrics {
	if reg == nil {
		return &PaywayMetrics{}
	}
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payway_request_duration_seconds",
		Help:    "Duration of outbound PayWay API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	requestFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payway_request_failures",
		Help: "Outbound PayWay API calls that did not return a parsable success.",
	}, []string{"operation", "reason"})
	pushbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payway_pushbacks",
		Help: "Inbound PayWay pushback deliveries by processing outcome.",
	}, []string{"outcome"})
	reg.MustRegister(requestDuration, requestFailures, pushbacks)
	return &PaywayMetrics{
		requestDuration: requestDuration,
		requestFailures: requestFailures,
		pushbacks:       pushbacks,
	}
}

// ObserveRequest records the duration of an outbound gateway call.
func (m *PaywayMetrics) ObserveRequest(operation string, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncRequestFailure counts a failed outbound gateway call.
func (m *PaywayMetrics) IncRequestFailure(operation, reason string) {
	if m == nil || m.requestFailures == nil {
		return
	}
	m.requestFailures.WithLabelValues(normalizeLabel(operation), normalizeLabel(reason)).Inc()
}

// IncPushback counts an inbound pushback by outcome
// (applied_success, applied_failure, malformed, unknown, error).
func (m *PaywayMetrics) IncPushback(outcome string) {
	if m == nil || m.pushbacks == nil {
		return
	}
	m.pushbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts job service callbacks as they are received and
// dispatched.
type WebhookMetrics struct {
	received   *prometheus.CounterVec
	dispatched *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received_total",
		Help: "Webhook events accepted by outcome (recorded, duplicate).",
	}, []string{"type", "outcome"})
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_dispatched_total",
		Help: "Webhook dispatch results by processing status.",
	}, []string{"type", "status"})
	reg.MustRegister(received, dispatched)
	return &WebhookMetrics{received: received, dispatched: dispatched}
}

// IncReceived counts an accepted callback.
func (w *WebhookMetrics) IncReceived(eventType, outcome string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncDispatched counts a dispatch result.
func (w *WebhookMetrics) IncDispatched(eventType, status string) {
	if w == nil || w.dispatched == nil {
		return
	}
	w.dispatched.WithLabelValues(normalizeLabel(eventType), normalizeLabel(status)).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records checkout and webhook processing counters.
type PaymentMetrics struct {
	checkouts *prometheus.CounterVec
	webhooks  *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_initiated_total",
		Help: "Checkout initiations by outcome.",
	}, []string{"outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(checkouts, webhooks)
	return &PaymentMetrics{
		checkouts: checkouts,
		webhooks:  webhooks,
	}
}

// IncCheckout increments the checkout counter for the given outcome.
func (p *PaymentMetrics) IncCheckout(outcome string) {
	if p == nil || p.checkouts == nil {
		return
	}
	p.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhook increments the webhook counter for the given event type and outcome.
func (p *PaymentMetrics) IncWebhook(eventType, outcome string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

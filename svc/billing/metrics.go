package billing

import "github.com/prometheus/client_golang/prometheus"

// Webhook outcomes recorded by the ingress.
const (
	WebhookSettled        = "settled"
	WebhookDuplicate      = "duplicate"
	WebhookIgnored        = "ignored"
	WebhookUnknownOrder   = "unknown_order"
	WebhookOrderPayment   = "order_payment"
	WebhookAmountMismatch = "amount_mismatch"
	WebhookBadSignature   = "bad_signature"
	WebhookMalformed      = "malformed"
	WebhookFailed         = "failed"
)

// Metrics holds the billing counters.
type Metrics struct {
	paymentsSettled          *prometheus.CounterVec
	webhooks                 *prometheus.CounterVec
	notificationsFailed      *prometheus.CounterVec
	materializationConflicts prometheus.Counter
	sweeps                   *prometheus.CounterVec
	subscriptionsExpired     prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg. A nil reg
// uses a private registry, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		paymentsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "payments_settled_total",
			Help:      "Payments moved to paid, by payment type.",
		}, []string{"type"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "webhooks_total",
			Help:      "Gateway webhook deliveries, by outcome.",
		}, []string{"outcome"}),
		notificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "notifications_failed_total",
			Help:      "Notifications that could not be delivered, by kind.",
		}, []string{"kind"}),
		materializationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "materialization_conflicts_total",
			Help:      "Paid registrations whose slug or email was taken at materialization.",
		}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "sweeps_total",
			Help:      "Records handled by periodic sweeps, by job.",
		}, []string{"job"}),
		subscriptionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions transitioned to expired.",
		}),
	}
	reg.MustRegister(
		m.paymentsSettled,
		m.webhooks,
		m.notificationsFailed,
		m.materializationConflicts,
		m.sweeps,
		m.subscriptionsExpired,
	)
	return m
}

// Webhook records one webhook delivery outcome.
func (m *Metrics) Webhook(outcome string) {
	m.webhooks.WithLabelValues(outcome).Inc()
}

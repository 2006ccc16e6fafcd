// Package metrics содержит счетчики Prometheus, которые отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "motivation_hub"

// Исходы обработки вебхука.
const (
	WebhookCaptured  = "captured"
	WebhookFailed    = "failed"
	WebhookPending   = "pending"
	WebhookDuplicate = "duplicate"
	WebhookUnknown   = "unknown"
	WebhookError     = "error"
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Payment webhook events by outcome.",
	}, []string{"outcome"})

	SubscriptionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_transitions_total",
		Help:      "Subscription state transitions.",
	}, []string{"transition"})

	MessagesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_messages_generated_total",
		Help:      "Generated motivational messages by type.",
	}, []string{"type"})

	QuotaDenials = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_denials_total",
		Help:      "Message requests rejected by the daily quota.",
	})

	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_errors_total",
		Help:      "Failed calls to external services.",
	}, []string{"service"})
)

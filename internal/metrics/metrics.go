package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "menu_billing",
	Subsystem: "lifecycle",
	Name:      "transitions_total",
	Help:      "Subscription status transitions by source and resulting status",
}, []string{"source", "status"})

var WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "menu_billing",
	Subsystem: "webhook",
	Name:      "events_total",
	Help:      "Provider events by kind and outcome",
}, []string{"kind", "outcome"})

var ConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "menu_billing",
	Subsystem: "store",
	Name:      "conflict_retries_total",
	Help:      "Optimistic concurrency conflicts that were retried",
})

var PaymentDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "menu_billing",
	Subsystem: "ledger",
	Name:      "decisions_total",
	Help:      "Admin decisions on payment requests",
}, []string{"decision"})

var RemindersEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "menu_billing",
	Subsystem: "reminders",
	Name:      "emitted_total",
	Help:      "Reminder intents emitted by threshold",
}, []string{"threshold"})

var NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "menu_billing",
	Subsystem: "notifier",
	Name:      "deliveries_total",
	Help:      "Notification intent deliveries by result",
}, []string{"result"})

var TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "menu_billing",
	Subsystem: "scheduler",
	Name:      "tick_duration_seconds",
	Help:      "Duration of a full scheduler tick",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
})

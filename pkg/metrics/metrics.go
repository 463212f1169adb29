package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records bearer token verification by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yaruyo_auth_attempts_total",
			Help: "Total number of bearer token verifications",
		},
		[]string{"result"},
	)

	// Dispatches counts notification dispatches by type and final status
	// (sent|failed|duplicate).
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yaruyo_dispatch_total",
			Help: "Total number of notification dispatch attempts",
		},
		[]string{"type", "status"},
	)

	// PushRequests counts outbound push channel calls by provider and result.
	PushRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yaruyo_push_requests_total",
			Help: "Total number of outbound push channel calls",
		},
		[]string{"provider", "kind", "result"},
	)

	// ReminderSweeps counts reminder sweep runs (success|error).
	ReminderSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yaruyo_reminder_sweep_runs_total",
			Help: "Total number of reminder sweep runs",
		},
		[]string{"result"},
	)

	// ReminderPlans counts plans visited by the sweep by outcome
	// (sent|failed|duplicate|opted_out|invalid_slot).
	ReminderPlans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yaruyo_reminder_plans_total",
			Help: "Total number of plans processed by the reminder sweep",
		},
		[]string{"outcome"},
	)

	// WebhookEvents counts inbound webhook events by type and result.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yaruyo_webhook_events_total",
			Help: "Total number of inbound webhook events",
		},
		[]string{"type", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yaruyo_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

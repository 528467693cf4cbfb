// Package metrics exposes settlement engine counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsByOutcome counts lifecycle outcomes by final status
	PaymentsByOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainroute_payments_total",
		Help: "Payments by lifecycle outcome",
	}, []string{"status"})

	// SettlementAttempts counts sweep attempts by result
	SettlementAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainroute_settlement_attempts_total",
		Help: "Sweep attempts by result",
	}, []string{"chain", "result"})

	// WebhookDeliveries counts webhook delivery attempts by result
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainroute_webhook_deliveries_total",
		Help: "Webhook delivery attempts by result",
	}, []string{"event", "result"})

	// TransferEvents counts observed incoming transfers by classification
	TransferEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainroute_transfer_events_total",
		Help: "Observed incoming transfers by classification",
	}, []string{"chain", "classification"})
)

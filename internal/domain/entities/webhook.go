package entities

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent names a merchant-facing lifecycle event
type WebhookEvent string

const (
	WebhookEventConfirmed        WebhookEvent = "payment.confirmed"
	WebhookEventSettled          WebhookEvent = "payment.settled"
	WebhookEventSettlementFailed WebhookEvent = "payment.settlement_failed"
	WebhookEventFailed           WebhookEvent = "payment.failed"
	WebhookEventMismatched       WebhookEvent = "payment.mismatched"
)

// DeliveryStatus is the outcome of one webhook delivery attempt
type DeliveryStatus string

const (
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// WebhookDelivery is one delivery attempt record. Multiple rows per
// logical event are expected under retry.
type WebhookDelivery struct {
	ID           uuid.UUID      `json:"id"`
	PaymentID    uuid.UUID      `json:"paymentId"`
	Event        WebhookEvent   `json:"event"`
	URL          string         `json:"url"`
	Status       DeliveryStatus `json:"status"`
	Attempt      int            `json:"attempt"`
	Payload      string         `json:"payload"`
	ResponseCode int            `json:"responseCode"`
	ResponseBody string         `json:"responseBody"`
	CreatedAt    time.Time      `json:"sentAt"`
}

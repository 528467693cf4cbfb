package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// PSPStatus represents provider account status
type PSPStatus string

const (
	PSPStatusActive    PSPStatus = "active"
	PSPStatusSuspended PSPStatus = "suspended"
)

// PSP represents a payment service provider (merchant backend) that
// receives swept funds and lifecycle webhooks
type PSP struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	PayoutWallet string      `json:"payoutWallet"`
	WebhookURL   null.String `json:"webhookUrl,omitempty"`
	Status       PSPStatus   `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

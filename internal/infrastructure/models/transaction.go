package models

import (
	"time"

	"github.com/google/uuid"
)

// RoutedTransaction rows are append-only. The partial unique index on
// (payment_id) where target='psp' and success=true is created in the
// migration; it backs the one-successful-sweep invariant.
type RoutedTransaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID uuid.UUID `gorm:"type:uuid;not null;index"`
	TxHash    *string   `gorm:"type:varchar(255)"`
	Chain     string    `gorm:"type:varchar(50);not null"`
	Token     string    `gorm:"type:varchar(255);not null"`
	Amount    string    `gorm:"type:varchar(100);not null"`
	Target    string    `gorm:"type:varchar(20);not null;index"`
	Attempt   int       `gorm:"not null"`
	Success   bool      `gorm:"not null"`
	Cause     *string   `gorm:"type:varchar(50)"`
	Error     *string   `gorm:"type:text"`
	Meta      *string   `gorm:"type:jsonb"`
	RoutedAt  time.Time
}

type MismatchedPayment struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID      uuid.UUID `gorm:"type:uuid;not null;index"`
	TxHash         string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Sender         string    `gorm:"type:varchar(255);not null"`
	ExpectedAmount string    `gorm:"type:varchar(100);not null"`
	ReceivedAmount string    `gorm:"type:varchar(100);not null"`
	Status         string    `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time
}

type WebhookDelivery struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Event        string    `gorm:"type:varchar(50);not null"`
	URL          string    `gorm:"type:varchar(2048);not null"`
	Status       string    `gorm:"type:varchar(20);not null"`
	Attempt      int       `gorm:"not null"`
	Payload      string    `gorm:"type:text"`
	ResponseCode int
	ResponseBody string `gorm:"type:text"`
	CreatedAt    time.Time
}

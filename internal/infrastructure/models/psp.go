package models

import (
	"time"

	"github.com/google/uuid"
)

type PSP struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"type:varchar(255);not null"`
	PayoutWallet string    `gorm:"type:varchar(255);not null"`
	WebhookURL   *string   `gorm:"type:varchar(2048)"`
	Status       string    `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName keeps the short plural the gateway schema uses
func (PSP) TableName() string {
	return "psps"
}

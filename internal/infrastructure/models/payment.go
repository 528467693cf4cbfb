package models

import (
	"time"

	"github.com/google/uuid"
)

type Payment struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	PSPID              uuid.UUID `gorm:"type:uuid;not null;index"`
	Amount             string    `gorm:"type:varchar(100);not null"`
	Currency           string    `gorm:"type:varchar(10);not null"`
	Chain              string    `gorm:"type:varchar(50);not null;index"`
	TokenAddress       string    `gorm:"type:varchar(255);not null"`
	ReceivingWallet    string    `gorm:"type:varchar(255);not null;index"`
	PSPWallet          string    `gorm:"type:varchar(255);not null"`
	Status             string    `gorm:"type:varchar(50);not null;index"`
	CreatedBlockNumber *int64
	CustomerAddress    *string `gorm:"type:varchar(255)"`
	ConfirmedAt        *time.Time
	SettledAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type PaymentRoute struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Chain         string    `gorm:"type:varchar(50);not null"`
	Token         string    `gorm:"type:varchar(255);not null"`
	EstimatedFee  string    `gorm:"type:varchar(100);not null"`
	EstimatedTime float64
	HealthScore   *float64
	RankingScore  *float64
	TxHash        *string `gorm:"type:varchar(255)"`
	WasUsed       bool    `gorm:"not null;default:false"`
	DecidedAt     time.Time
}

package repositories

import (
	"chain-route.backend/internal/infrastructure/models"
	"gorm.io/gorm"
)

// Migrate creates the schema. The partial unique index cannot be expressed
// as a gorm tag, so it is issued directly; both postgres and sqlite accept
// the WHERE clause.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.PSP{},
		&models.Payment{},
		&models.PaymentRoute{},
		&models.RoutedTransaction{},
		&models.MismatchedPayment{},
		&models.WebhookDelivery{},
	); err != nil {
		return err
	}

	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_routed_tx_psp_success
		 ON routed_transactions (payment_id)
		 WHERE target = 'psp' AND success = true`,
	).Error
}

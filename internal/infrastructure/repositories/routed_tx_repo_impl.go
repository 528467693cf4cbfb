package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"chain-route.backend/internal/domain/entities"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/internal/infrastructure/models"
)

// RoutedTransactionRepository implements the append-only settlement ledger
type RoutedTransactionRepository struct {
	db *gorm.DB
}

// NewRoutedTransactionRepository creates a new ledger repository
func NewRoutedTransactionRepository(db *gorm.DB) *RoutedTransactionRepository {
	return &RoutedTransactionRepository{db: db}
}

// Append inserts one ledger row. The partial unique index on successful
// psp rows rejects a duplicate sweep record at the store level.
func (r *RoutedTransactionRepository) Append(ctx context.Context, tx *entities.RoutedTransaction) error {
	m := &models.RoutedTransaction{
		ID:        tx.ID,
		PaymentID: tx.PaymentID,
		TxHash:    tx.TxHash.Ptr(),
		Chain:     tx.Chain,
		Token:     tx.Token,
		Amount:    tx.Amount,
		Target:    string(tx.Target),
		Attempt:   tx.Attempt,
		Success:   tx.Success,
		Cause:     tx.Cause.Ptr(),
		Error:     tx.Error.Ptr(),
		Meta:      tx.Meta.Ptr(),
		RoutedAt:  tx.RoutedAt,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	tx.ID = m.ID
	return nil
}

// HasSuccessfulTarget reports whether a success=true row exists for the
// payment and target
func (r *RoutedTransactionRepository) HasSuccessfulTarget(ctx context.Context, paymentID uuid.UUID, target entities.RoutedTarget) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoutedTransaction{}).
		Where("payment_id = ? AND target = ? AND success = ?", paymentID, target, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByPayment returns all ledger rows for a payment, oldest first
func (r *RoutedTransactionRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*entities.RoutedTransaction, error) {
	var ms []models.RoutedTransaction
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("routed_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	txs := make([]*entities.RoutedTransaction, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		txs = append(txs, &entities.RoutedTransaction{
			ID:        m.ID,
			PaymentID: m.PaymentID,
			TxHash:    null.StringFromPtr(m.TxHash),
			Chain:     m.Chain,
			Token:     m.Token,
			Amount:    m.Amount,
			Target:    entities.RoutedTarget(m.Target),
			Attempt:   m.Attempt,
			Success:   m.Success,
			Cause:     null.StringFromPtr(m.Cause),
			Error:     null.StringFromPtr(m.Error),
			Meta:      null.StringFromPtr(m.Meta),
			RoutedAt:  m.RoutedAt,
		})
	}
	return txs, nil
}

// isUniqueViolation matches postgres and sqlite unique constraint errors
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}

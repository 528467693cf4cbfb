package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"chain-route.backend/internal/domain/entities"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/internal/infrastructure/models"
)

// MismatchRepository implements mismatched payment storage
type MismatchRepository struct {
	db *gorm.DB
}

// NewMismatchRepository creates a new mismatch repository
func NewMismatchRepository(db *gorm.DB) *MismatchRepository {
	return &MismatchRepository{db: db}
}

// Append inserts one mismatch row, unique on tx hash
func (r *MismatchRepository) Append(ctx context.Context, mm *entities.MismatchedPayment) error {
	m := &models.MismatchedPayment{
		ID:             mm.ID,
		PaymentID:      mm.PaymentID,
		TxHash:         mm.TxHash,
		Sender:         mm.Sender,
		ExpectedAmount: mm.ExpectedAmount,
		ReceivedAmount: mm.ReceivedAmount,
		Status:         string(mm.Status),
		CreatedAt:      mm.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	mm.ID = m.ID
	return nil
}

// GetByTxHash fetches a mismatch row by transaction hash
func (r *MismatchRepository) GetByTxHash(ctx context.Context, txHash string) (*entities.MismatchedPayment, error) {
	var m models.MismatchedPayment
	if err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.MismatchedPayment{
		ID:             m.ID,
		PaymentID:      m.PaymentID,
		TxHash:         m.TxHash,
		Sender:         m.Sender,
		ExpectedAmount: m.ExpectedAmount,
		ReceivedAmount: m.ReceivedAmount,
		Status:         entities.MismatchStatus(m.Status),
		CreatedAt:      m.CreatedAt,
	}, nil
}

// MarkSorted flags a mismatch as manually reconciled
func (r *MismatchRepository) MarkSorted(ctx context.Context, txHash string) error {
	result := r.db.WithContext(ctx).Model(&models.MismatchedPayment{}).
		Where("tx_hash = ? AND status IN ?", txHash, []string{string(entities.MismatchStatusUnderpaid), string(entities.MismatchStatusOverpaid)}).
		Update("status", entities.MismatchStatusSorted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"chain-route.backend/internal/domain/entities"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/internal/infrastructure/models"
)

// PaymentRepository implements payment data operations
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create creates a new payment
func (r *PaymentRepository) Create(ctx context.Context, payment *entities.Payment) error {
	m := toPaymentModel(payment)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	payment.ID = m.ID
	return nil
}

// GetByID gets a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Payment, error) {
	var m models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toPaymentEntity(&m), nil
}

// ListPending returns pending payments carrying a creation block number
func (r *PaymentRepository) ListPending(ctx context.Context) ([]*entities.Payment, error) {
	var ms []models.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_block_number IS NOT NULL", entities.PaymentStatusPending).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toPaymentEntities(ms), nil
}

// ListConfirmedUnsettled returns confirmed or settling payments. Swept but
// unmarked payments stay in the set so recovery can finalize their ledger.
func (r *PaymentRepository) ListConfirmedUnsettled(ctx context.Context) ([]*entities.Payment, error) {
	var ms []models.Payment
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(entities.PaymentStatusConfirmed), string(entities.PaymentStatusSettling)}).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toPaymentEntities(ms), nil
}

// ListStalePending returns pending payments not updated within maxAgeMinutes
func (r *PaymentRepository) ListStalePending(ctx context.Context, maxAgeMinutes int) ([]*entities.Payment, error) {
	cutoff := time.Now().Add(-time.Duration(maxAgeMinutes) * time.Minute)
	var ms []models.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", entities.PaymentStatusPending, cutoff).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toPaymentEntities(ms), nil
}

// UpdateStatus moves a payment between statuses with compare-and-swap
// semantics on the current status
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entities.PaymentStatus) error {
	if !entities.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domainerrors.ErrInvalidTransition, from, to)
	}
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s -> %s", domainerrors.ErrInvalidTransition, from, to)
	}
	return nil
}

// MarkConfirmed transitions pending -> confirmed recording the payer
func (r *PaymentRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, customerAddress string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, entities.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":           entities.PaymentStatusConfirmed,
			"customer_address": customerAddress,
			"confirmed_at":     now,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: pending -> confirmed", domainerrors.ErrInvalidTransition)
	}
	return nil
}

// MarkMismatched transitions pending or confirmed -> mismatched
func (r *PaymentRepository) MarkMismatched(ctx context.Context, id uuid.UUID, customerAddress string) error {
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, []string{string(entities.PaymentStatusPending), string(entities.PaymentStatusConfirmed)}).
		Updates(map[string]interface{}{
			"status":           entities.PaymentStatusMismatched,
			"customer_address": customerAddress,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: -> mismatched", domainerrors.ErrInvalidTransition)
	}
	return nil
}

// MarkSettled transitions settling -> settled stamping settled_at
func (r *PaymentRepository) MarkSettled(ctx context.Context, id uuid.UUID) error {
	return r.markSettlementOutcome(ctx, id, entities.PaymentStatusSettled)
}

// MarkSettledFailed transitions settling -> settled_failed stamping settled_at
func (r *PaymentRepository) MarkSettledFailed(ctx context.Context, id uuid.UUID) error {
	return r.markSettlementOutcome(ctx, id, entities.PaymentStatusSettledFailed)
}

func (r *PaymentRepository) markSettlementOutcome(ctx context.Context, id uuid.UUID, to entities.PaymentStatus) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, entities.PaymentStatusSettling).
		Updates(map[string]interface{}{
			"status":     to,
			"settled_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: settling -> %s", domainerrors.ErrInvalidTransition, to)
	}
	return nil
}

func toPaymentModel(p *entities.Payment) *models.Payment {
	m := &models.Payment{
		ID:              p.ID,
		PSPID:           p.PSPID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Chain:           p.Chain,
		TokenAddress:    p.TokenAddress,
		ReceivingWallet: p.ReceivingWallet,
		PSPWallet:       p.PSPWallet,
		Status:          string(p.Status),
		ConfirmedAt:     p.ConfirmedAt,
		SettledAt:       p.SettledAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.CreatedBlockNumber.Valid {
		v := p.CreatedBlockNumber.Int64
		m.CreatedBlockNumber = &v
	}
	if p.CustomerAddress.Valid {
		v := p.CustomerAddress.String
		m.CustomerAddress = &v
	}
	return m
}

func toPaymentEntity(m *models.Payment) *entities.Payment {
	return &entities.Payment{
		ID:                 m.ID,
		PSPID:              m.PSPID,
		Amount:             m.Amount,
		Currency:           m.Currency,
		Chain:              m.Chain,
		TokenAddress:       m.TokenAddress,
		ReceivingWallet:    m.ReceivingWallet,
		PSPWallet:          m.PSPWallet,
		Status:             entities.PaymentStatus(m.Status),
		CreatedBlockNumber: null.Int64FromPtr(m.CreatedBlockNumber),
		CustomerAddress:    null.StringFromPtr(m.CustomerAddress),
		ConfirmedAt:        m.ConfirmedAt,
		SettledAt:          m.SettledAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toPaymentEntities(ms []models.Payment) []*entities.Payment {
	payments := make([]*entities.Payment, 0, len(ms))
	for i := range ms {
		payments = append(payments, toPaymentEntity(&ms[i]))
	}
	return payments
}

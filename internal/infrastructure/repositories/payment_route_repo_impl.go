package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"chain-route.backend/internal/domain/entities"
	"chain-route.backend/internal/infrastructure/models"
)

// PaymentRouteRepository implements the route decision audit trail
type PaymentRouteRepository struct {
	db *gorm.DB
}

// NewPaymentRouteRepository creates a new payment route repository
func NewPaymentRouteRepository(db *gorm.DB) *PaymentRouteRepository {
	return &PaymentRouteRepository{db: db}
}

// Create persists one route decision
func (r *PaymentRouteRepository) Create(ctx context.Context, route *entities.PaymentRoute) error {
	m := &models.PaymentRoute{
		ID:            route.ID,
		PaymentID:     route.PaymentID,
		Chain:         route.Chain,
		Token:         route.Token,
		EstimatedFee:  route.EstimatedFee,
		EstimatedTime: route.EstimatedTime,
		HealthScore:   route.HealthScore.Ptr(),
		RankingScore:  route.RankingScore.Ptr(),
		TxHash:        route.TxHash.Ptr(),
		WasUsed:       route.WasUsed,
		DecidedAt:     route.DecidedAt,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	route.ID = m.ID
	return nil
}

// MarkUsed stamps the latest route row for a payment with the incoming
// transfer hash
func (r *PaymentRouteRepository) MarkUsed(ctx context.Context, paymentID uuid.UUID, txHash string) error {
	var latest models.PaymentRoute
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("decided_at DESC").
		First(&latest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	return r.db.WithContext(ctx).Model(&models.PaymentRoute{}).
		Where("id = ?", latest.ID).
		Updates(map[string]interface{}{
			"was_used": true,
			"tx_hash":  txHash,
		}).Error
}

// ListByPayment returns route rows for a payment, newest first
func (r *PaymentRouteRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*entities.PaymentRoute, error) {
	var ms []models.PaymentRoute
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("decided_at DESC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	routes := make([]*entities.PaymentRoute, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		routes = append(routes, &entities.PaymentRoute{
			ID:            m.ID,
			PaymentID:     m.PaymentID,
			Chain:         m.Chain,
			Token:         m.Token,
			EstimatedFee:  m.EstimatedFee,
			EstimatedTime: m.EstimatedTime,
			HealthScore:   null.Float64FromPtr(m.HealthScore),
			RankingScore:  null.Float64FromPtr(m.RankingScore),
			TxHash:        null.StringFromPtr(m.TxHash),
			WasUsed:       m.WasUsed,
			DecidedAt:     m.DecidedAt,
		})
	}
	return routes, nil
}

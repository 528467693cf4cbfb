package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"chain-route.backend/internal/domain/entities"
	"chain-route.backend/internal/infrastructure/models"
)

// WebhookDeliveryRepository implements webhook delivery logging
type WebhookDeliveryRepository struct {
	db *gorm.DB
}

// NewWebhookDeliveryRepository creates a new webhook delivery repository
func NewWebhookDeliveryRepository(db *gorm.DB) *WebhookDeliveryRepository {
	return &WebhookDeliveryRepository{db: db}
}

// Append records one delivery attempt
func (r *WebhookDeliveryRepository) Append(ctx context.Context, d *entities.WebhookDelivery) error {
	m := &models.WebhookDelivery{
		ID:           d.ID,
		PaymentID:    d.PaymentID,
		Event:        string(d.Event),
		URL:          d.URL,
		Status:       string(d.Status),
		Attempt:      d.Attempt,
		Payload:      d.Payload,
		ResponseCode: d.ResponseCode,
		ResponseBody: d.ResponseBody,
		CreatedAt:    d.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	d.ID = m.ID
	return nil
}

// ListByPayment returns delivery attempts for a payment, newest first
func (r *WebhookDeliveryRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*entities.WebhookDelivery, error) {
	var ms []models.WebhookDelivery
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at DESC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	deliveries := make([]*entities.WebhookDelivery, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		deliveries = append(deliveries, &entities.WebhookDelivery{
			ID:           m.ID,
			PaymentID:    m.PaymentID,
			Event:        entities.WebhookEvent(m.Event),
			URL:          m.URL,
			Status:       entities.DeliveryStatus(m.Status),
			Attempt:      m.Attempt,
			Payload:      m.Payload,
			ResponseCode: m.ResponseCode,
			ResponseBody: m.ResponseBody,
			CreatedAt:    m.CreatedAt,
		})
	}
	return deliveries, nil
}

package repositories

import (
	"context"

	"github.com/google/uuid"
	"chain-route.backend/internal/domain/entities"
)

// WebhookDeliveryRepository stores webhook delivery attempt records
type WebhookDeliveryRepository interface {
	Append(ctx context.Context, d *entities.WebhookDelivery) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*entities.WebhookDelivery, error)
}

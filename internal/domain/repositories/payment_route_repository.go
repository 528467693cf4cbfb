package repositories

import (
	"context"

	"github.com/google/uuid"
	"chain-route.backend/internal/domain/entities"
)

// PaymentRouteRepository stores the route decision audit trail
type PaymentRouteRepository interface {
	Create(ctx context.Context, route *entities.PaymentRoute) error

	// MarkUsed stamps the latest route row for a payment with the incoming
	// transfer hash.
	MarkUsed(ctx context.Context, paymentID uuid.UUID, txHash string) error

	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*entities.PaymentRoute, error)
}

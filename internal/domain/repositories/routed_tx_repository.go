package repositories

import (
	"context"

	"github.com/google/uuid"
	"chain-route.backend/internal/domain/entities"
)

// RoutedTransactionRepository is the append-only settlement attempt ledger
type RoutedTransactionRepository interface {
	// Append inserts one ledger row. It returns
	// domainerrors.ErrAlreadyExists when the row would be a second
	// successful psp-target row for the payment.
	Append(ctx context.Context, tx *entities.RoutedTransaction) error

	// HasSuccessfulTarget reports whether a success=true row exists for the
	// payment and target. This is the durable idempotency fence.
	HasSuccessfulTarget(ctx context.Context, paymentID uuid.UUID, target entities.RoutedTarget) (bool, error)

	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*entities.RoutedTransaction, error)
}

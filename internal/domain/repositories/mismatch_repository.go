package repositories

import (
	"context"

	"chain-route.backend/internal/domain/entities"
)

// MismatchRepository stores underpaid/overpaid transfer records
type MismatchRepository interface {
	// Append inserts one mismatch row. Rows are unique on transaction hash;
	// a duplicate insert returns domainerrors.ErrAlreadyExists.
	Append(ctx context.Context, m *entities.MismatchedPayment) error

	GetByTxHash(ctx context.Context, txHash string) (*entities.MismatchedPayment, error)

	// MarkSorted flags a mismatch as manually reconciled.
	MarkSorted(ctx context.Context, txHash string) error
}

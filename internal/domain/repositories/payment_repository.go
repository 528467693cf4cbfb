package repositories

import (
	"context"

	"github.com/google/uuid"
	"chain-route.backend/internal/domain/entities"
)

// PaymentRepository defines payment data operations.
//
// Every status write is a single conditional statement (compare-and-swap on
// the current status); the condition is what keeps re-application of the
// same lifecycle event safe across overlapping polls and restarts.
type PaymentRepository interface {
	Create(ctx context.Context, payment *entities.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Payment, error)

	// ListPending returns pending payments that carry a creation block
	// number, i.e. payments a chain listener can watch.
	ListPending(ctx context.Context) ([]*entities.Payment, error)

	// ListConfirmedUnsettled returns confirmed or settling payments, the
	// crash-recovery work set. Payments already swept but not yet marked
	// are included; the sweep ledger decides how each one is resumed.
	ListConfirmedUnsettled(ctx context.Context) ([]*entities.Payment, error)

	// ListStalePending returns pending payments not updated within maxAge.
	ListStalePending(ctx context.Context, maxAgeMinutes int) ([]*entities.Payment, error)

	// UpdateStatus moves a payment from one status to another. It returns
	// domainerrors.ErrInvalidTransition when the row is no longer in the
	// expected status (zero rows matched the condition).
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entities.PaymentStatus) error

	// MarkConfirmed records the counterparty and confirmation time while
	// transitioning pending -> confirmed.
	MarkConfirmed(ctx context.Context, id uuid.UUID, customerAddress string) error

	// MarkMismatched records the counterparty while transitioning to
	// mismatched from pending or confirmed.
	MarkMismatched(ctx context.Context, id uuid.UUID, customerAddress string) error

	// MarkSettled stamps settled_at while transitioning settling -> settled.
	MarkSettled(ctx context.Context, id uuid.UUID) error

	// MarkSettledFailed stamps settled_at while transitioning
	// settling -> settled_failed.
	MarkSettledFailed(ctx context.Context, id uuid.UUID) error
}

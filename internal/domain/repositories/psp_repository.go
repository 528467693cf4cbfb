package repositories

import (
	"context"

	"github.com/google/uuid"
	"chain-route.backend/internal/domain/entities"
)

// PSPRepository reads merchant (PSP) records
type PSPRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.PSP, error)

	// WebhookURL returns the registered endpoint, or "" when none is set.
	WebhookURL(ctx context.Context, id uuid.UUID) (string, error)
}

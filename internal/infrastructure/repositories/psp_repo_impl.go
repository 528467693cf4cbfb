package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"chain-route.backend/internal/domain/entities"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/internal/infrastructure/models"
)

// PSPRepository implements merchant (PSP) reads
type PSPRepository struct {
	db *gorm.DB
}

// NewPSPRepository creates a new PSP repository
func NewPSPRepository(db *gorm.DB) *PSPRepository {
	return &PSPRepository{db: db}
}

// GetByID gets a PSP by ID
func (r *PSPRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.PSP, error) {
	var m models.PSP
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.PSP{
		ID:           m.ID,
		Name:         m.Name,
		PayoutWallet: m.PayoutWallet,
		WebhookURL:   null.StringFromPtr(m.WebhookURL),
		Status:       entities.PSPStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

// WebhookURL returns the registered endpoint, or "" when none is set
func (r *PSPRepository) WebhookURL(ctx context.Context, id uuid.UUID) (string, error) {
	psp, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !psp.WebhookURL.Valid {
		return "", nil
	}
	return psp.WebhookURL.String, nil
}

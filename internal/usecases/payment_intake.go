package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"chain-route.backend/internal/domain/entities"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/internal/domain/repositories"
	"chain-route.backend/internal/infrastructure/blockchain"
	"chain-route.backend/pkg/logger"
	"chain-route.backend/pkg/metrics"
	"go.uber.org/zap"
)

// PaymentRequest is the pre-validated registration input handed over by the
// gateway surface
type PaymentRequest struct {
	PSPID    uuid.UUID `json:"psp_id"`
	Amount   string    `json:"amount"`
	Currency string    `json:"currency"`
	Chain    string    `json:"chain"`
}

// PaymentIntake registers a payment intent: it resolves the route, derives
// the dedicated receiving wallet and anchors the listener's scan window at
// the current block height.
type PaymentIntake struct {
	payments repositories.PaymentRepository
	routes   repositories.PaymentRouteRepository
	psps     repositories.PSPRepository
	resolver *RouteResolver
	registry *blockchain.Registry
	now      func() time.Time
}

// NewPaymentIntake creates an intake
func NewPaymentIntake(
	payments repositories.PaymentRepository,
	routes repositories.PaymentRouteRepository,
	psps repositories.PSPRepository,
	resolver *RouteResolver,
	registry *blockchain.Registry,
) *PaymentIntake {
	return &PaymentIntake{
		payments: payments,
		routes:   routes,
		psps:     psps,
		resolver: resolver,
		registry: registry,
		now:      time.Now,
	}
}

// Register creates one pending payment with its resolved route
func (i *PaymentIntake) Register(ctx context.Context, req PaymentRequest) (*entities.Payment, *entities.ResolvedRoute, error) {
	if req.Amount == "" || req.Currency == "" {
		return nil, nil, fmt.Errorf("%w: amount and currency are required", domainerrors.ErrInvalidInput)
	}

	psp, err := i.psps.GetByID(ctx, req.PSPID)
	if err != nil {
		return nil, nil, fmt.Errorf("psp lookup: %w", err)
	}

	chain := req.Chain
	if chain == "" {
		chain = entities.ChainBest
	}
	currency := strings.ToUpper(req.Currency)

	id := uuid.New()
	route, err := i.resolver.Resolve(ctx, id.String(), req.Amount, currency, chain)
	if err != nil {
		return nil, nil, err
	}

	adapter, err := i.registry.Get(route.Chain)
	if err != nil {
		return nil, nil, err
	}
	block, err := adapter.BlockNumber(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("block height on %s: %w", route.Chain, err)
	}

	payment := &entities.Payment{
		ID:                 id,
		PSPID:              psp.ID,
		Amount:             req.Amount,
		Currency:           currency,
		Chain:              route.Chain,
		TokenAddress:       route.TokenAddress,
		ReceivingWallet:    route.ReceivingWallet,
		PSPWallet:          psp.PayoutWallet,
		Status:             entities.PaymentStatusPending,
		CreatedBlockNumber: null.Int64From(int64(block)),
		CreatedAt:          i.now(),
		UpdatedAt:          i.now(),
	}
	if err := i.payments.Create(ctx, payment); err != nil {
		return nil, nil, err
	}

	audit := &entities.PaymentRoute{
		ID:            uuid.New(),
		PaymentID:     id,
		Chain:         route.Chain,
		Token:         route.TokenAddress,
		EstimatedFee:  route.EstimatedFee,
		EstimatedTime: route.EstimatedTime,
		HealthScore:   route.HealthScore,
		RankingScore:  route.RankingScore,
		DecidedAt:     i.now(),
	}
	if err := i.routes.Create(ctx, audit); err != nil {
		// the payment stands either way; the route row is audit only
		logger.Warn(ctx, "route audit row failed",
			zap.String("payment_id", id.String()), zap.Error(err))
	}

	metrics.PaymentsByOutcome.WithLabelValues(string(entities.PaymentStatusPending)).Inc()
	logger.Info(ctx, "payment registered",
		zap.String("payment_id", id.String()),
		zap.String("chain", route.Chain),
		zap.String("wallet", route.ReceivingWallet),
		zap.Uint64("created_block", block))

	return payment, route, nil
}

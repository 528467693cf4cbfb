package usecases

import (
	"context"
	"fmt"

	"github.com/volatiletech/null/v8"
	"chain-route.backend/internal/domain/entities"
	"chain-route.backend/internal/infrastructure/blockchain"
	"chain-route.backend/pkg/logger"
	"go.uber.org/zap"
)

// WalletDeriver supplies the deterministic receiving wallet for a payment.
// The same derivation must be used again at sweep time.
type WalletDeriver interface {
	Wallet(paymentID, chain string) string
}

// RouteResolver turns a payment request (fixed chain or "best") into a
// concrete chain, token and dedicated receiving wallet
type RouteResolver struct {
	registry *blockchain.Registry
	scorer   *RouteScorer
	cache    *RouteCache
	wallets  WalletDeriver
}

// NewRouteResolver creates a resolver
func NewRouteResolver(registry *blockchain.Registry, scorer *RouteScorer, cache *RouteCache, wallets WalletDeriver) *RouteResolver {
	return &RouteResolver{registry: registry, scorer: scorer, cache: cache, wallets: wallets}
}

// Resolve picks the chain and token for a payment and derives its receiving
// wallet. Errors from adapters or the wallet collaborator propagate
// unchanged; retry belongs to the caller issuing the payment.
func (r *RouteResolver) Resolve(ctx context.Context, paymentID, amount, currency, chain string) (*entities.ResolvedRoute, error) {
	if chain == entities.ChainBest {
		return r.resolveBest(ctx, paymentID, amount, currency)
	}
	return r.resolvePinned(ctx, paymentID, amount, currency, chain)
}

func (r *RouteResolver) resolveBest(ctx context.Context, paymentID, amount, currency string) (*entities.ResolvedRoute, error) {
	candidates, err := r.scorer.Evaluate(ctx, amount, currency, nil)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no route candidates for %s %s", amount, currency)
	}
	best := candidates[0]

	logger.Info(ctx, "best route selected",
		zap.String("payment_id", paymentID),
		zap.String("chain", best.Chain),
		zap.String("fee", best.EstimatedFee),
		zap.Float64("ranking", best.RankingScore))

	return &entities.ResolvedRoute{
		Chain:           best.Chain,
		TokenAddress:    best.Token,
		ReceivingWallet: r.wallets.Wallet(paymentID, best.Chain),
		EstimatedFee:    best.EstimatedFee,
		EstimatedTime:   best.EstimatedTime,
		HealthScore:     null.Float64From(best.HealthScore),
		RankingScore:    null.Float64From(best.RankingScore),
	}, nil
}

// resolvePinned quotes the requested chain directly, skipping health and
// ranking; the cache is consulted but never written here
func (r *RouteResolver) resolvePinned(ctx context.Context, paymentID, amount, currency, chain string) (*entities.ResolvedRoute, error) {
	adapter, err := r.registry.Get(chain)
	if err != nil {
		return nil, err
	}
	token, err := adapter.TokenAddress(currency)
	if err != nil {
		return nil, err
	}

	resolved := &entities.ResolvedRoute{
		Chain:           chain,
		TokenAddress:    token,
		ReceivingWallet: r.wallets.Wallet(paymentID, chain),
	}

	cached, err := r.cache.Find(ctx, chain, currency, amount)
	if err != nil {
		logger.Warn(ctx, "route cache read failed", zap.String("chain", chain), zap.Error(err))
	}
	if len(cached) > 0 {
		quote := cached[0]
		resolved.TokenAddress = quote.Token
		resolved.EstimatedFee = quote.EstimatedFee
		resolved.EstimatedTime = quote.EstimatedTime
		resolved.HealthScore = null.Float64From(quote.HealthScore)
		resolved.RankingScore = null.Float64From(quote.RankingScore)
		return resolved, nil
	}

	fee, err := adapter.EstimateFee(ctx, token)
	if err != nil {
		return nil, err
	}
	avgTime, err := adapter.EstimateTime(ctx)
	if err != nil {
		return nil, err
	}
	resolved.EstimatedFee = fee
	resolved.EstimatedTime = avgTime
	return resolved, nil
}

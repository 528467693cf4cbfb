package usecases

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"chain-route.backend/internal/domain/entities"
	"chain-route.backend/internal/infrastructure/blockchain"
	"chain-route.backend/pkg/logger"
	"go.uber.org/zap"
)

// ranking weights; tunable constants, not derived
const (
	weightHealth = 2
	weightFee    = 100
	weightTime   = 5
)

// RouteScorer ranks candidate chains by a composite score, consulting the
// RouteCache before re-quoting
type RouteScorer struct {
	registry *blockchain.Registry
	cache    *RouteCache
}

// NewRouteScorer creates a scorer over the chain registry
func NewRouteScorer(registry *blockchain.Registry, cache *RouteCache) *RouteScorer {
	return &RouteScorer{registry: registry, cache: cache}
}

// Evaluate scores every supported chain (or the given subset) for the
// amount and currency, best first. Each freshly quoted chain is cached
// immediately, so one chain failing does not discard the quotes already
// obtained for the others. Ties keep input iteration order.
func (s *RouteScorer) Evaluate(ctx context.Context, amount, currency string, chains []string) ([]entities.RouteCandidate, error) {
	if len(chains) == 0 {
		chains = s.registry.Chains()
	}

	candidates := make([]entities.RouteCandidate, 0, len(chains))
	for _, chain := range chains {
		cached, err := s.cache.Find(ctx, chain, currency, amount)
		if err != nil {
			logger.Warn(ctx, "route cache read failed", zap.String("chain", chain), zap.Error(err))
		}
		if len(cached) > 0 {
			candidates = append(candidates, cached[0])
			continue
		}

		candidate, err := s.quoteChain(ctx, chain, currency)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)

		if err := s.cache.Save(ctx, chain, currency, amount, []entities.RouteCandidate{candidate}); err != nil {
			logger.Warn(ctx, "route cache write failed", zap.String("chain", chain), zap.Error(err))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RankingScore > candidates[j].RankingScore
	})
	return candidates, nil
}

// quoteChain fetches fee, time and health concurrently and computes the
// composite ranking
func (s *RouteScorer) quoteChain(ctx context.Context, chain, currency string) (entities.RouteCandidate, error) {
	adapter, err := s.registry.Get(chain)
	if err != nil {
		return entities.RouteCandidate{}, err
	}
	token, err := adapter.TokenAddress(currency)
	if err != nil {
		return entities.RouteCandidate{}, err
	}

	var (
		feeStr  string
		avgTime float64
		health  float64
		feeErr  error
		timeErr error
	)
	done := make(chan struct{}, 3)
	go func() { feeStr, feeErr = adapter.EstimateFee(ctx, token); done <- struct{}{} }()
	go func() { avgTime, timeErr = adapter.EstimateTime(ctx); done <- struct{}{} }()
	go func() { health = adapter.Health(ctx); done <- struct{}{} }()
	for i := 0; i < 3; i++ {
		<-done
	}
	if feeErr != nil {
		return entities.RouteCandidate{}, fmt.Errorf("quote fee on %s: %w", chain, feeErr)
	}
	if timeErr != nil {
		return entities.RouteCandidate{}, fmt.Errorf("quote block time on %s: %w", chain, timeErr)
	}

	fee, err := strconv.ParseFloat(feeStr, 64)
	if err != nil {
		return entities.RouteCandidate{}, fmt.Errorf("parse fee %q on %s: %w", feeStr, chain, err)
	}

	return entities.RouteCandidate{
		Chain:         chain,
		Token:         token,
		EstimatedFee:  feeStr,
		EstimatedTime: avgTime,
		HealthScore:   health,
		RankingScore:  health*weightHealth - fee*weightFee - avgTime*weightTime,
	}, nil
}

package usecases

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/internal/infrastructure/blockchain"
)

// quotingNode returns a fake node with everything EstimateFee, EstimateTime
// and Health touch: a 6-decimal token, a $2 price feed and a 10-block
// header window at the given average interval
func quotingNode(gasPriceWei int64, blockInterval uint64) *fakeChainNode {
	return &fakeChainNode{
		blockNumber:  200,
		decimals:     6,
		gasPrice:     big.NewInt(gasPriceWei),
		price:        big.NewInt(200_000_000),
		latestHeader: &types.Header{Number: big.NewInt(100), Time: 1000},
		headers: map[int64]*types.Header{
			90: {Number: big.NewInt(90), Time: 1000 - 10*blockInterval},
		},
	}
}

func newScorerFixture(t *testing.T) (*RouteScorer, *fakeChainNode, *fakeChainNode, *miniredis.Miniredis) {
	t.Helper()
	base := quotingNode(1_000_000_000, 2)     // 1 gwei, 2s blocks
	arbitrum := quotingNode(5_000_000_000, 3) // 5 gwei, 3s blocks
	registry := blockchain.NewRegistryWithAdapters(
		blockchain.NewChainAdapterWithClient(testChainCfg("base"), base),
		blockchain.NewChainAdapterWithClient(testChainCfg("arbitrum"), arbitrum),
	)
	cache, mr := newTestCache(t)
	return NewRouteScorer(registry, cache), base, arbitrum, mr
}

func TestRouteScorer_RanksByCompositeScore(t *testing.T) {
	ctx := context.Background()
	scorer, _, _, _ := newScorerFixture(t)

	candidates, err := scorer.Evaluate(ctx, "100.00", "USDC", []string{"arbitrum", "base"})
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// cheaper fee and faster blocks put base first
	require.Equal(t, "base", candidates[0].Chain)
	require.Equal(t, "arbitrum", candidates[1].Chain)

	require.Equal(t, testTokenAddr, candidates[0].Token)
	require.Equal(t, "0.00012", candidates[0].EstimatedFee)
	require.InDelta(t, 2.0, candidates[0].EstimatedTime, 0.001)
	require.InDelta(t, 100, candidates[0].HealthScore, 1)
	require.Greater(t, candidates[0].RankingScore, candidates[1].RankingScore)

	require.Equal(t, "0.0006", candidates[1].EstimatedFee)
	require.InDelta(t, 3.0, candidates[1].EstimatedTime, 0.001)
}

func TestRouteScorer_ServesRepeatQuotesFromCache(t *testing.T) {
	ctx := context.Background()
	scorer, base, arbitrum, mr := newScorerFixture(t)

	first, err := scorer.Evaluate(ctx, "100.00", "USDC", []string{"base", "arbitrum"})
	require.NoError(t, err)
	require.True(t, mr.Exists("route:BASE-USDC-100.00"))
	require.True(t, mr.Exists("route:ARBITRUM-USDC-100.00"))

	// with the RPC dead the cached quotes must still serve
	base.callErr = errors.New("rpc down")
	arbitrum.callErr = errors.New("rpc down")

	second, err := scorer.Evaluate(ctx, "100.00", "USDC", []string{"base", "arbitrum"})
	require.NoError(t, err)
	require.Equal(t, first[0].Chain, second[0].Chain)
	require.Equal(t, first[0].EstimatedFee, second[0].EstimatedFee)
	require.Equal(t, first[0].RankingScore, second[0].RankingScore)
}

func TestRouteScorer_NearbyAmountsShareQuotes(t *testing.T) {
	ctx := context.Background()
	scorer, base, _, _ := newScorerFixture(t)

	_, err := scorer.Evaluate(ctx, "100.00", "USDC", []string{"base"})
	require.NoError(t, err)

	base.callErr = errors.New("rpc down")

	// rounds to the same cache bucket
	_, err = scorer.Evaluate(ctx, "100.001", "USDC", []string{"base"})
	require.NoError(t, err)
}

func TestRouteScorer_UnknownCurrencyFails(t *testing.T) {
	ctx := context.Background()
	scorer, _, _, _ := newScorerFixture(t)

	_, err := scorer.Evaluate(ctx, "100.00", "DOGE", []string{"base"})
	require.ErrorIs(t, err, domainerrors.ErrUnsupportedCurrency)
}

func TestRouteScorer_UnknownChainFails(t *testing.T) {
	ctx := context.Background()
	scorer, _, _, _ := newScorerFixture(t)

	_, err := scorer.Evaluate(ctx, "100.00", "USDC", []string{"solana"})
	require.ErrorIs(t, err, domainerrors.ErrUnsupportedChain)
}

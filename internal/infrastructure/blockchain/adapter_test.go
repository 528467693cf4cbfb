package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"chain-route.backend/internal/config"
	domainerrors "chain-route.backend/internal/domain/errors"
)

func testChainConfig() config.ChainConfig {
	return config.ChainConfig{
		Name:              "base",
		ChainID:           84532,
		USDCAddress:       "0x1111111111111111111111111111111111111111",
		USDTAddress:       "0x2222222222222222222222222222222222222222",
		PriceFeedAddress:  "0x3333333333333333333333333333333333333333",
		ConfirmationDepth: 4,
	}
}

func TestChainAdapter_TokenAddress(t *testing.T) {
	adapter := NewChainAdapterWithClient(testChainConfig(), &fakeNode{})

	addr, err := adapter.TokenAddress("usdc")
	require.NoError(t, err)
	require.Equal(t, "0x1111111111111111111111111111111111111111", addr)

	addr, err = adapter.TokenAddress("USDT")
	require.NoError(t, err)
	require.Equal(t, "0x2222222222222222222222222222222222222222", addr)

	_, err = adapter.TokenAddress("DOGE")
	require.ErrorIs(t, err, domainerrors.ErrUnsupportedCurrency)
}

func TestChainAdapter_TokenDecimalsAndBalance(t *testing.T) {
	node := &fakeNode{decimals: 6, balance: big.NewInt(123456789)}
	adapter := NewChainAdapterWithClient(testChainConfig(), node)
	ctx := context.Background()

	decimals, err := adapter.TokenDecimals(ctx, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	require.EqualValues(t, 6, decimals)

	balance, err := adapter.TokenBalance(ctx, "0x1111111111111111111111111111111111111111", "0x4444444444444444444444444444444444444444")
	require.NoError(t, err)
	require.Equal(t, "123456789", balance.String())
}

func TestChainAdapter_EstimateFeeFallsBackOnGasError(t *testing.T) {
	node := &fakeNode{
		decimals: 6,
		gasErr:   errors.New("execution reverted"),
		gasPrice: big.NewInt(1_000_000_000), // 1 gwei
		price:    big.NewInt(200_000_000),   // $2.00 at 8 decimals
	}
	adapter := NewChainAdapterWithClient(testChainConfig(), node)

	// 60000 gas * 1 gwei = 6e13 wei; * 2e8 / 10^(18+8-6) = 120 base units
	fee, err := adapter.EstimateFee(context.Background(), "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	require.Equal(t, "0.00012", fee)
}

func TestChainAdapter_EstimateFeeGasPriceError(t *testing.T) {
	node := &fakeNode{
		decimals:    6,
		gasLimit:    42000,
		gasPriceErr: errors.New("rpc down"),
	}
	adapter := NewChainAdapterWithClient(testChainConfig(), node)

	_, err := adapter.EstimateFee(context.Background(), "0x1111111111111111111111111111111111111111")
	require.Error(t, err)
}

func TestChainAdapter_EstimateTime(t *testing.T) {
	node := &fakeNode{
		latestHeader: &types.Header{Number: big.NewInt(100), Time: 1000},
		headers: map[int64]*types.Header{
			90: {Number: big.NewInt(90), Time: 980},
		},
	}
	adapter := NewChainAdapterWithClient(testChainConfig(), node)

	avg, err := adapter.EstimateTime(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2.0, avg)
}

func TestChainAdapter_Health(t *testing.T) {
	adapter := NewChainAdapterWithClient(testChainConfig(), &fakeNode{blockNumber: 1})

	clock := time.Unix(0, 0)
	calls := 0
	adapter.now = func() time.Time {
		calls++
		if calls > 1 {
			return clock.Add(100 * time.Millisecond)
		}
		return clock
	}

	require.Equal(t, 90.0, adapter.Health(context.Background()))
}

func TestChainAdapter_HealthZeroOnError(t *testing.T) {
	adapter := NewChainAdapterWithClient(testChainConfig(), &fakeNode{blockNumErr: errors.New("down")})
	require.Equal(t, 0.0, adapter.Health(context.Background()))
}

func TestChainAdapter_FilterTransfers(t *testing.T) {
	token := "0x1111111111111111111111111111111111111111"
	recipient := "0x5555555555555555555555555555555555555555"
	node := &fakeNode{
		logs: []types.Log{
			makeTransferLog(token, "0x6666666666666666666666666666666666666666", recipient, big.NewInt(100_000_000), 120, "0xaaa1"),
			{BlockNumber: 121}, // not a Transfer, skipped
		},
	}
	adapter := NewChainAdapterWithClient(testChainConfig(), node)

	events, err := adapter.FilterTransfers(context.Background(), token, recipient, 100, 130)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "100000000", events[0].Value.String())
	require.EqualValues(t, 120, events[0].BlockNumber)

	require.Equal(t, big.NewInt(100), node.lastQuery.FromBlock)
	require.Equal(t, big.NewInt(130), node.lastQuery.ToBlock)
	require.Len(t, node.lastQuery.Topics, 3)
}

func TestRegistry_GetAndChains(t *testing.T) {
	base := NewChainAdapterWithClient(testChainConfig(), &fakeNode{})
	polygonCfg := testChainConfig()
	polygonCfg.Name = "polygon"
	polygon := NewChainAdapterWithClient(polygonCfg, &fakeNode{})

	registry := NewRegistryWithAdapters(base, polygon)

	got, err := registry.Get("base")
	require.NoError(t, err)
	require.Equal(t, "base", got.Name())

	_, err = registry.Get("solana")
	require.ErrorIs(t, err, domainerrors.ErrUnsupportedChain)

	require.Equal(t, []string{"base", "polygon"}, registry.Chains())
}

package blockchain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"chain-route.backend/internal/config"
	"chain-route.backend/internal/domain/entities"
	domainerrors "chain-route.backend/internal/domain/errors"
)

func TestDeriveWallet(t *testing.T) {
	a := DeriveWallet("payment-1", "base")
	require.True(t, strings.HasPrefix(a, "0x"))
	require.Len(t, a, 42)

	// resolution and sweep must land on the same address
	require.Equal(t, a, DeriveWallet("payment-1", "base"))

	require.NotEqual(t, a, DeriveWallet("payment-1", "polygon"))
	require.NotEqual(t, a, DeriveWallet("payment-2", "base"))
}

type fakeBundler struct {
	receipt     *BatchReceipt
	err         error
	gotChain    string
	gotWallet   string
	gotCalls    []BatchCall
	submissions int
}

func (f *fakeBundler) SubmitBatch(_ context.Context, chain, wallet string, calls []BatchCall) (*BatchReceipt, error) {
	f.submissions++
	f.gotChain = chain
	f.gotWallet = wallet
	f.gotCalls = calls
	return f.receipt, f.err
}

const (
	testToken    = "0x1111111111111111111111111111111111111111"
	testPSP      = "0x7777777777777777777777777777777777777777"
	testTreasury = "0x8888888888888888888888888888888888888888"
)

func sweepInput() SweepInput {
	return SweepInput{
		PaymentID: "payment-1",
		Chain:     "base",
		Token:     testToken,
		Decimals:  6,
		PSPWallet: testPSP,
		Split: &entities.FeeSplit{
			Total:         "100.00",
			Percent:       1,
			PSP:           "99",
			Treasury:      "1",
			PSPUnits:      "99000000",
			TreasuryUnits: "1000000",
		},
	}
}

func TestSmartWalletSettler_Sweep(t *testing.T) {
	bundler := &fakeBundler{
		receipt: &BatchReceipt{
			TxHash:  "0xsweep",
			Success: true,
			Logs: []types.Log{
				makeTransferLog(testToken, DeriveWallet("payment-1", "base"), testPSP, big.NewInt(99_000_000), 10, "0xsweep"),
				makeTransferLog(testToken, DeriveWallet("payment-1", "base"), testTreasury, big.NewInt(1_000_000), 10, "0xsweep"),
			},
		},
	}
	settler := NewSmartWalletSettler(bundler, config.TreasuryConfig{Wallet: testTreasury, FeePercent: 1})

	result, err := settler.Sweep(context.Background(), sweepInput())
	require.NoError(t, err)
	require.Equal(t, "0xsweep", result.TxHash)
	require.Equal(t, "99", result.PSPAmount)
	require.Equal(t, "1", result.TreasuryAmount)

	require.Equal(t, "base", bundler.gotChain)
	require.Equal(t, DeriveWallet("payment-1", "base"), bundler.gotWallet)
	require.Len(t, bundler.gotCalls, 2)
	require.Equal(t, testToken, bundler.gotCalls[0].To)
	require.Equal(t, EncodeTransfer(testPSP, big.NewInt(99_000_000)), bundler.gotCalls[0].Data)
	require.Equal(t, EncodeTransfer(testTreasury, big.NewInt(1_000_000)), bundler.gotCalls[1].Data)
}

func TestSmartWalletSettler_MissingLegFails(t *testing.T) {
	// op reported success but only the merchant transfer happened
	bundler := &fakeBundler{
		receipt: &BatchReceipt{
			TxHash:  "0xhalf",
			Success: true,
			Logs: []types.Log{
				makeTransferLog(testToken, DeriveWallet("payment-1", "base"), testPSP, big.NewInt(99_000_000), 10, "0xhalf"),
			},
		},
	}
	settler := NewSmartWalletSettler(bundler, config.TreasuryConfig{Wallet: testTreasury})

	_, err := settler.Sweep(context.Background(), sweepInput())
	require.ErrorIs(t, err, domainerrors.ErrSweepIncomplete)
}

func TestSmartWalletSettler_ZeroValueLegDoesNotCount(t *testing.T) {
	bundler := &fakeBundler{
		receipt: &BatchReceipt{
			TxHash:  "0xzero",
			Success: true,
			Logs: []types.Log{
				makeTransferLog(testToken, DeriveWallet("payment-1", "base"), testPSP, big.NewInt(99_000_000), 10, "0xzero"),
				makeTransferLog(testToken, DeriveWallet("payment-1", "base"), testTreasury, big.NewInt(0), 10, "0xzero"),
			},
		},
	}
	settler := NewSmartWalletSettler(bundler, config.TreasuryConfig{Wallet: testTreasury})

	_, err := settler.Sweep(context.Background(), sweepInput())
	require.ErrorIs(t, err, domainerrors.ErrSweepIncomplete)
}

func TestSmartWalletSettler_RevertedReceipt(t *testing.T) {
	bundler := &fakeBundler{receipt: &BatchReceipt{TxHash: "0xrevert", Success: false}}
	settler := NewSmartWalletSettler(bundler, config.TreasuryConfig{Wallet: testTreasury})

	_, err := settler.Sweep(context.Background(), sweepInput())
	require.ErrorIs(t, err, domainerrors.ErrSweepIncomplete)
}

func TestSmartWalletSettler_BundlerErrorPropagates(t *testing.T) {
	bundler := &fakeBundler{err: errors.New("bundler timeout")}
	settler := NewSmartWalletSettler(bundler, config.TreasuryConfig{Wallet: testTreasury})

	_, err := settler.Sweep(context.Background(), sweepInput())
	require.ErrorContains(t, err, "bundler timeout")
}

package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"chain-route.backend/internal/config"
	"chain-route.backend/internal/domain/entities"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/pkg/units"
)

// walletSalt namespaces the receiving-wallet derivation
const walletSalt = "chain-route/receiving-wallet/v1"

// DeriveWallet computes the deterministic per-payment receiving wallet for
// (payment id, chain). Route resolution and the sweep both call this; they
// must agree, since the quoted address is reconstructed at sweep time.
func DeriveWallet(paymentID, chain string) string {
	digest := crypto.Keccak256([]byte(walletSalt), []byte(paymentID), []byte(chain))
	return common.BytesToAddress(digest[12:]).Hex()
}

// BatchCall is one leg of a batched user operation
type BatchCall struct {
	To   string
	Data []byte
}

// BatchReceipt is the bundler's view of an executed batch
type BatchReceipt struct {
	TxHash  string
	Success bool
	Logs    []types.Log
}

// Bundler submits batched operations on behalf of a smart wallet and waits
// for their receipt. Implemented against the account-abstraction service;
// faked in tests.
type Bundler interface {
	SubmitBatch(ctx context.Context, chain, wallet string, calls []BatchCall) (*BatchReceipt, error)
}

// SweepInput carries everything one sweep needs
type SweepInput struct {
	PaymentID string
	Chain     string
	Token     string
	Decimals  uint8
	PSPWallet string
	Split     *entities.FeeSplit
}

// SmartWalletSettler executes the batched two-leg sweep from the
// deterministic receiving wallet
type SmartWalletSettler struct {
	bundler  Bundler
	treasury config.TreasuryConfig
}

// NewSmartWalletSettler creates a settler bound to the treasury signer
func NewSmartWalletSettler(bundler Bundler, treasury config.TreasuryConfig) *SmartWalletSettler {
	return &SmartWalletSettler{bundler: bundler, treasury: treasury}
}

// Wallet returns the deterministic receiving wallet for a payment
func (s *SmartWalletSettler) Wallet(paymentID, chain string) string {
	return DeriveWallet(paymentID, chain)
}

// Sweep submits one batched transaction carrying the merchant and treasury
// transfer legs, waits for its receipt, and verifies the decoded Transfer
// events name both recipients with nonzero value. A receipt that reports
// success but lacks either leg fails the settlement.
func (s *SmartWalletSettler) Sweep(ctx context.Context, in SweepInput) (*entities.SettlementResult, error) {
	pspUnits, ok := new(big.Int).SetString(in.Split.PSPUnits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid psp units %q", in.Split.PSPUnits)
	}
	treasuryUnits, ok := new(big.Int).SetString(in.Split.TreasuryUnits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid treasury units %q", in.Split.TreasuryUnits)
	}

	wallet := DeriveWallet(in.PaymentID, in.Chain)
	calls := []BatchCall{
		{To: in.Token, Data: EncodeTransfer(in.PSPWallet, pspUnits)},
		{To: in.Token, Data: EncodeTransfer(s.treasury.Wallet, treasuryUnits)},
	}

	receipt, err := s.bundler.SubmitBatch(ctx, in.Chain, wallet, calls)
	if err != nil {
		return nil, fmt.Errorf("submit sweep for %s: %w", in.PaymentID, err)
	}
	if !receipt.Success {
		return nil, fmt.Errorf("sweep reverted for %s (tx %s): %w", in.PaymentID, receipt.TxHash, domainerrors.ErrSweepIncomplete)
	}

	pspSeen, treasurySeen := false, false
	for _, log := range receipt.Logs {
		ev, ok := DecodeTransferLog(log)
		if !ok || ev.Value.Sign() == 0 {
			continue
		}
		if strings.EqualFold(ev.To, in.PSPWallet) {
			pspSeen = true
		}
		if strings.EqualFold(ev.To, s.treasury.Wallet) {
			treasurySeen = true
		}
	}
	if !pspSeen || !treasurySeen {
		return nil, fmt.Errorf("sweep for %s missing transfer leg (psp=%t treasury=%t): %w",
			in.PaymentID, pspSeen, treasurySeen, domainerrors.ErrSweepIncomplete)
	}

	return &entities.SettlementResult{
		TxHash:         receipt.TxHash,
		PSPAmount:      units.Format(pspUnits, in.Decimals),
		TreasuryAmount: units.Format(treasuryUnits, in.Decimals),
	}, nil
}

package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"chain-route.backend/internal/config"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/pkg/units"
)

const (
	// fallbackTransferGas is used when gas estimation fails upstream
	fallbackTransferGas = 60000

	// maxHealthLatency caps the latency window scored by Health
	maxHealthLatency = time.Second

	avgBlockSpan = 10
)

// dummy sender/recipient for fee estimation calls
var (
	feeProbeFrom = common.HexToAddress("0x0000000000000000000000000000000000000001")
	feeProbeTo   = "0x0000000000000000000000000000000000000002"
)

// ChainAdapter is the per-network capability: fee and time quotes, RPC
// health, balance and log access. One instance per supported network,
// stateless besides the long-lived node connection.
type ChainAdapter struct {
	cfg    config.ChainConfig
	client NodeClient

	now func() time.Time
}

// NewChainAdapter dials the chain's RPC endpoint
func NewChainAdapter(cfg config.ChainConfig) (*ChainAdapter, error) {
	client, err := dialNode(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", cfg.Name, err)
	}
	return &ChainAdapter{cfg: cfg, client: client, now: time.Now}, nil
}

// NewChainAdapterWithClient builds an adapter on an injected node client.
// Intended for tests where RPC sockets are unavailable.
func NewChainAdapterWithClient(cfg config.ChainConfig, client NodeClient) *ChainAdapter {
	return &ChainAdapter{cfg: cfg, client: client, now: time.Now}
}

// Name returns the chain name
func (a *ChainAdapter) Name() string {
	return a.cfg.Name
}

// Config returns the chain configuration
func (a *ChainAdapter) Config() config.ChainConfig {
	return a.cfg
}

// TokenAddress resolves a currency symbol to the chain's token contract
func (a *ChainAdapter) TokenAddress(currency string) (string, error) {
	switch strings.ToUpper(currency) {
	case "USDC":
		return a.cfg.USDCAddress, nil
	case "USDT":
		return a.cfg.USDTAddress, nil
	}
	return "", fmt.Errorf("%w: %s", domainerrors.ErrUnsupportedCurrency, currency)
}

// BlockNumber returns the current chain head
func (a *ChainAdapter) BlockNumber(ctx context.Context) (uint64, error) {
	return a.client.BlockNumber(ctx)
}

// TokenDecimals reads a token's decimal precision
func (a *ChainAdapter) TokenDecimals(ctx context.Context, token string) (uint8, error) {
	return TokenDecimals(ctx, a.client, token)
}

// TokenBalance reads a wallet's token balance in base units
func (a *ChainAdapter) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	return TokenBalance(ctx, a.client, token, owner)
}

// EstimateFee quotes the cost of one token transfer, denominated in the
// token's own units via the chain's native/USD price feed. Gas estimation
// failures fall back to a fixed transfer gas limit rather than erroring.
func (a *ChainAdapter) EstimateFee(ctx context.Context, token string) (string, error) {
	decimals, err := a.TokenDecimals(ctx, token)
	if err != nil {
		return "", err
	}

	tokenAddr := common.HexToAddress(token)
	probe := ethereum.CallMsg{
		From: feeProbeFrom,
		To:   &tokenAddr,
		Data: EncodeTransfer(feeProbeTo, big.NewInt(1)),
	}

	gasLimit, err := a.client.EstimateGas(ctx, probe)
	if err != nil {
		gasLimit = fallbackTransferGas
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price on %s: %w", a.cfg.Name, err)
	}

	usdPrice, err := a.latestPrice(ctx)
	if err != nil {
		return "", err
	}

	// fee(wei, 18 dec) * price(8 dec) scaled down to the token's precision
	feeWei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18+8-int(decimals))), nil)
	feeUnits := new(big.Int).Div(new(big.Int).Mul(feeWei, usdPrice), divisor)

	return units.Format(feeUnits, decimals), nil
}

// EstimateTime returns the average block interval in seconds over the last
// ten blocks
func (a *ChainAdapter) EstimateTime(ctx context.Context) (float64, error) {
	latest, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	prevNumber := new(big.Int).Sub(latest.Number, big.NewInt(avgBlockSpan))
	prev, err := a.client.HeaderByNumber(ctx, prevNumber)
	if err != nil {
		return 0, err
	}
	return float64(latest.Time-prev.Time) / avgBlockSpan, nil
}

// Health scores RPC responsiveness 0..100 from a single capped latency probe
func (a *ChainAdapter) Health(ctx context.Context) float64 {
	start := a.now()
	if _, err := a.client.BlockNumber(ctx); err != nil {
		return 0
	}
	latency := a.now().Sub(start)
	if latency > maxHealthLatency {
		latency = maxHealthLatency
	}
	return float64(int((1-latency.Seconds()/maxHealthLatency.Seconds())*100 + 0.5))
}

// FilterTransfers returns decoded ERC20 Transfer events into recipient for
// the block range [fromBlock, toBlock]
func (a *ChainAdapter) FilterTransfers(ctx context.Context, token, recipient string, fromBlock, toBlock uint64) ([]TransferEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(token)},
		Topics: [][]common.Hash{
			{transferTopic},
			nil,
			{common.BytesToHash(common.HexToAddress(recipient).Bytes())},
		},
	}
	logs, err := a.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	events := make([]TransferEvent, 0, len(logs))
	for _, log := range logs {
		if ev, ok := DecodeTransferLog(log); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (a *ChainAdapter) latestPrice(ctx context.Context) (*big.Int, error) {
	feed := common.HexToAddress(a.cfg.PriceFeedAddress)
	result, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: append([]byte{}, selectorLatestRoundData...)}, nil)
	if err != nil {
		return nil, fmt.Errorf("price feed on %s: %w", a.cfg.Name, err)
	}
	if len(result) < 64 {
		return nil, fmt.Errorf("price feed on %s: short answer", a.cfg.Name)
	}
	// answer is the second return slot of latestRoundData
	return new(big.Int).SetBytes(result[32:64]), nil
}

package usecases

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"chain-route.backend/internal/config"
	"chain-route.backend/internal/domain/entities"
	"chain-route.backend/internal/infrastructure/blockchain"
	"chain-route.backend/internal/infrastructure/repositories"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, repositories.Migrate(db))
	return db
}

// fakeChainNode answers the handful of RPC calls the usecases exercise
type fakeChainNode struct {
	blockNumber  uint64
	blockNumErr  error
	latestHeader *types.Header
	headers      map[int64]*types.Header
	logs         []types.Log
	logsErr      error
	filterCalls  int
	queries      []ethereum.FilterQuery
	gasPrice     *big.Int
	gasErr       error
	decimals     uint8
	balance      *big.Int
	price        *big.Int
	callErr      error
}

func (f *fakeChainNode) BlockNumber(_ context.Context) (uint64, error) {
	return f.blockNumber, f.blockNumErr
}

func (f *fakeChainNode) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	if number == nil {
		return f.latestHeader, nil
	}
	return f.headers[number.Int64()], nil
}

func (f *fakeChainNode) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.filterCalls++
	f.queries = append(f.queries, q)
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	var hits []types.Log
	for _, lg := range f.logs {
		if lg.BlockNumber >= q.FromBlock.Uint64() && lg.BlockNumber <= q.ToBlock.Uint64() {
			hits = append(hits, lg)
		}
	}
	return hits, nil
}

func (f *fakeChainNode) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	if len(msg.Data) < 4 {
		return nil, nil
	}
	switch hex.EncodeToString(msg.Data[:4]) {
	case "313ce567": // decimals()
		return common.LeftPadBytes(big.NewInt(int64(f.decimals)).Bytes(), 32), nil
	case "70a08231": // balanceOf(address)
		return common.LeftPadBytes(f.balance.Bytes(), 32), nil
	case "feaf968c": // latestRoundData()
		out := make([]byte, 0, 160)
		out = append(out, common.LeftPadBytes(big.NewInt(1).Bytes(), 32)...)
		out = append(out, common.LeftPadBytes(f.price.Bytes(), 32)...)
		out = append(out, make([]byte, 96)...)
		return out, nil
	}
	return nil, nil
}

func (f *fakeChainNode) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeChainNode) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	if f.gasErr != nil {
		return 0, f.gasErr
	}
	return 60000, nil
}

const (
	testTokenAddr   = "0x1111111111111111111111111111111111111111"
	testPSPWallet   = "0x7777777777777777777777777777777777777777"
	testTreasuryAdr = "0x8888888888888888888888888888888888888888"
	testPayerAddr   = "0x4444444444444444444444444444444444444444"
)

func testChainCfg(name string) config.ChainConfig {
	return config.ChainConfig{
		Name:              name,
		RPCURL:            "http://localhost:0",
		USDCAddress:       testTokenAddr,
		USDTAddress:       "0x2222222222222222222222222222222222222222",
		PriceFeedAddress:  "0x3333333333333333333333333333333333333333",
		ConfirmationDepth: 4,
	}
}

func testSettlementCfg() config.SettlementConfig {
	return config.SettlementConfig{
		MaxAttempts:     3,
		RetryDelay:      time.Millisecond,
		PollInterval:    time.Millisecond,
		MaxLogRange:     9500,
		ConfirmPoll:     time.Millisecond,
		ConfirmTimeout:  time.Second,
		StaleAfter:      15 * time.Minute,
		StaleCheckEvery: 12,
	}
}

// fakeSettler implements SweepExecutor without a bundler
type fakeSettler struct {
	result *entities.SettlementResult
	errs   []error
	calls  int
}

func (f *fakeSettler) Wallet(paymentID, chain string) string {
	return blockchain.DeriveWallet(paymentID, chain)
}

func (f *fakeSettler) Sweep(_ context.Context, in blockchain.SweepInput) (*entities.SettlementResult, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.result != nil {
		return f.result, nil
	}
	return &entities.SettlementResult{
		TxHash:         "0xsweep",
		PSPAmount:      in.Split.PSP,
		TreasuryAmount: in.Split.Treasury,
	}, nil
}

func seedPSP(t *testing.T, db *gorm.DB, webhookURL string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	var url interface{}
	if webhookURL != "" {
		url = webhookURL
	}
	require.NoError(t, db.Exec(
		"INSERT INTO psps (id, name, payout_wallet, webhook_url, status, created_at, updated_at) VALUES (?, ?, ?, ?, 'active', ?, ?)",
		id, "acme pay", testPSPWallet, url, time.Now(), time.Now(),
	).Error)
	return id
}

func seedPaymentRow(t *testing.T, repo *repositories.PaymentRepository, pspID uuid.UUID, status entities.PaymentStatus, amount string) *entities.Payment {
	t.Helper()
	p := &entities.Payment{
		ID:                 uuid.New(),
		PSPID:              pspID,
		Amount:             amount,
		Currency:           "USDC",
		Chain:              "base",
		TokenAddress:       testTokenAddr,
		ReceivingWallet:    blockchain.DeriveWallet(uuid.NewString(), "base"),
		PSPWallet:          testPSPWallet,
		Status:             status,
		CreatedBlockNumber: null.Int64From(100),
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

// keccak256("Transfer(address,address,uint256)")
var erc20TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

func transferLog(recipient string, value *big.Int, block uint64, txHash string) types.Log {
	return types.Log{
		Address: common.HexToAddress(testTokenAddr),
		Topics: []common.Hash{
			erc20TransferTopic,
			common.BytesToHash(common.HexToAddress(testPayerAddr).Bytes()),
			common.BytesToHash(common.HexToAddress(recipient).Bytes()),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		BlockNumber: block,
		TxHash:      common.HexToHash(txHash),
	}
}

// noSleep keeps retries instant in tests
func noSleep(time.Duration) {}

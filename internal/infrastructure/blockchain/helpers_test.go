package blockchain

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeNode is an in-memory NodeClient for adapter tests
type fakeNode struct {
	blockNumber  uint64
	blockNumErr  error
	latestHeader *types.Header
	headers      map[int64]*types.Header
	logs         []types.Log
	logsErr      error
	lastQuery    ethereum.FilterQuery
	gasPrice     *big.Int
	gasPriceErr  error
	gasLimit     uint64
	gasErr       error
	decimals     uint8
	balance      *big.Int
	price        *big.Int
	callErr      error
}

func (f *fakeNode) BlockNumber(_ context.Context) (uint64, error) {
	return f.blockNumber, f.blockNumErr
}

func (f *fakeNode) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	if number == nil {
		return f.latestHeader, nil
	}
	return f.headers[number.Int64()], nil
}

func (f *fakeNode) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.lastQuery = q
	return f.logs, f.logsErr
}

func (f *fakeNode) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	switch {
	case bytes.HasPrefix(msg.Data, selectorDecimals):
		return common.LeftPadBytes(big.NewInt(int64(f.decimals)).Bytes(), 32), nil
	case bytes.HasPrefix(msg.Data, selectorBalanceOf):
		return common.LeftPadBytes(f.balance.Bytes(), 32), nil
	case bytes.HasPrefix(msg.Data, selectorLatestRoundData):
		out := make([]byte, 0, 160)
		out = append(out, common.LeftPadBytes(big.NewInt(1).Bytes(), 32)...) // roundId
		out = append(out, common.LeftPadBytes(f.price.Bytes(), 32)...)       // answer
		out = append(out, make([]byte, 96)...)
		return out, nil
	}
	return nil, nil
}

func (f *fakeNode) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return f.gasPrice, f.gasPriceErr
}

func (f *fakeNode) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	return f.gasLimit, f.gasErr
}

// makeTransferLog builds an ERC20 Transfer log into `to`
func makeTransferLog(token, from, to string, value *big.Int, block uint64, txHash string) types.Log {
	return types.Log{
		Address: common.HexToAddress(token),
		Topics: []common.Hash{
			transferTopic,
			common.BytesToHash(common.HexToAddress(from).Bytes()),
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		BlockNumber: block,
		TxHash:      common.HexToHash(txHash),
	}
}

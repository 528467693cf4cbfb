package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// NodeClient is the subset of the EVM JSON-RPC surface the settlement
// engine uses. *ethclient.Client satisfies it; tests inject fakes.
type NodeClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

var dialNode = func(rpcURL string) (NodeClient, error) {
	return ethclient.Dial(rpcURL)
}

// erc20 selectors
var (
	selectorBalanceOf = common.Hex2Bytes("70a08231") // balanceOf(address)
	selectorDecimals  = common.Hex2Bytes("313ce567") // decimals()
	selectorTransfer  = common.Hex2Bytes("a9059cbb") // transfer(address,uint256)

	// latestRoundData() on a Chainlink aggregator
	selectorLatestRoundData = common.Hex2Bytes("feaf968c")

	// keccak256("Transfer(address,address,uint256)")
	transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
)

// TokenBalance reads the ERC20 balance of owner via a view call
func TokenBalance(ctx context.Context, client NodeClient, tokenAddress, owner string) (*big.Int, error) {
	token := common.HexToAddress(tokenAddress)
	data := append(append([]byte{}, selectorBalanceOf...), common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(result), nil
}

// TokenDecimals reads the ERC20 decimal precision via a view call
func TokenDecimals(ctx context.Context, client NodeClient, tokenAddress string) (uint8, error) {
	token := common.HexToAddress(tokenAddress)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: append([]byte{}, selectorDecimals...)}, nil)
	if err != nil {
		return 0, err
	}
	return uint8(new(big.Int).SetBytes(result).Uint64()), nil
}

// EncodeTransfer builds ERC20 transfer(to, amount) calldata
func EncodeTransfer(to string, amount *big.Int) []byte {
	data := append([]byte{}, selectorTransfer...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// TransferEvent is one decoded ERC20 Transfer log
type TransferEvent struct {
	TxHash      string
	From        string
	To          string
	Value       *big.Int
	BlockNumber uint64
}

// DecodeTransferLog decodes one log as an ERC20 Transfer, or returns false
// when the log has a different shape
func DecodeTransferLog(log types.Log) (TransferEvent, bool) {
	if len(log.Topics) != 3 || log.Topics[0] != transferTopic {
		return TransferEvent{}, false
	}
	return TransferEvent{
		TxHash:      log.TxHash.Hex(),
		From:        common.BytesToAddress(log.Topics[1].Bytes()).Hex(),
		To:          common.BytesToAddress(log.Topics[2].Bytes()).Hex(),
		Value:       new(big.Int).SetBytes(log.Data),
		BlockNumber: log.BlockNumber,
	}, true
}

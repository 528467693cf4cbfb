package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"chain-route.backend/internal/config"
)

// HTTPBundler submits batched operations to the account-abstraction
// service over HTTP, one endpoint per chain.
type HTTPBundler struct {
	endpoints map[string]string
	client    *http.Client
}

// NewHTTPBundler builds a bundler client for the configured chains
func NewHTTPBundler(chains []config.ChainConfig) *HTTPBundler {
	endpoints := make(map[string]string, len(chains))
	for _, cc := range chains {
		endpoints[cc.Name] = cc.BundlerURL
	}
	return &HTTPBundler{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 90 * time.Second},
	}
}

type bundlerCall struct {
	To    string        `json:"to"`
	Data  hexutil.Bytes `json:"data"`
	Value string        `json:"value"`
}

type bundlerRequest struct {
	Wallet string        `json:"wallet"`
	Calls  []bundlerCall `json:"calls"`
}

type bundlerResponse struct {
	TxHash  string      `json:"txHash"`
	Success bool        `json:"success"`
	Logs    []types.Log `json:"logs"`
}

// SubmitBatch posts the batch and blocks until the service reports the
// executed receipt
func (b *HTTPBundler) SubmitBatch(ctx context.Context, chain, wallet string, calls []BatchCall) (*BatchReceipt, error) {
	endpoint, ok := b.endpoints[chain]
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("no bundler endpoint configured for chain %s", chain)
	}

	reqBody := bundlerRequest{Wallet: wallet}
	for _, call := range calls {
		reqBody.Calls = append(reqBody.Calls, bundlerCall{To: call.To, Data: call.Data, Value: "0"})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bundler request on %s: %w", chain, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bundler on %s returned %d: %s", chain, resp.StatusCode, body)
	}

	var out bundlerResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode bundler response on %s: %w", chain, err)
	}
	return &BatchReceipt{TxHash: out.TxHash, Success: out.Success, Logs: out.Logs}, nil
}

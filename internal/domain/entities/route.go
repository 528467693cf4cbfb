package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// ChainBest is the sentinel chain value asking the scorer to pick a network
const ChainBest = "best"

// RouteCandidate is a scored quote for settling via a specific chain
type RouteCandidate struct {
	Chain         string  `json:"chain"`
	Token         string  `json:"token"`
	EstimatedFee  string  `json:"estimatedFee"`
	EstimatedTime float64 `json:"estimatedTime"`
	HealthScore   float64 `json:"healthScore"`
	RankingScore  float64 `json:"rankingScore"`
}

// CachedRouteEntry is the cache value stored per (chain, currency, amount)
type CachedRouteEntry struct {
	Candidates []RouteCandidate `json:"candidates"`
	CachedAt   int64            `json:"cachedAt"` // unix millis
}

// ResolvedRoute is the outcome of route resolution for one payment.
// Health and ranking are absent when the chain was pinned and quoted
// directly instead of scored.
type ResolvedRoute struct {
	Chain           string       `json:"chain"`
	TokenAddress    string       `json:"tokenAddress"`
	ReceivingWallet string       `json:"receivingWallet"`
	EstimatedFee    string       `json:"estimatedFee"`
	EstimatedTime   float64      `json:"estimatedTime"`
	HealthScore     null.Float64 `json:"healthScore,omitempty"`
	RankingScore    null.Float64 `json:"rankingScore,omitempty"`
}

// PaymentRoute is the persisted audit row for the route chosen per payment
type PaymentRoute struct {
	ID            uuid.UUID    `json:"id"`
	PaymentID     uuid.UUID    `json:"paymentId"`
	Chain         string       `json:"chain"`
	Token         string       `json:"token"`
	EstimatedFee  string       `json:"estimatedFee"`
	EstimatedTime float64      `json:"estimatedTime"`
	HealthScore   null.Float64 `json:"healthScore,omitempty"`
	RankingScore  null.Float64 `json:"rankingScore,omitempty"`
	TxHash        null.String  `json:"txHash,omitempty"`
	WasUsed       bool         `json:"wasUsed"`
	DecidedAt     time.Time    `json:"decidedAt"`
}

// FeeSplit is the deterministic division of a gross amount into legs
type FeeSplit struct {
	Total         string `json:"total"`
	Percent       int64  `json:"percent"`
	PSP           string `json:"psp"`
	Treasury      string `json:"treasury"`
	PSPUnits      string `json:"pspUnits"`
	TreasuryUnits string `json:"treasuryUnits"`
}

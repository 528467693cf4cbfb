package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// RoutedTarget identifies the leg a ledger row accounts for
type RoutedTarget string

const (
	RoutedTargetIncoming RoutedTarget = "incoming"
	RoutedTargetPSP      RoutedTarget = "psp"
	RoutedTargetTreasury RoutedTarget = "treasury"
	RoutedTargetFailed   RoutedTarget = "failed"
)

// FailureCause tags a ledger failure so the ledger stays queryable
// without parsing free text
type FailureCause string

const (
	FailureCauseProviderTimeout     FailureCause = "provider_timeout"
	FailureCauseComplianceBlocked   FailureCause = "compliance_blocked"
	FailureCauseExecutionReverted   FailureCause = "execution_reverted"
	FailureCauseConfirmationTimeout FailureCause = "confirmation_timeout"
	FailureCauseOther               FailureCause = "other"
)

// RoutedTransaction is one append-only ledger row recording a settlement
// attempt outcome. Rows are never mutated. At most one successful row with
// target psp may exist per payment; that row is the idempotency fence
// against duplicate sweeps.
type RoutedTransaction struct {
	ID        uuid.UUID    `json:"id"`
	PaymentID uuid.UUID    `json:"paymentId"`
	TxHash    null.String  `json:"txHash,omitempty"`
	Chain     string       `json:"chain"`
	Token     string       `json:"token"`
	Amount    string       `json:"amount"`
	Target    RoutedTarget `json:"target"`
	Attempt   int          `json:"attempt"`
	Success   bool         `json:"success"`
	Cause     null.String  `json:"cause,omitempty"`
	Error     null.String  `json:"error,omitempty"`
	Meta      null.String  `json:"meta,omitempty"`
	RoutedAt  time.Time    `json:"routedAt"`
}

// MismatchStatus classifies a mismatched transfer
type MismatchStatus string

const (
	MismatchStatusUnderpaid MismatchStatus = "underpaid"
	MismatchStatusOverpaid  MismatchStatus = "overpaid"
	MismatchStatusSorted    MismatchStatus = "sorted"
)

// MismatchedPayment records one underpaid or overpaid transfer, unique on
// transaction hash
type MismatchedPayment struct {
	ID             uuid.UUID      `json:"id"`
	PaymentID      uuid.UUID      `json:"paymentId"`
	TxHash         string         `json:"txHash"`
	Sender         string         `json:"sender"`
	ExpectedAmount string         `json:"expectedAmount"`
	ReceivedAmount string         `json:"receivedAmount"`
	Status         MismatchStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// SettlementResult is the successful outcome of one sweep
type SettlementResult struct {
	TxHash         string `json:"txHash"`
	PSPAmount      string `json:"pspAmount"`
	TreasuryAmount string `json:"treasuryAmount"`
}

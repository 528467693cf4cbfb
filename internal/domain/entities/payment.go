package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusConfirmed     PaymentStatus = "confirmed"
	PaymentStatusSettling      PaymentStatus = "settling"
	PaymentStatusSettled       PaymentStatus = "settled"
	PaymentStatusSettledFailed PaymentStatus = "settled_failed"
	PaymentStatusFailed        PaymentStatus = "failed"
	PaymentStatusMismatched    PaymentStatus = "mismatched"
)

// IsTerminal reports whether no further automatic transition exists
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSettled, PaymentStatusSettledFailed, PaymentStatusFailed, PaymentStatusMismatched:
		return true
	}
	return false
}

// validTransitions encodes the payment state graph. Transitions are
// monotonic: a payment never re-enters pending and never moves backward.
var validTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusConfirmed, PaymentStatusFailed, PaymentStatusMismatched},
	PaymentStatusConfirmed: {PaymentStatusSettling, PaymentStatusMismatched},
	PaymentStatusSettling:  {PaymentStatusSettled, PaymentStatusSettledFailed},
}

// CanTransition reports whether from -> to is a legal status move
func CanTransition(from, to PaymentStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment represents a payment intent and its settlement lifecycle
type Payment struct {
	ID                 uuid.UUID     `json:"id"`
	PSPID              uuid.UUID     `json:"pspId"`
	Amount             string        `json:"amount"`
	Currency           string        `json:"currency"`
	Chain              string        `json:"chain"`
	TokenAddress       string        `json:"tokenAddress"`
	ReceivingWallet    string        `json:"receivingWallet"`
	PSPWallet          string        `json:"pspWallet"`
	Status             PaymentStatus `json:"status"`
	CreatedBlockNumber null.Int64    `json:"createdBlockNumber,omitempty"`
	CustomerAddress    null.String   `json:"customerAddress,omitempty"`
	ConfirmedAt        *time.Time    `json:"confirmedAt,omitempty"`
	SettledAt          *time.Time    `json:"settledAt,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// PaymentContext is the minimal view handed to the compliance classifier
type PaymentContext struct {
	Chain           string `json:"chain"`
	Amount          string `json:"amount"`
	ReceivingWallet string `json:"receivingWallet"`
}

// RiskLevel is the compliance verdict bucket
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// RiskVerdict is the result of the compliance classifier
type RiskVerdict struct {
	Level RiskLevel `json:"riskLevel"`
	Score int       `json:"score"`
	Flags []string  `json:"flags"`
}

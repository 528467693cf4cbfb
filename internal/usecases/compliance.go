package usecases

import (
	"context"
	"strconv"
	"strings"

	"chain-route.backend/internal/domain/entities"
)

// ComplianceClassifier scores a payment context for risk. Consumed as a
// black box by the listener; the rule engine here stands in for the real
// provider integration.
type ComplianceClassifier interface {
	Classify(ctx context.Context, payment entities.PaymentContext) (entities.RiskVerdict, error)
}

const (
	riskScoreHighValue  = 30
	riskScoreMixerChain = 10
	riskScoreSanctioned = 50

	riskThresholdMedium = 30
	riskThresholdHigh   = 70

	highValueCutoff = 9.0
)

// RuleClassifier is a static rule-based risk scorer
type RuleClassifier struct {
	sanctioned map[string]struct{}
}

// NewRuleClassifier creates a classifier with a sanctioned-address list
func NewRuleClassifier(sanctionedWallets []string) *RuleClassifier {
	set := make(map[string]struct{}, len(sanctionedWallets))
	for _, w := range sanctionedWallets {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &RuleClassifier{sanctioned: set}
}

// Classify scores the payment and buckets it into a risk level
func (c *RuleClassifier) Classify(_ context.Context, payment entities.PaymentContext) (entities.RiskVerdict, error) {
	var flags []string
	score := 0

	if amt, err := strconv.ParseFloat(payment.Amount, 64); err == nil && amt > highValueCutoff {
		score += riskScoreHighValue
		flags = append(flags, "High value transaction")
	}

	if payment.Chain == "arbitrum" {
		score += riskScoreMixerChain
		flags = append(flags, "Chain with known mixer risk")
	}

	if _, listed := c.sanctioned[strings.ToLower(payment.ReceivingWallet)]; listed {
		score += riskScoreSanctioned
		flags = append(flags, "address in ofac list")
	}

	level := entities.RiskLevelLow
	switch {
	case score >= riskThresholdHigh:
		level = entities.RiskLevelHigh
	case score >= riskThresholdMedium:
		level = entities.RiskLevelMedium
	}

	return entities.RiskVerdict{Level: level, Score: score, Flags: flags}, nil
}

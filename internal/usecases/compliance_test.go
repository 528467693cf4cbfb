package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"chain-route.backend/internal/domain/entities"
)

func TestRuleClassifier_Low(t *testing.T) {
	c := NewRuleClassifier(nil)

	verdict, err := c.Classify(context.Background(), entities.PaymentContext{
		Chain: "base", Amount: "5.00", ReceivingWallet: "0xabc",
	})
	require.NoError(t, err)
	require.Equal(t, entities.RiskLevelLow, verdict.Level)
	require.Zero(t, verdict.Score)
	require.Empty(t, verdict.Flags)
}

func TestRuleClassifier_HighValueIsMedium(t *testing.T) {
	c := NewRuleClassifier(nil)

	verdict, err := c.Classify(context.Background(), entities.PaymentContext{
		Chain: "base", Amount: "10.00", ReceivingWallet: "0xabc",
	})
	require.NoError(t, err)
	require.Equal(t, entities.RiskLevelMedium, verdict.Level)
	require.Equal(t, 30, verdict.Score)
	require.Contains(t, verdict.Flags, "High value transaction")
}

func TestRuleClassifier_ChainRiskAdds(t *testing.T) {
	c := NewRuleClassifier(nil)

	verdict, err := c.Classify(context.Background(), entities.PaymentContext{
		Chain: "arbitrum", Amount: "10.00", ReceivingWallet: "0xabc",
	})
	require.NoError(t, err)
	require.Equal(t, entities.RiskLevelMedium, verdict.Level)
	require.Equal(t, 40, verdict.Score)
	require.Contains(t, verdict.Flags, "Chain with known mixer risk")
}

func TestRuleClassifier_SanctionedWalletIsHigh(t *testing.T) {
	c := NewRuleClassifier([]string{"0xBAD0000000000000000000000000000000000bad"})

	// list matching is case-insensitive
	verdict, err := c.Classify(context.Background(), entities.PaymentContext{
		Chain: "base", Amount: "10.00", ReceivingWallet: "0xbad0000000000000000000000000000000000BAD",
	})
	require.NoError(t, err)
	require.Equal(t, entities.RiskLevelHigh, verdict.Level)
	require.Equal(t, 80, verdict.Score)
	require.Contains(t, verdict.Flags, "address in ofac list")
}

func TestRuleClassifier_SanctionedAloneIsMedium(t *testing.T) {
	c := NewRuleClassifier([]string{"0xbad"})

	verdict, err := c.Classify(context.Background(), entities.PaymentContext{
		Chain: "base", Amount: "1.00", ReceivingWallet: "0xbad",
	})
	require.NoError(t, err)
	require.Equal(t, entities.RiskLevelMedium, verdict.Level)
	require.Equal(t, 50, verdict.Score)
}

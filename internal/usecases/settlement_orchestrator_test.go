package usecases

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"chain-route.backend/internal/domain/entities"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/internal/infrastructure/blockchain"
	"chain-route.backend/internal/infrastructure/repositories"
)

type orchestratorFixture struct {
	db         *gorm.DB
	payments   *repositories.PaymentRepository
	ledger     *repositories.RoutedTransactionRepository
	deliveries *repositories.WebhookDeliveryRepository
	settler    *fakeSettler
	orch       *SettlementOrchestrator
	pspID      uuid.UUID
}

func newOrchestratorFixture(t *testing.T, webhookURL string) *orchestratorFixture {
	t.Helper()
	db := newTestDB(t)
	payments := repositories.NewPaymentRepository(db)
	ledger := repositories.NewRoutedTransactionRepository(db)
	deliveries := repositories.NewWebhookDeliveryRepository(db)
	pspID := seedPSP(t, db, webhookURL)

	node := &fakeChainNode{decimals: 6, gasPrice: big.NewInt(1_000_000_000), price: big.NewInt(200_000_000)}
	registry := blockchain.NewRegistryWithAdapters(
		blockchain.NewChainAdapterWithClient(testChainCfg("base"), node),
	)

	settler := &fakeSettler{}
	dispatcher := NewWebhookDispatcher(repositories.NewPSPRepository(db), deliveries, testWebhookCfg())
	dispatcher.sleep = noSleep

	orch := NewSettlementOrchestrator(payments, ledger, registry, settler,
		NewFeeSplitter(1), dispatcher, testSettlementCfg())
	orch.sleep = noSleep

	return &orchestratorFixture{
		db: db, payments: payments, ledger: ledger, deliveries: deliveries,
		settler: settler, orch: orch, pspID: pspID,
	}
}

func TestSettlementOrchestrator_Settles(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newOrchestratorFixture(t, server.URL)
	payment := seedPaymentRow(t, f.payments, f.pspID, entities.PaymentStatusConfirmed, "100.00")

	require.NoError(t, f.orch.Settle(ctx, payment.ID))
	require.Equal(t, 1, f.settler.calls)

	got, err := f.payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, entities.PaymentStatusSettled, got.Status)
	require.NotNil(t, got.SettledAt)

	rows, err := f.ledger.ListByPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, entities.RoutedTargetPSP, rows[0].Target)
	require.True(t, rows[0].Success)
	require.Equal(t, 1, rows[0].Attempt)
	require.Equal(t, "0xsweep", rows[0].TxHash.String)
	require.Equal(t, "99", rows[0].Amount)
	require.Contains(t, rows[0].Meta.String, "treasuryFee")
	require.Contains(t, rows[0].Meta.String, "1")

	records, err := f.deliveries.ListByPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, entities.WebhookEventSettled, records[0].Event)
	require.Equal(t, entities.DeliveryStatusSuccess, records[0].Status)
}

func TestSettlementOrchestrator_ExhaustionRecordsSingleRow(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, "")
	payment := seedPaymentRow(t, f.payments, f.pspID, entities.PaymentStatusConfirmed, "100.00")

	revert := errors.New("execution reverted: transfer amount exceeds balance")
	f.settler.errs = []error{revert, revert, revert}

	require.NoError(t, f.orch.Settle(ctx, payment.ID))
	require.Equal(t, 3, f.settler.calls)

	got, err := f.payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, entities.PaymentStatusSettledFailed, got.Status)

	// intermediate failures are not persisted, only the decisive outcome
	rows, err := f.ledger.ListByPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.False(t, rows[0].Success)
	require.Equal(t, 3, rows[0].Attempt)
	require.Equal(t, string(entities.FailureCauseExecutionReverted), rows[0].Cause.String)
	require.Contains(t, rows[0].Error.String, "execution reverted")
}

func TestSettlementOrchestrator_RecoversAfterIntermediateFailures(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, "")
	payment := seedPaymentRow(t, f.payments, f.pspID, entities.PaymentStatusConfirmed, "100.00")

	f.settler.errs = []error{errors.New("provider timeout"), errors.New("provider timeout")}

	require.NoError(t, f.orch.Settle(ctx, payment.ID))
	require.Equal(t, 3, f.settler.calls)

	got, err := f.payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, entities.PaymentStatusSettled, got.Status)

	rows, err := f.ledger.ListByPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Success)
	require.Equal(t, 3, rows[0].Attempt)
}

func TestSettlementOrchestrator_ResumeSkipsSweepWhenLegRouted(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, "")
	payment := seedPaymentRow(t, f.payments, f.pspID, entities.PaymentStatusSettling, "100.00")

	// a crash after the sweep but before the status flip leaves this behind
	require.NoError(t, f.ledger.Append(ctx, &entities.RoutedTransaction{
		ID:        uuid.New(),
		PaymentID: payment.ID,
		TxHash:    null.StringFrom("0xearlier"),
		Chain:     payment.Chain,
		Token:     payment.TokenAddress,
		Amount:    "99",
		Target:    entities.RoutedTargetPSP,
		Attempt:   1,
		Success:   true,
		RoutedAt:  time.Now(),
	}))

	require.NoError(t, f.orch.Settle(ctx, payment.ID))
	require.Zero(t, f.settler.calls)

	got, err := f.payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, entities.PaymentStatusSettled, got.Status)

	rows, err := f.ledger.ListByPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSettlementOrchestrator_TerminalStatusIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, "")
	payment := seedPaymentRow(t, f.payments, f.pspID, entities.PaymentStatusSettled, "100.00")

	require.NoError(t, f.orch.Settle(ctx, payment.ID))
	require.Zero(t, f.settler.calls)
}

func TestSettlementOrchestrator_RejectsPendingPayment(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, "")
	payment := seedPaymentRow(t, f.payments, f.pspID, entities.PaymentStatusPending, "100.00")

	err := f.orch.Settle(ctx, payment.ID)
	require.ErrorIs(t, err, domainerrors.ErrInvalidTransition)
	require.Zero(t, f.settler.calls)
}

func TestSettlementOrchestrator_ConcurrentCallIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, "")
	payment := seedPaymentRow(t, f.payments, f.pspID, entities.PaymentStatusConfirmed, "100.00")

	require.True(t, f.orch.acquire(payment.ID))
	require.NoError(t, f.orch.Settle(ctx, payment.ID))
	require.Zero(t, f.settler.calls)
	f.orch.release(payment.ID)

	got, err := f.payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, entities.PaymentStatusConfirmed, got.Status)
}

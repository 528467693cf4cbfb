package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"chain-route.backend/internal/config"
	"chain-route.backend/internal/domain/entities"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/internal/domain/repositories"
	"chain-route.backend/internal/infrastructure/blockchain"
	"chain-route.backend/pkg/logger"
	"chain-route.backend/pkg/metrics"
	"go.uber.org/zap"
)

// SweepExecutor runs the batched two-leg sweep for a payment
type SweepExecutor interface {
	Wallet(paymentID, chain string) string
	Sweep(ctx context.Context, in blockchain.SweepInput) (*entities.SettlementResult, error)
}

// SettlementOrchestrator drives a confirmed payment through the sweep with
// bounded retry, recording every decisive outcome in the ledger.
//
// The in-process lock only serializes attempts within one process;
// the ledger's unique successful psp row and the status CAS updates are
// the cross-restart idempotency fences.
type SettlementOrchestrator struct {
	payments   repositories.PaymentRepository
	ledger     repositories.RoutedTransactionRepository
	registry   *blockchain.Registry
	settler    SweepExecutor
	splitter   *FeeSplitter
	dispatcher *WebhookDispatcher
	cfg        config.SettlementConfig

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
	sleep  func(time.Duration)
}

// NewSettlementOrchestrator creates an orchestrator
func NewSettlementOrchestrator(
	payments repositories.PaymentRepository,
	ledger repositories.RoutedTransactionRepository,
	registry *blockchain.Registry,
	settler SweepExecutor,
	splitter *FeeSplitter,
	dispatcher *WebhookDispatcher,
	cfg config.SettlementConfig,
) *SettlementOrchestrator {
	return &SettlementOrchestrator{
		payments:   payments,
		ledger:     ledger,
		registry:   registry,
		settler:    settler,
		splitter:   splitter,
		dispatcher: dispatcher,
		cfg:        cfg,
		active:     make(map[uuid.UUID]struct{}),
		sleep:      time.Sleep,
	}
}

// Settle runs the settlement sequence for one payment. A second concurrent
// call for the same payment id within the process returns immediately.
func (o *SettlementOrchestrator) Settle(ctx context.Context, paymentID uuid.UUID) error {
	if !o.acquire(paymentID) {
		logger.Debug(ctx, "settlement already in progress", zap.String("payment_id", paymentID.String()))
		return nil
	}
	defer o.release(paymentID)

	payment, err := o.payments.GetByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment %s: %w", paymentID, err)
	}

	switch payment.Status {
	case entities.PaymentStatusSettled, entities.PaymentStatusSettledFailed:
		return nil
	case entities.PaymentStatusConfirmed:
		if err := o.payments.UpdateStatus(ctx, paymentID, entities.PaymentStatusConfirmed, entities.PaymentStatusSettling); err != nil {
			return err
		}
	case entities.PaymentStatusSettling:
		// resumed after a crash mid-settlement
	default:
		return fmt.Errorf("%w: settle from %s", domainerrors.ErrInvalidTransition, payment.Status)
	}

	// a crash after a successful sweep but before the status update leaves
	// the psp row behind; finding it means the funds already moved
	swept, err := o.ledger.HasSuccessfulTarget(ctx, paymentID, entities.RoutedTargetPSP)
	if err != nil {
		return err
	}
	if swept {
		logger.Info(ctx, "psp leg already routed, finalizing without sweep",
			zap.String("payment_id", paymentID.String()))
		return o.payments.MarkSettled(ctx, paymentID)
	}

	adapter, err := o.registry.Get(payment.Chain)
	if err != nil {
		return err
	}
	decimals, err := adapter.TokenDecimals(ctx, payment.TokenAddress)
	if err != nil {
		return fmt.Errorf("token decimals on %s: %w", payment.Chain, err)
	}
	split, err := o.splitter.Split(payment.Amount, decimals)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		result, sweepErr := o.settler.Sweep(ctx, blockchain.SweepInput{
			PaymentID: paymentID.String(),
			Chain:     payment.Chain,
			Token:     payment.TokenAddress,
			Decimals:  decimals,
			PSPWallet: payment.PSPWallet,
			Split:     split,
		})
		if sweepErr == nil {
			metrics.SettlementAttempts.WithLabelValues(payment.Chain, "success").Inc()
			return o.finalizeSettled(ctx, payment, attempt, split, result)
		}

		lastErr = sweepErr
		metrics.SettlementAttempts.WithLabelValues(payment.Chain, "failure").Inc()

		if attempt < o.cfg.MaxAttempts {
			// intermediate failures are logged, not persisted; only the
			// decisive outcome reaches the ledger
			logger.Warn(ctx, "sweep attempt failed, retrying",
				zap.String("payment_id", paymentID.String()),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", o.cfg.RetryDelay),
				zap.Error(sweepErr))
			o.sleep(o.cfg.RetryDelay)
		}
	}

	return o.finalizeExhausted(ctx, payment, o.cfg.MaxAttempts, lastErr)
}

func (o *SettlementOrchestrator) finalizeSettled(ctx context.Context, payment *entities.Payment, attempt int, split *entities.FeeSplit, result *entities.SettlementResult) error {
	meta, _ := json.Marshal(map[string]string{"treasuryFee": result.TreasuryAmount})
	row := &entities.RoutedTransaction{
		ID:        uuid.New(),
		PaymentID: payment.ID,
		TxHash:    null.StringFrom(result.TxHash),
		Chain:     payment.Chain,
		Token:     payment.TokenAddress,
		Amount:    result.PSPAmount,
		Target:    entities.RoutedTargetPSP,
		Attempt:   attempt,
		Success:   true,
		Meta:      null.StringFrom(string(meta)),
		RoutedAt:  time.Now(),
	}
	if err := o.ledger.Append(ctx, row); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			// another path already recorded the sweep; funds are safe
			logger.Warn(ctx, "duplicate psp ledger row suppressed",
				zap.String("payment_id", payment.ID.String()))
		} else {
			return err
		}
	}

	if err := o.payments.MarkSettled(ctx, payment.ID); err != nil {
		return err
	}
	metrics.PaymentsByOutcome.WithLabelValues(string(entities.PaymentStatusSettled)).Inc()

	o.dispatcher.OnSettled(ctx, payment.PSPID, payment.ID, map[string]interface{}{
		"psp_amount":   result.PSPAmount,
		"treasury_fee": result.TreasuryAmount,
		"chain":        payment.Chain,
		"tx_hash":      result.TxHash,
	})

	logger.Info(ctx, "payment settled",
		zap.String("payment_id", payment.ID.String()),
		zap.String("chain", payment.Chain),
		zap.String("tx_hash", result.TxHash))
	return nil
}

func (o *SettlementOrchestrator) finalizeExhausted(ctx context.Context, payment *entities.Payment, attempts int, lastErr error) error {
	reason := "routing to psp failed"
	if lastErr != nil {
		reason = lastErr.Error()
	}

	row := &entities.RoutedTransaction{
		ID:        uuid.New(),
		PaymentID: payment.ID,
		Chain:     payment.Chain,
		Token:     payment.TokenAddress,
		Amount:    payment.Amount,
		Target:    entities.RoutedTargetPSP,
		Attempt:   attempts,
		Success:   false,
		Cause:     null.StringFrom(string(classifyFailure(lastErr))),
		Error:     null.StringFrom(reason),
		RoutedAt:  time.Now(),
	}
	if err := o.ledger.Append(ctx, row); err != nil {
		return err
	}

	if err := o.payments.MarkSettledFailed(ctx, payment.ID); err != nil {
		return err
	}
	metrics.PaymentsByOutcome.WithLabelValues(string(entities.PaymentStatusSettledFailed)).Inc()

	o.dispatcher.OnSettleFailed(ctx, payment.PSPID, payment.ID, map[string]interface{}{
		"reason": reason,
	})

	logger.Error(ctx, "settlement exhausted",
		zap.String("payment_id", payment.ID.String()),
		zap.Int("attempts", attempts),
		zap.String("reason", reason))
	return nil
}

// classifyFailure tags the error so the ledger stays queryable
func classifyFailure(err error) entities.FailureCause {
	if err == nil {
		return entities.FailureCauseOther
	}
	switch {
	case errors.Is(err, domainerrors.ErrConfirmationTimeout):
		return entities.FailureCauseConfirmationTimeout
	case errors.Is(err, domainerrors.ErrSweepIncomplete):
		return entities.FailureCauseExecutionReverted
	case errors.Is(err, context.DeadlineExceeded):
		return entities.FailureCauseProviderTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "revert"):
		return entities.FailureCauseExecutionReverted
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return entities.FailureCauseProviderTimeout
	}
	return entities.FailureCauseOther
}

func (o *SettlementOrchestrator) acquire(paymentID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[paymentID]; busy {
		return false
	}
	o.active[paymentID] = struct{}{}
	return true
}

func (o *SettlementOrchestrator) release(paymentID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, paymentID)
}

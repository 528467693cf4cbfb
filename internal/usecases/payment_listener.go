package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"
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
	"chain-route.backend/pkg/units"
	"go.uber.org/zap"
)

// PaymentListener polls chains for incoming transfers to receiving wallets
// and drives pending payments to their first decisive status.
//
// One watch goroutine runs per pending payment. The started set only stops
// the same process from spawning a second watcher; correctness under
// overlapping polls and restarts comes from the conditional status updates
// and the unique mismatch row, not from this set.
type PaymentListener struct {
	payments     repositories.PaymentRepository
	mismatches   repositories.MismatchRepository
	routes       repositories.PaymentRouteRepository
	ledger       repositories.RoutedTransactionRepository
	registry     *blockchain.Registry
	classifier   ComplianceClassifier
	orchestrator *SettlementOrchestrator
	dispatcher   *WebhookDispatcher
	cfg          config.SettlementConfig

	mu            sync.Mutex
	started       map[uuid.UUID]struct{}
	mismatchLocks map[string]struct{}

	sleep func(time.Duration)
	now   func() time.Time
}

// NewPaymentListener creates a listener
func NewPaymentListener(
	payments repositories.PaymentRepository,
	mismatches repositories.MismatchRepository,
	routes repositories.PaymentRouteRepository,
	ledger repositories.RoutedTransactionRepository,
	registry *blockchain.Registry,
	classifier ComplianceClassifier,
	orchestrator *SettlementOrchestrator,
	dispatcher *WebhookDispatcher,
	cfg config.SettlementConfig,
) *PaymentListener {
	return &PaymentListener{
		payments:      payments,
		mismatches:    mismatches,
		routes:        routes,
		ledger:        ledger,
		registry:      registry,
		classifier:    classifier,
		orchestrator:  orchestrator,
		dispatcher:    dispatcher,
		cfg:           cfg,
		started:       make(map[uuid.UUID]struct{}),
		mismatchLocks: make(map[string]struct{}),
		sleep:         time.Sleep,
		now:           time.Now,
	}
}

// Run blocks until ctx is cancelled, polling for work every PollInterval.
// Interrupted payments are resumed once at startup.
func (l *PaymentListener) Run(ctx context.Context) {
	l.Resume(ctx)
	l.Scan(ctx)

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "payment listener stopping")
			return
		case <-ticker.C:
			tick++
			if l.cfg.StaleCheckEvery > 0 && tick%l.cfg.StaleCheckEvery == 0 {
				l.ReconcileStale(ctx)
			}
			l.Scan(ctx)
		}
	}
}

// Resume picks up payments stranded mid-settlement by a restart. A payment
// whose receiving wallet still holds funds gets re-handed to the
// orchestrator; one that was already swept is left for the orchestrator's
// ledger check to close out.
func (l *PaymentListener) Resume(ctx context.Context) {
	stranded, err := l.payments.ListConfirmedUnsettled(ctx)
	if err != nil {
		logger.Error(ctx, "listing unsettled payments", zap.Error(err))
		return
	}

	for _, payment := range stranded {
		adapter, err := l.registry.Get(payment.Chain)
		if err != nil {
			logger.Error(ctx, "resume skipped, unknown chain",
				zap.String("payment_id", payment.ID.String()),
				zap.String("chain", payment.Chain))
			continue
		}

		balance, err := adapter.TokenBalance(ctx, payment.TokenAddress, payment.ReceivingWallet)
		if err != nil {
			logger.Error(ctx, "resume balance check failed",
				zap.String("payment_id", payment.ID.String()), zap.Error(err))
			continue
		}
		if balance.Sign() <= 0 {
			swept, err := l.ledger.HasSuccessfulTarget(ctx, payment.ID, entities.RoutedTargetPSP)
			if err != nil {
				logger.Error(ctx, "resume ledger check failed",
					zap.String("payment_id", payment.ID.String()), zap.Error(err))
				continue
			}
			if !swept {
				// drained without a recorded sweep; left for an operator
				logger.Warn(ctx, "skipping drained payment with no routed leg",
					zap.String("payment_id", payment.ID.String()))
				continue
			}
			// swept but not yet marked; the orchestrator's ledger fence
			// finalizes it without moving funds again
			logger.Info(ctx, "resuming drained payment for ledger reconciliation",
				zap.String("payment_id", payment.ID.String()))
		}

		id := payment.ID
		go func() {
			if err := l.orchestrator.Settle(ctx, id); err != nil {
				logger.Error(ctx, "resumed settlement failed",
					zap.String("payment_id", id.String()), zap.Error(err))
			}
		}()
	}
}

// Scan starts a watcher for every pending payment that does not have one
func (l *PaymentListener) Scan(ctx context.Context) {
	pending, err := l.payments.ListPending(ctx)
	if err != nil {
		logger.Error(ctx, "listing pending payments", zap.Error(err))
		return
	}

	for _, payment := range pending {
		if !payment.CreatedBlockNumber.Valid {
			continue
		}
		if !l.tryStart(payment.ID) {
			continue
		}
		p := payment
		go l.watch(ctx, p)
	}
}

// watch follows one payment's receiving wallet from its creation block until
// the payment reaches a decisive status or ctx is cancelled
func (l *PaymentListener) watch(ctx context.Context, payment *entities.Payment) {
	defer l.finish(payment.ID)

	adapter, err := l.registry.Get(payment.Chain)
	if err != nil {
		logger.Error(ctx, "watch aborted, unknown chain",
			zap.String("payment_id", payment.ID.String()),
			zap.String("chain", payment.Chain))
		return
	}

	decimals, err := adapter.TokenDecimals(ctx, payment.TokenAddress)
	if err != nil {
		logger.Error(ctx, "watch aborted, decimals lookup failed",
			zap.String("payment_id", payment.ID.String()), zap.Error(err))
		return
	}
	expected, err := units.Parse(payment.Amount, decimals)
	if err != nil {
		logger.Error(ctx, "watch aborted, unparseable amount",
			zap.String("payment_id", payment.ID.String()),
			zap.String("amount", payment.Amount))
		return
	}

	logger.Info(ctx, "watching receiving wallet",
		zap.String("payment_id", payment.ID.String()),
		zap.String("chain", payment.Chain),
		zap.String("wallet", payment.ReceivingWallet),
		zap.Int64("from_block", payment.CreatedBlockNumber.Int64))

	cursor := uint64(payment.CreatedBlockNumber.Int64)
	for {
		if ctx.Err() != nil {
			return
		}

		head, err := adapter.BlockNumber(ctx)
		if err != nil {
			logger.Warn(ctx, "head fetch failed",
				zap.String("chain", payment.Chain), zap.Error(err))
			l.sleep(l.cfg.PollInterval)
			continue
		}

		interrupted := false
		for cursor <= head && !interrupted {
			// inclusive range, so the span is MaxLogRange blocks exactly
			to := cursor + l.cfg.MaxLogRange - 1
			if to > head {
				to = head
			}

			events, err := adapter.FilterTransfers(ctx, payment.TokenAddress, payment.ReceivingWallet, cursor, to)
			if err != nil {
				logger.Warn(ctx, "log scan failed, range will be retried",
					zap.String("payment_id", payment.ID.String()),
					zap.Uint64("from", cursor), zap.Uint64("to", to),
					zap.Error(err))
				break
			}

			for _, ev := range events {
				terminal, err := l.handleTransfer(ctx, adapter, payment, decimals, expected, ev)
				if err != nil {
					// operational failure, the same event is re-examined on
					// the next pass because the cursor has not advanced
					logger.Error(ctx, "transfer handling failed",
						zap.String("payment_id", payment.ID.String()),
						zap.String("tx_hash", ev.TxHash),
						zap.Error(err))
					interrupted = true
					break
				}
				if terminal {
					return
				}
			}
			if !interrupted {
				cursor = to + 1
			}
		}

		// a stale reconciler or operator may have closed the payment
		if current, err := l.payments.GetByID(ctx, payment.ID); err == nil && current.Status != entities.PaymentStatusPending {
			logger.Info(ctx, "watch ended, payment left pending elsewhere",
				zap.String("payment_id", payment.ID.String()),
				zap.String("status", string(current.Status)))
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
			l.sleep(l.cfg.PollInterval)
		}
	}
}

// handleTransfer classifies one observed transfer and applies its outcome.
// It returns true when the payment has reached a decisive status.
func (l *PaymentListener) handleTransfer(ctx context.Context, adapter *blockchain.ChainAdapter, payment *entities.Payment, decimals uint8, expected *big.Int, ev blockchain.TransferEvent) (bool, error) {
	if err := l.waitForConfirmations(ctx, adapter, ev.BlockNumber); err != nil {
		return false, err
	}

	verdict, err := l.classifier.Classify(ctx, entities.PaymentContext{
		Chain:           payment.Chain,
		Amount:          payment.Amount,
		ReceivingWallet: payment.ReceivingWallet,
	})
	if err != nil {
		return false, fmt.Errorf("compliance classification: %w", err)
	}
	if verdict.Level == entities.RiskLevelHigh {
		return l.failCompliance(ctx, payment, verdict)
	}

	cmp := ev.Value.Cmp(expected)
	if cmp != 0 {
		return l.recordMismatch(ctx, payment, decimals, expected, ev, cmp)
	}
	return l.confirm(ctx, payment, ev)
}

// waitForConfirmations blocks until the transfer's block is buried under the
// chain's required depth, or the confirmation window elapses
func (l *PaymentListener) waitForConfirmations(ctx context.Context, adapter *blockchain.ChainAdapter, eventBlock uint64) error {
	depth := uint64(adapter.Config().ConfirmationDepth)
	deadline := l.now().Add(l.cfg.ConfirmTimeout)

	for {
		head, err := adapter.BlockNumber(ctx)
		if err == nil && head >= eventBlock+depth {
			return nil
		}
		if l.now().After(deadline) {
			return fmt.Errorf("%w: block %d on %s", domainerrors.ErrConfirmationTimeout, eventBlock, adapter.Name())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			l.sleep(l.cfg.ConfirmPoll)
		}
	}
}

func (l *PaymentListener) failCompliance(ctx context.Context, payment *entities.Payment, verdict entities.RiskVerdict) (bool, error) {
	err := l.payments.UpdateStatus(ctx, payment.ID, entities.PaymentStatusPending, entities.PaymentStatusFailed)
	if errors.Is(err, domainerrors.ErrInvalidTransition) {
		// already closed by another path
		return true, nil
	}
	if err != nil {
		return false, err
	}

	metrics.PaymentsByOutcome.WithLabelValues(string(entities.PaymentStatusFailed)).Inc()
	metrics.TransferEvents.WithLabelValues(payment.Chain, "blocked").Inc()
	logger.Warn(ctx, "payment blocked by compliance",
		zap.String("payment_id", payment.ID.String()),
		zap.Int("score", verdict.Score),
		zap.Strings("flags", verdict.Flags))

	l.dispatcher.OnFailure(ctx, payment.PSPID, payment.ID, map[string]interface{}{
		"reason": "compliance check failed",
		"flags":  verdict.Flags,
	})
	return true, nil
}

func (l *PaymentListener) recordMismatch(ctx context.Context, payment *entities.Payment, decimals uint8, expected *big.Int, ev blockchain.TransferEvent, cmp int) (bool, error) {
	if !l.lockMismatch(ev.TxHash) {
		return true, nil
	}
	defer l.unlockMismatch(ev.TxHash)

	if existing, err := l.mismatches.GetByTxHash(ctx, ev.TxHash); err == nil && existing != nil {
		return true, nil
	}

	status := entities.MismatchStatusOverpaid
	classification := "overpaid"
	if cmp < 0 {
		status = entities.MismatchStatusUnderpaid
		classification = "underpaid"
	}

	transitioned := true
	if err := l.payments.MarkMismatched(ctx, payment.ID, ev.From); err != nil {
		if !errors.Is(err, domainerrors.ErrInvalidTransition) {
			return false, err
		}
		transitioned = false
	}

	row := &entities.MismatchedPayment{
		ID:             uuid.New(),
		PaymentID:      payment.ID,
		TxHash:         ev.TxHash,
		Sender:         ev.From,
		ExpectedAmount: units.Format(expected, decimals),
		ReceivedAmount: units.Format(ev.Value, decimals),
		Status:         status,
		CreatedAt:      l.now(),
	}
	if err := l.mismatches.Append(ctx, row); err != nil {
		if !errors.Is(err, domainerrors.ErrAlreadyExists) {
			return false, err
		}
		// same transfer recorded by an overlapping scan
		return true, nil
	}

	metrics.TransferEvents.WithLabelValues(payment.Chain, classification).Inc()
	logger.Warn(ctx, "amount mismatch",
		zap.String("payment_id", payment.ID.String()),
		zap.String("tx_hash", ev.TxHash),
		zap.String("expected", row.ExpectedAmount),
		zap.String("received", row.ReceivedAmount))

	if transitioned {
		metrics.PaymentsByOutcome.WithLabelValues(string(entities.PaymentStatusMismatched)).Inc()
		l.dispatcher.OnMismatch(ctx, payment.PSPID, payment.ID, map[string]interface{}{
			"tx_hash":  ev.TxHash,
			"expected": row.ExpectedAmount,
			"received": row.ReceivedAmount,
			"kind":     classification,
		})
	}
	return true, nil
}

func (l *PaymentListener) confirm(ctx context.Context, payment *entities.Payment, ev blockchain.TransferEvent) (bool, error) {
	if err := l.payments.MarkConfirmed(ctx, payment.ID, ev.From); err != nil {
		if errors.Is(err, domainerrors.ErrInvalidTransition) {
			// a duplicate of an already-applied transfer
			return true, nil
		}
		return false, err
	}

	metrics.PaymentsByOutcome.WithLabelValues(string(entities.PaymentStatusConfirmed)).Inc()
	metrics.TransferEvents.WithLabelValues(payment.Chain, "matched").Inc()
	logger.Info(ctx, "payment confirmed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("tx_hash", ev.TxHash),
		zap.String("sender", ev.From))

	incoming := &entities.RoutedTransaction{
		ID:        uuid.New(),
		PaymentID: payment.ID,
		TxHash:    null.StringFrom(ev.TxHash),
		Chain:     payment.Chain,
		Token:     payment.TokenAddress,
		Amount:    payment.Amount,
		Target:    entities.RoutedTargetIncoming,
		Attempt:   1,
		Success:   true,
		RoutedAt:  l.now(),
	}
	if err := l.ledger.Append(ctx, incoming); err != nil && !errors.Is(err, domainerrors.ErrAlreadyExists) {
		logger.Error(ctx, "incoming ledger row failed",
			zap.String("payment_id", payment.ID.String()), zap.Error(err))
	}

	if err := l.routes.MarkUsed(ctx, payment.ID, ev.TxHash); err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		logger.Warn(ctx, "route audit update failed",
			zap.String("payment_id", payment.ID.String()), zap.Error(err))
	}

	l.dispatcher.OnConfirmed(ctx, payment.PSPID, payment.ID, map[string]interface{}{
		"tx_hash": ev.TxHash,
		"sender":  ev.From,
		"amount":  payment.Amount,
		"chain":   payment.Chain,
	})

	if err := l.orchestrator.Settle(ctx, payment.ID); err != nil {
		logger.Error(ctx, "settlement failed after confirmation",
			zap.String("payment_id", payment.ID.String()), zap.Error(err))
	}
	return true, nil
}

// ReconcileStale fails pending payments no transfer ever arrived for
func (l *PaymentListener) ReconcileStale(ctx context.Context) {
	stale, err := l.payments.ListStalePending(ctx, int(l.cfg.StaleAfter.Minutes()))
	if err != nil {
		logger.Error(ctx, "listing stale payments", zap.Error(err))
		return
	}

	for _, payment := range stale {
		err := l.payments.UpdateStatus(ctx, payment.ID, entities.PaymentStatusPending, entities.PaymentStatusFailed)
		if errors.Is(err, domainerrors.ErrInvalidTransition) {
			// confirmed or failed between the listing and the update
			continue
		}
		if err != nil {
			logger.Error(ctx, "expiring stale payment failed",
				zap.String("payment_id", payment.ID.String()), zap.Error(err))
			continue
		}

		metrics.PaymentsByOutcome.WithLabelValues(string(entities.PaymentStatusFailed)).Inc()
		logger.Info(ctx, "stale payment expired",
			zap.String("payment_id", payment.ID.String()))

		l.dispatcher.OnFailure(ctx, payment.PSPID, payment.ID, map[string]interface{}{
			"reason": "no transfer observed within the payment window",
		})
	}
}

func (l *PaymentListener) tryStart(paymentID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, watching := l.started[paymentID]; watching {
		return false
	}
	l.started[paymentID] = struct{}{}
	return true
}

func (l *PaymentListener) finish(paymentID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.started, paymentID)
}

func (l *PaymentListener) lockMismatch(txHash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.mismatchLocks[txHash]; held {
		return false
	}
	l.mismatchLocks[txHash] = struct{}{}
	return true
}

func (l *PaymentListener) unlockMismatch(txHash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.mismatchLocks, txHash)
}

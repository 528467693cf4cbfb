package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"chain-route.backend/internal/config"
	"chain-route.backend/internal/domain/entities"
	"chain-route.backend/internal/domain/repositories"
	"chain-route.backend/pkg/logger"
	"chain-route.backend/pkg/metrics"
	"go.uber.org/zap"
)

// webhookEnvelope is the body POSTed to merchant endpoints
type webhookEnvelope struct {
	Event  entities.WebhookEvent  `json:"event"`
	Data   map[string]interface{} `json:"data"`
	SentAt string                 `json:"sent_at"`
}

// WebhookDispatcher delivers lifecycle events to merchant endpoints with
// bounded retry. Delivery is strictly best-effort: no outcome here ever
// blocks or fails payment-state progression, and every attempt is recorded
// whatever its result.
type WebhookDispatcher struct {
	psps       repositories.PSPRepository
	deliveries repositories.WebhookDeliveryRepository
	client     *http.Client
	cfg        config.WebhookConfig

	sleep func(time.Duration)
}

// NewWebhookDispatcher creates a dispatcher
func NewWebhookDispatcher(psps repositories.PSPRepository, deliveries repositories.WebhookDeliveryRepository, cfg config.WebhookConfig) *WebhookDispatcher {
	return &WebhookDispatcher{
		psps:       psps,
		deliveries: deliveries,
		client:     &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		sleep:      time.Sleep,
	}
}

// Dispatch delivers one event for a payment to its PSP's registered
// endpoint. Without a valid http(s) URL the delivery is skipped and logged.
// Only the first attempt runs on the caller; retries detach so a dead
// endpoint never stalls payment-state progression.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, pspID, paymentID uuid.UUID, event entities.WebhookEvent, data map[string]interface{}) {
	url, err := d.psps.WebhookURL(ctx, pspID)
	if err != nil {
		logger.Warn(ctx, "webhook skipped: psp lookup failed",
			zap.String("psp_id", pspID.String()), zap.Error(err))
		return
	}
	url = strings.TrimSpace(url)
	if url == "" || (!strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://")) {
		logger.Warn(ctx, "webhook skipped: no valid endpoint registered",
			zap.String("psp_id", pspID.String()), zap.String("event", string(event)))
		return
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	data["payment_id"] = paymentID.String()

	if d.attemptDelivery(ctx, url, paymentID, event, data, 1) {
		return
	}
	go d.retry(ctx, url, paymentID, event, data)
}

// retry runs attempts 2..MaxAttempts with the attempt-scaled delay
func (d *WebhookDispatcher) retry(ctx context.Context, url string, paymentID uuid.UUID, event entities.WebhookEvent, data map[string]interface{}) {
	for attempt := 2; attempt <= d.cfg.MaxAttempts; attempt++ {
		d.sleep(time.Duration(attempt-1) * d.cfg.BaseDelay)
		if d.attemptDelivery(ctx, url, paymentID, event, data, attempt) {
			return
		}
	}

	// after the ceiling the failure is dropped; there is no dead letter
	logger.Error(ctx, "webhook delivery exhausted",
		zap.String("payment_id", paymentID.String()),
		zap.String("event", string(event)),
		zap.Int("attempts", d.cfg.MaxAttempts))
}

func (d *WebhookDispatcher) attemptDelivery(ctx context.Context, url string, paymentID uuid.UUID, event entities.WebhookEvent, data map[string]interface{}, attempt int) bool {
	envelope := webhookEnvelope{Event: event, Data: data, SentAt: time.Now().UTC().Format(time.RFC3339)}
	body, err := json.Marshal(envelope)
	if err != nil {
		logger.Error(ctx, "webhook payload marshal failed", zap.Error(err))
		return true // malformed payload will not improve on retry
	}

	code := 0
	responseBody := ""
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err == nil {
		req.Header.Set("Content-Type", "application/json")
		resp, doErr := d.client.Do(req)
		if doErr != nil {
			responseBody = doErr.Error()
		} else {
			code = resp.StatusCode
			respBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			responseBody = string(respBytes)
		}
	} else {
		responseBody = err.Error()
	}

	status := entities.DeliveryStatusFailed
	if code >= 200 && code < 300 {
		status = entities.DeliveryStatusSuccess
	}

	record := &entities.WebhookDelivery{
		ID:           uuid.New(),
		PaymentID:    paymentID,
		Event:        event,
		URL:          url,
		Status:       status,
		Attempt:      attempt,
		Payload:      string(body),
		ResponseCode: code,
		ResponseBody: responseBody,
		CreatedAt:    time.Now(),
	}
	if err := d.deliveries.Append(ctx, record); err != nil {
		logger.Error(ctx, "webhook delivery log failed",
			zap.String("payment_id", paymentID.String()), zap.Error(err))
	}
	metrics.WebhookDeliveries.WithLabelValues(string(event), string(status)).Inc()

	if status == entities.DeliveryStatusSuccess {
		logger.Info(ctx, "webhook delivered",
			zap.String("payment_id", paymentID.String()),
			zap.String("event", string(event)),
			zap.Int("attempt", attempt))
		return true
	}

	logger.Warn(ctx, "webhook delivery failed",
		zap.String("payment_id", paymentID.String()),
		zap.String("event", string(event)),
		zap.Int("attempt", attempt),
		zap.Int("status_code", code))
	return false
}

// Event shortcuts used by the listener and orchestrator.

func (d *WebhookDispatcher) OnConfirmed(ctx context.Context, pspID, paymentID uuid.UUID, data map[string]interface{}) {
	d.Dispatch(ctx, pspID, paymentID, entities.WebhookEventConfirmed, data)
}

func (d *WebhookDispatcher) OnSettled(ctx context.Context, pspID, paymentID uuid.UUID, data map[string]interface{}) {
	d.Dispatch(ctx, pspID, paymentID, entities.WebhookEventSettled, data)
}

func (d *WebhookDispatcher) OnSettleFailed(ctx context.Context, pspID, paymentID uuid.UUID, data map[string]interface{}) {
	d.Dispatch(ctx, pspID, paymentID, entities.WebhookEventSettlementFailed, data)
}

func (d *WebhookDispatcher) OnFailure(ctx context.Context, pspID, paymentID uuid.UUID, data map[string]interface{}) {
	d.Dispatch(ctx, pspID, paymentID, entities.WebhookEventFailed, data)
}

func (d *WebhookDispatcher) OnMismatch(ctx context.Context, pspID, paymentID uuid.UUID, data map[string]interface{}) {
	d.Dispatch(ctx, pspID, paymentID, entities.WebhookEventMismatched, data)
}

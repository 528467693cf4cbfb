package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	domainerrors "chain-route.backend/internal/domain/errors"
	"chain-route.backend/internal/domain/repositories"
	"chain-route.backend/internal/interfaces/http/response"
	"chain-route.backend/internal/usecases"
)

// PaymentHandler serves payment registration for the trusted gateway plus
// the read-only lifecycle views. Authentication and structural validation
// happen upstream.
type PaymentHandler struct {
	intake     *usecases.PaymentIntake
	payments   repositories.PaymentRepository
	deliveries repositories.WebhookDeliveryRepository
	ledger     repositories.RoutedTransactionRepository
}

// NewPaymentHandler creates a payment handler
func NewPaymentHandler(
	intake *usecases.PaymentIntake,
	payments repositories.PaymentRepository,
	deliveries repositories.WebhookDeliveryRepository,
	ledger repositories.RoutedTransactionRepository,
) *PaymentHandler {
	return &PaymentHandler{
		intake:     intake,
		payments:   payments,
		deliveries: deliveries,
		ledger:     ledger,
	}
}

// Register creates a payment intent with its resolved route
// POST /api/v1/payments
func (h *PaymentHandler) Register(c *gin.Context) {
	var req usecases.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest("invalid request body"))
		return
	}

	payment, route, err := h.intake.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"id":               payment.ID,
		"status":           payment.Status,
		"chain":            route.Chain,
		"token_address":    route.TokenAddress,
		"receiving_wallet": route.ReceivingWallet,
		"estimated_fee":    route.EstimatedFee,
		"estimated_time":   route.EstimatedTime,
	})
}

// GetStatus returns the lifecycle view of one payment
// GET /api/v1/payments/:id/status
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid payment id"))
		return
	}

	payment, err := h.payments.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	routed, err := h.ledger.ListByPayment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":           payment.ID,
		"status":       payment.Status,
		"chain":        payment.Chain,
		"currency":     payment.Currency,
		"amount":       payment.Amount,
		"confirmed_at": payment.ConfirmedAt,
		"settled_at":   payment.SettledAt,
		"routed":       routed,
	})
}

// GetDeliveries returns the webhook delivery history of one payment
// GET /api/v1/payments/:id/deliveries
func (h *PaymentHandler) GetDeliveries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid payment id"))
		return
	}

	records, err := h.deliveries.ListByPayment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"payment_id": id,
		"deliveries": records,
	})
}

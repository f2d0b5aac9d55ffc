package admin

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/api/handlers/common"
	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// PaymentRecorder ingests completed Stars payments into the refund pool
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, userID int64, chargeID string, amount decimal.Decimal, currency entities.Currency, paidAt time.Time) error
}

// PaymentHandlers handles payment ingestion from the bot process
type PaymentHandlers struct {
	payments  PaymentRecorder
	validator *validator.Validate
	logger    *logger.Logger
}

// NewPaymentHandlers creates a new PaymentHandlers instance
func NewPaymentHandlers(payments PaymentRecorder, logger *logger.Logger) *PaymentHandlers {
	return &PaymentHandlers{
		payments:  payments,
		validator: validator.New(),
		logger:    logger,
	}
}

type recordPaymentBody struct {
	UserID   int64  `json:"user_id" validate:"required"`
	ChargeID string `json:"charge_id" validate:"required"`
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,oneof=stars rub ton"`
	PaidAt   string `json:"paid_at" validate:"required"`
}

// Record handles POST /api/v1/admin/payments. Recording the same
// charge id twice is a no-op, so the bot may retry freely.
func (h *PaymentHandlers) Record(c *gin.Context) {
	var body recordPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, err.Error())
		return
	}

	amount, err := common.ParseDecimal(body.Amount)
	if err != nil || !amount.IsPositive() {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "amount must be a positive number")
		return
	}

	paidAt, err := time.Parse(time.RFC3339, body.PaidAt)
	if err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "paid_at must be RFC3339")
		return
	}

	if err := h.payments.RecordPayment(c.Request.Context(), body.UserID, body.ChargeID, amount, entities.Currency(body.Currency), paidAt); err != nil {
		h.logger.Error("failed to record payment", "user_id", body.UserID, "error", err)
		common.RespondInternalError(c, "failed to record payment")
		return
	}

	common.RespondCreated(c, gin.H{"recorded": true})
}

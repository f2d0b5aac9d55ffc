package admin

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/api/handlers/common"
	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// PayoutService defines the operator-facing withdrawal operations
type PayoutService interface {
	ProcessAutomaticRefunds(ctx context.Context, withdrawalID uuid.UUID) (*entities.RefundRunResult, error)
	RequestManualSend(ctx context.Context, withdrawalID uuid.UUID) (*entities.OperatorInstruction, error)
	ConfirmManualSend(ctx context.Context, withdrawalID uuid.UUID, operatorID int64, confirmedAmount decimal.Decimal) (*entities.WithdrawalRequest, error)
	Reject(ctx context.Context, withdrawalID uuid.UUID, reason string) (*entities.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*entities.WithdrawalRequest, error)
	GetAuditTrail(ctx context.Context, withdrawalID uuid.UUID) (*entities.AuditTrail, error)
}

// Reconciler lists ledger debits with no matching withdrawal record
type Reconciler interface {
	ReconcileUnmatchedDebits(ctx context.Context) ([]*entities.Transaction, error)
}

// PayoutHandlers handles operator payout operations
type PayoutHandlers struct {
	payouts    PayoutService
	reconciler Reconciler
	validator  *validator.Validate
	logger     *logger.Logger
}

// NewPayoutHandlers creates a new PayoutHandlers instance
func NewPayoutHandlers(payouts PayoutService, reconciler Reconciler, logger *logger.Logger) *PayoutHandlers {
	return &PayoutHandlers{
		payouts:    payouts,
		reconciler: reconciler,
		validator:  validator.New(),
		logger:     logger,
	}
}

// ProcessRefunds handles POST /api/v1/admin/payouts/:id/refunds
func (h *PayoutHandlers) ProcessRefunds(c *gin.Context) {
	withdrawalID, ok := h.parseWithdrawalID(c)
	if !ok {
		return
	}

	result, err := h.payouts.ProcessAutomaticRefunds(c.Request.Context(), withdrawalID)
	if err != nil {
		h.respondPayoutError(c, withdrawalID, "process automatic refunds", err)
		return
	}

	common.RespondSuccess(c, result)
}

// RequestManualSend handles POST /api/v1/admin/payouts/:id/manual-send
func (h *PayoutHandlers) RequestManualSend(c *gin.Context) {
	withdrawalID, ok := h.parseWithdrawalID(c)
	if !ok {
		return
	}

	instruction, err := h.payouts.RequestManualSend(c.Request.Context(), withdrawalID)
	if err != nil {
		if errors.Is(err, entities.ErrNoShortfall) {
			common.RespondConflict(c, common.ErrCodeInvalidState, "withdrawal has no remaining shortfall")
			return
		}
		h.respondPayoutError(c, withdrawalID, "request manual send", err)
		return
	}

	common.RespondSuccess(c, instruction)
}

type confirmManualSendBody struct {
	OperatorID int64  `json:"operator_id" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
}

// ConfirmManualSend handles POST /api/v1/admin/payouts/:id/confirm
func (h *PayoutHandlers) ConfirmManualSend(c *gin.Context) {
	withdrawalID, ok := h.parseWithdrawalID(c)
	if !ok {
		return
	}

	var body confirmManualSendBody
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

	w, err := h.payouts.ConfirmManualSend(c.Request.Context(), withdrawalID, body.OperatorID, amount)
	if err != nil {
		if errors.Is(err, entities.ErrAmountMismatch) {
			common.RespondConflict(c, common.ErrCodeAmountMismatch, "confirmed amount does not equal the remaining shortfall")
			return
		}
		h.respondPayoutError(c, withdrawalID, "confirm manual send", err)
		return
	}

	h.logger.Info("manual send confirmed",
		"withdrawal_id", withdrawalID,
		"operator_id", body.OperatorID,
		"amount", amount)
	common.RespondSuccess(c, w)
}

type rejectBody struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// Reject handles POST /api/v1/admin/payouts/:id/reject
func (h *PayoutHandlers) Reject(c *gin.Context) {
	withdrawalID, ok := h.parseWithdrawalID(c)
	if !ok {
		return
	}

	var body rejectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, err.Error())
		return
	}

	w, err := h.payouts.Reject(c.Request.Context(), withdrawalID, body.Reason)
	if err != nil {
		h.respondPayoutError(c, withdrawalID, "reject withdrawal", err)
		return
	}

	h.logger.Info("withdrawal rejected", "withdrawal_id", withdrawalID, "reason", body.Reason)
	common.RespondSuccess(c, w)
}

// Get handles GET /api/v1/admin/payouts/:id
func (h *PayoutHandlers) Get(c *gin.Context) {
	withdrawalID, ok := h.parseWithdrawalID(c)
	if !ok {
		return
	}

	w, err := h.payouts.GetWithdrawal(c.Request.Context(), withdrawalID)
	if err != nil {
		h.respondPayoutError(c, withdrawalID, "get withdrawal", err)
		return
	}

	common.RespondSuccess(c, w)
}

// AuditTrail handles GET /api/v1/admin/payouts/:id/audit
func (h *PayoutHandlers) AuditTrail(c *gin.Context) {
	withdrawalID, ok := h.parseWithdrawalID(c)
	if !ok {
		return
	}

	trail, err := h.payouts.GetAuditTrail(c.Request.Context(), withdrawalID)
	if err != nil {
		h.respondPayoutError(c, withdrawalID, "get audit trail", err)
		return
	}

	common.RespondSuccess(c, trail)
}

// ReconcileReport handles GET /api/v1/admin/payouts/reconcile
func (h *PayoutHandlers) ReconcileReport(c *gin.Context) {
	unmatched, err := h.reconciler.ReconcileUnmatchedDebits(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to build reconcile report", "error", err)
		common.RespondInternalError(c, "failed to build reconcile report")
		return
	}

	common.RespondSuccess(c, gin.H{
		"unmatched_debits": unmatched,
		"count":            len(unmatched),
	})
}

func (h *PayoutHandlers) parseWithdrawalID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "invalid withdrawal ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *PayoutHandlers) respondPayoutError(c *gin.Context, withdrawalID uuid.UUID, op string, err error) {
	switch {
	case errors.Is(err, entities.ErrWithdrawalNotFound):
		common.RespondNotFound(c, "withdrawal not found")
	case errors.Is(err, entities.ErrInvalidState):
		common.RespondConflict(c, common.ErrCodeInvalidState, "withdrawal is not in a state that allows this operation")
	case errors.Is(err, entities.ErrLedgerUnavailable):
		common.RespondError(c, 503, common.ErrCodeInternal, "ledger temporarily unavailable")
	default:
		h.logger.Error("failed to "+op, "withdrawal_id", withdrawalID, "error", err)
		common.RespondInternalError(c, "failed to "+op)
	}
}

package wallet

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/api/handlers/common"
	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// WithdrawalService defines the withdrawal operations exposed to users
type WithdrawalService interface {
	Submit(ctx context.Context, req *entities.SubmitWithdrawalRequest) (*entities.SubmitWithdrawalResponse, error)
	GetWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*entities.WithdrawalRequest, error)
	GetUserWithdrawals(ctx context.Context, userID int64, limit, offset int) ([]*entities.WithdrawalRequest, error)
	GetAuditTrail(ctx context.Context, withdrawalID uuid.UUID) (*entities.AuditTrail, error)
}

// BalanceReader reports a user's current balance for a currency
type BalanceReader interface {
	GetBalance(ctx context.Context, userID int64, currency entities.Currency) (decimal.Decimal, error)
}

// WithdrawalHandlers handles user-facing withdrawal operations
type WithdrawalHandlers struct {
	withdrawals WithdrawalService
	balances    BalanceReader
	validator   *validator.Validate
	logger      *logger.Logger
}

// NewWithdrawalHandlers creates a new WithdrawalHandlers instance
func NewWithdrawalHandlers(withdrawals WithdrawalService, balances BalanceReader, logger *logger.Logger) *WithdrawalHandlers {
	return &WithdrawalHandlers{
		withdrawals: withdrawals,
		balances:    balances,
		validator:   validator.New(),
		logger:      logger,
	}
}

type submitWithdrawalBody struct {
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,oneof=stars rub ton"`
}

// Submit handles POST /api/v1/wallet/withdrawals
func (h *WithdrawalHandlers) Submit(c *gin.Context) {
	var body submitWithdrawalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, err.Error())
		return
	}

	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "authentication required")
		return
	}

	amount, err := common.ParseDecimal(body.Amount)
	if err != nil || !amount.IsPositive() {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "amount must be a positive number")
		return
	}

	resp, err := h.withdrawals.Submit(c.Request.Context(), &entities.SubmitWithdrawalRequest{
		UserID:   userID,
		Amount:   amount,
		Currency: entities.Currency(body.Currency),
	})
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrInsufficientBalance):
			common.RespondConflict(c, common.ErrCodeInsufficientBalance, "balance is lower than the requested amount")
		case errors.Is(err, entities.ErrAmountBelowMinimum):
			common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "amount is below the minimum withdrawal")
		case errors.Is(err, entities.ErrDailyLimitReached):
			common.RespondError(c, 429, common.ErrCodeLimitExceeded, "daily withdrawal limit reached")
		case errors.Is(err, entities.ErrLedgerUnavailable):
			common.RespondError(c, 503, common.ErrCodeInternal, "ledger temporarily unavailable")
		default:
			h.logger.Error("failed to submit withdrawal", "user_id", userID, "error", err)
			common.RespondInternalError(c, "failed to submit withdrawal")
		}
		return
	}

	common.RespondCreated(c, resp)
}

// Get handles GET /api/v1/wallet/withdrawals/:id
func (h *WithdrawalHandlers) Get(c *gin.Context) {
	withdrawalID, ok := h.parseWithdrawalID(c)
	if !ok {
		return
	}
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "authentication required")
		return
	}

	w, err := h.withdrawals.GetWithdrawal(c.Request.Context(), withdrawalID)
	if err != nil {
		if errors.Is(err, entities.ErrWithdrawalNotFound) {
			common.RespondNotFound(c, "withdrawal not found")
			return
		}
		h.logger.Error("failed to get withdrawal", "withdrawal_id", withdrawalID, "error", err)
		common.RespondInternalError(c, "failed to get withdrawal")
		return
	}
	if w.UserID != userID {
		// Do not leak existence of other users' withdrawals.
		common.RespondNotFound(c, "withdrawal not found")
		return
	}

	common.RespondSuccess(c, w)
}

// List handles GET /api/v1/wallet/withdrawals
func (h *WithdrawalHandlers) List(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "authentication required")
		return
	}

	limit := parseIntQuery(c, "limit", 20, 100)
	offset := parseIntQuery(c, "offset", 0, 1<<30)

	withdrawals, err := h.withdrawals.GetUserWithdrawals(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list withdrawals", "user_id", userID, "error", err)
		common.RespondInternalError(c, "failed to list withdrawals")
		return
	}

	common.RespondSuccess(c, gin.H{
		"withdrawals": withdrawals,
		"limit":       limit,
		"offset":      offset,
	})
}

// AuditTrail handles GET /api/v1/wallet/withdrawals/:id/audit
func (h *WithdrawalHandlers) AuditTrail(c *gin.Context) {
	withdrawalID, ok := h.parseWithdrawalID(c)
	if !ok {
		return
	}
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "authentication required")
		return
	}

	trail, err := h.withdrawals.GetAuditTrail(c.Request.Context(), withdrawalID)
	if err != nil {
		if errors.Is(err, entities.ErrWithdrawalNotFound) {
			common.RespondNotFound(c, "withdrawal not found")
			return
		}
		h.logger.Error("failed to get audit trail", "withdrawal_id", withdrawalID, "error", err)
		common.RespondInternalError(c, "failed to get audit trail")
		return
	}
	if trail.UserID != userID {
		common.RespondNotFound(c, "withdrawal not found")
		return
	}

	common.RespondSuccess(c, trail)
}

// Balance handles GET /api/v1/wallet/balance
func (h *WithdrawalHandlers) Balance(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "authentication required")
		return
	}

	currency := entities.Currency(c.DefaultQuery("currency", string(entities.CurrencyStars)))
	if !currency.IsValid() {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "unknown currency")
		return
	}

	balance, err := h.balances.GetBalance(c.Request.Context(), userID, currency)
	if err != nil {
		h.logger.Error("failed to get balance", "user_id", userID, "error", err)
		common.RespondInternalError(c, "failed to get balance")
		return
	}

	common.RespondSuccess(c, gin.H{
		"user_id":  userID,
		"currency": currency,
		"amount":   balance,
	})
}

func (h *WithdrawalHandlers) parseWithdrawalID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "invalid withdrawal ID format")
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, name string, def, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

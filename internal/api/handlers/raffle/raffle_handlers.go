package raffle

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

// RaffleService defines raffle lifecycle operations
type RaffleService interface {
	CreateRaffle(ctx context.Context, minParticipants int, maxParticipants *int, entryFee decimal.Decimal, currency entities.Currency, commissionPercent decimal.Decimal) (*entities.Raffle, error)
	Join(ctx context.Context, raffleID uuid.UUID, userID int64) (*entities.Participant, error)
	Draw(ctx context.Context, raffleID uuid.UUID) (*entities.Raffle, error)
	GetRaffle(ctx context.Context, raffleID uuid.UUID) (*entities.Raffle, error)
	ListActive(ctx context.Context) ([]*entities.Raffle, error)
}

// Handlers handles raffle operations
type Handlers struct {
	raffles           RaffleService
	defaultCommission map[entities.Currency]decimal.Decimal
	validator         *validator.Validate
	logger            *logger.Logger
}

// NewHandlers creates a new raffle Handlers instance. defaultCommission
// supplies the house commission per currency when a create request omits
// one.
func NewHandlers(raffles RaffleService, defaultCommission map[entities.Currency]decimal.Decimal, logger *logger.Logger) *Handlers {
	return &Handlers{
		raffles:           raffles,
		defaultCommission: defaultCommission,
		validator:         validator.New(),
		logger:            logger,
	}
}

type createRaffleBody struct {
	MinParticipants   int    `json:"min_participants" validate:"required,min=2"`
	MaxParticipants   *int   `json:"max_participants" validate:"omitempty,min=2"`
	EntryFee          string `json:"entry_fee" validate:"required"`
	Currency          string `json:"currency" validate:"required,oneof=stars rub ton"`
	CommissionPercent string `json:"commission_percent"`
}

// Create handles POST /api/v1/admin/raffles
func (h *Handlers) Create(c *gin.Context) {
	var body createRaffleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, err.Error())
		return
	}

	fee, err := common.ParseDecimal(body.EntryFee)
	if err != nil || !fee.IsPositive() {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "entry_fee must be a positive number")
		return
	}

	commission := h.defaultCommission[entities.Currency(body.Currency)]
	if body.CommissionPercent != "" {
		commission, err = common.ParseDecimal(body.CommissionPercent)
		if err != nil || commission.IsNegative() {
			common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "commission_percent must be a non-negative number")
			return
		}
	}

	raffle, err := h.raffles.CreateRaffle(c.Request.Context(), body.MinParticipants, body.MaxParticipants, fee, entities.Currency(body.Currency), commission)
	if err != nil {
		h.logger.Error("failed to create raffle", "error", err)
		common.RespondInternalError(c, "failed to create raffle")
		return
	}

	common.RespondCreated(c, raffle)
}

// List handles GET /api/v1/raffles
func (h *Handlers) List(c *gin.Context) {
	raffles, err := h.raffles.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list raffles", "error", err)
		common.RespondInternalError(c, "failed to list raffles")
		return
	}
	common.RespondSuccess(c, gin.H{"raffles": raffles})
}

// Get handles GET /api/v1/raffles/:id
func (h *Handlers) Get(c *gin.Context) {
	raffleID, ok := h.parseRaffleID(c)
	if !ok {
		return
	}

	raffle, err := h.raffles.GetRaffle(c.Request.Context(), raffleID)
	if err != nil {
		if errors.Is(err, entities.ErrRaffleNotFound) {
			common.RespondNotFound(c, "raffle not found")
			return
		}
		h.logger.Error("failed to get raffle", "raffle_id", raffleID, "error", err)
		common.RespondInternalError(c, "failed to get raffle")
		return
	}
	common.RespondSuccess(c, raffle)
}

// Join handles POST /api/v1/raffles/:id/join
func (h *Handlers) Join(c *gin.Context) {
	raffleID, ok := h.parseRaffleID(c)
	if !ok {
		return
	}
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "authentication required")
		return
	}

	participant, err := h.raffles.Join(c.Request.Context(), raffleID, userID)
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrRaffleNotFound):
			common.RespondNotFound(c, "raffle not found")
		case errors.Is(err, entities.ErrRaffleNotJoinable):
			common.RespondConflict(c, common.ErrCodeInvalidState, "raffle is not accepting entries")
		case errors.Is(err, entities.ErrAlreadyParticipant):
			common.RespondConflict(c, common.ErrCodeInvalidState, "user already joined this raffle")
		case errors.Is(err, entities.ErrInsufficientBalance):
			common.RespondConflict(c, common.ErrCodeInsufficientBalance, "balance is lower than the entry fee")
		default:
			h.logger.Error("failed to join raffle", "raffle_id", raffleID, "user_id", userID, "error", err)
			common.RespondInternalError(c, "failed to join raffle")
		}
		return
	}

	common.RespondCreated(c, participant)
}

// Draw handles POST /api/v1/admin/raffles/:id/draw
func (h *Handlers) Draw(c *gin.Context) {
	raffleID, ok := h.parseRaffleID(c)
	if !ok {
		return
	}

	raffle, err := h.raffles.Draw(c.Request.Context(), raffleID)
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrRaffleNotFound):
			common.RespondNotFound(c, "raffle not found")
		case errors.Is(err, entities.ErrRaffleNotJoinable):
			common.RespondConflict(c, common.ErrCodeInvalidState, "raffle has already been drawn")
		case errors.Is(err, entities.ErrRaffleNotDrawable):
			common.RespondConflict(c, common.ErrCodeInvalidState, "raffle has not reached the minimum participant count")
		default:
			h.logger.Error("failed to draw raffle", "raffle_id", raffleID, "error", err)
			common.RespondInternalError(c, "failed to draw raffle")
		}
		return
	}

	common.RespondSuccess(c, raffle)
}

func (h *Handlers) parseRaffleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "invalid raffle ID format")
		return uuid.Nil, false
	}
	return id, true
}

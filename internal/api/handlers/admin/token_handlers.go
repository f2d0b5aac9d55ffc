package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/raffle-service/raffle_service/internal/api/handlers/common"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// UserTokenIssuer mints API tokens for Telegram users
type UserTokenIssuer interface {
	Issue(userID int64) (string, error)
}

// TokenHandlers issues user tokens to the bot process
type TokenHandlers struct {
	tokens    UserTokenIssuer
	validator *validator.Validate
	logger    *logger.Logger
}

// NewTokenHandlers creates a new TokenHandlers instance
func NewTokenHandlers(tokens UserTokenIssuer, logger *logger.Logger) *TokenHandlers {
	return &TokenHandlers{
		tokens:    tokens,
		validator: validator.New(),
		logger:    logger,
	}
}

type issueTokenBody struct {
	UserID int64 `json:"user_id" validate:"required"`
}

type issueTokenResponse struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// Issue handles POST /api/v1/admin/tokens. The bot calls this after
// /start to obtain the bearer token it hands to the user's session.
func (h *TokenHandlers) Issue(c *gin.Context) {
	var body issueTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(&body); err != nil {
		common.RespondBadRequest(c, common.ErrCodeInvalidRequest, err.Error())
		return
	}

	token, err := h.tokens.Issue(body.UserID)
	if err != nil {
		h.logger.Error("failed to issue user token", "user_id", body.UserID, "error", err)
		common.RespondInternalError(c, "failed to issue token")
		return
	}

	common.RespondCreated(c, issueTokenResponse{UserID: body.UserID, Token: token})
}

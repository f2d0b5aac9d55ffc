package common

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
)

// Error codes shared across handlers
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeAmountMismatch      = "AMOUNT_MISMATCH"
	ErrCodeLimitExceeded       = "LIMIT_EXCEEDED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// GetUserID extracts the authenticated Telegram user id from the context
func GetUserID(c *gin.Context) (int64, error) {
	val, exists := c.Get("user_id")
	if !exists {
		return 0, fmt.Errorf("user ID not found in context")
	}
	switch v := val.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("invalid user ID type in context")
	}
}

// RespondError sends a standardized error response
func RespondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, entities.ErrorResponse{Code: code, Message: message})
}

// RespondBadRequest sends a bad request error
func RespondBadRequest(c *gin.Context, code, message string) {
	RespondError(c, http.StatusBadRequest, code, message)
}

// RespondUnauthorized sends an unauthorized error
func RespondUnauthorized(c *gin.Context, message string) {
	RespondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// RespondNotFound sends a not found error
func RespondNotFound(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// RespondConflict sends a conflict error
func RespondConflict(c *gin.Context, code, message string) {
	RespondError(c, http.StatusConflict, code, message)
}

// RespondInternalError sends an internal server error
func RespondInternalError(c *gin.Context, message string) {
	RespondError(c, http.StatusInternalServerError, ErrCodeInternal, message)
}

// RespondSuccess sends a 200 with the given payload
func RespondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondCreated sends a 201 with the given payload
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// ParseDecimal parses a string into a decimal amount
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

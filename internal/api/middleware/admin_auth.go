package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
)

// AdminAuth guards the admin payout routes. Every request carries the
// admin password; mutating payout operations additionally require a
// fresh TOTP code via RequireTOTP.
type AdminAuth struct {
	passwordHash string
	totpSecret   string
}

func NewAdminAuth(passwordHash, totpSecret string) *AdminAuth {
	return &AdminAuth{passwordHash: passwordHash, totpSecret: totpSecret}
}

// Authenticate checks the X-Admin-Password header against the configured
// bcrypt hash.
func (a *AdminAuth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.passwordHash == "" {
			abortForbidden(c, "admin access is not configured")
			return
		}
		password := c.GetHeader("X-Admin-Password")
		if password == "" {
			abortUnauthorized(c, "missing admin password")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
			abortUnauthorized(c, "invalid admin password")
			return
		}
		c.Set("is_admin", true)
		c.Next()
	}
}

// RequireTOTP validates the X-Admin-TOTP header. Used on confirm and
// reject so a leaked password alone cannot move funds.
func (a *AdminAuth) RequireTOTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.totpSecret == "" {
			abortForbidden(c, "two-factor confirmation is not configured")
			return
		}
		code := c.GetHeader("X-Admin-TOTP")
		if code == "" {
			abortUnauthorized(c, "missing TOTP code")
			return
		}
		if !totp.Validate(code, a.totpSecret) {
			// Small constant delay narrows the brute-force window.
			time.Sleep(200 * time.Millisecond)
			abortUnauthorized(c, "invalid TOTP code")
			return
		}
		c.Next()
	}
}

func abortForbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, entities.ErrorResponse{
		Code:    "FORBIDDEN",
		Message: message,
	})
}

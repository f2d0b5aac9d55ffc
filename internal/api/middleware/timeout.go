package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
)

// Default timeouts for different operation types
const (
	DefaultRequestTimeout     = 30 * time.Second
	DefaultExternalAPITimeout = 30 * time.Second
	DefaultDatabaseTimeout    = 10 * time.Second
)

// Timeout aborts requests that exceed the given duration.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
			return
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, entities.ErrorResponse{
				Code:    "REQUEST_TIMEOUT",
				Message: "request processing timeout",
			})
		}
	}
}

// WithExternalTimeout bounds a context for outbound API calls. A parent
// deadline that is already shorter is preserved.
func WithExternalTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeoutIfNeeded(ctx, DefaultExternalAPITimeout)
}

// WithDatabaseTimeout bounds a context for database operations.
func WithDatabaseTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeoutIfNeeded(ctx, DefaultDatabaseTimeout)
}

func withTimeoutIfNeeded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// RateLimiter limits requests per authenticated user. A shared redis
// counter is used when available so limits hold across replicas; when
// redis is down or unconfigured it degrades to an in-process limiter.
type RateLimiter struct {
	client *redis.Client
	log    *logger.Logger

	window time.Duration
	limit  int

	mu       sync.Mutex
	local    map[string]*rate.Limiter
	lastSeen map[string]time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window.
// client may be nil.
func NewRateLimiter(client *redis.Client, log *logger.Logger, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	rl := &RateLimiter{
		client:   client,
		log:      log,
		window:   window,
		limit:    limit,
		local:    make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
	go rl.cleanupLoop()
	return rl
}

// PerUser limits by authenticated user id, falling back to client IP
// for unauthenticated routes.
func (rl *RateLimiter) PerUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if uid, exists := c.Get("user_id"); exists {
			key = fmt.Sprintf("user:%v", uid)
		}

		allowed, err := rl.allow(c, key)
		if err != nil {
			rl.log.Warn("rate limiter redis unavailable, using local limiter", "error", err)
			allowed = rl.allowLocal(key)
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, entities.ErrorResponse{
				Code:    "RATE_LIMIT_EXCEEDED",
				Message: "too many requests, try again later",
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(c *gin.Context, key string) (bool, error) {
	if rl.client == nil {
		return rl.allowLocal(key), nil
	}

	ctx := c.Request.Context()
	redisKey := "ratelimit:" + key

	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(rl.limit), nil
}

func (rl *RateLimiter) allowLocal(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.local[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.limit)), rl.limit)
		rl.local[key] = lim
	}
	rl.lastSeen[key] = time.Now()
	return lim.Allow()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-30 * time.Minute)
		rl.mu.Lock()
		for key, seen := range rl.lastSeen {
			if seen.Before(cutoff) {
				delete(rl.local, key)
				delete(rl.lastSeen, key)
			}
		}
		rl.mu.Unlock()
	}
}

package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/raffle-service/raffle_service/internal/api/middleware"
	"github.com/raffle-service/raffle_service/internal/infrastructure/config"
	"github.com/raffle-service/raffle_service/internal/infrastructure/di"
)

// SetupRoutes builds the gin router and registers all API routes.
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	registerOpsRoutes(router, container)

	v1 := router.Group("/api/v1")
	registerWalletRoutes(v1, container)
	registerRaffleRoutes(v1, container)
	registerAdminRoutes(v1, container)

	return router
}

// registerOpsRoutes registers health, metrics and API docs.
func registerOpsRoutes(router *gin.Engine, container *di.Container) {
	router.GET("/health", func(c *gin.Context) {
		if err := container.DB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// registerWalletRoutes registers user-facing wallet and withdrawal routes.
func registerWalletRoutes(router *gin.RouterGroup, container *di.Container) {
	wallet := router.Group("/wallet")
	wallet.Use(middleware.UserAuth(container.Config.Auth.JWTSecret))
	wallet.Use(container.RateLimiter.PerUser())
	{
		wallet.GET("/balance", container.WithdrawalHandlers.Balance)
		wallet.POST("/withdrawals", container.WithdrawalHandlers.Submit)
		wallet.GET("/withdrawals", container.WithdrawalHandlers.List)
		wallet.GET("/withdrawals/:id", container.WithdrawalHandlers.Get)
		wallet.GET("/withdrawals/:id/audit", container.WithdrawalHandlers.AuditTrail)
	}
}

// registerRaffleRoutes registers user-facing raffle routes.
func registerRaffleRoutes(router *gin.RouterGroup, container *di.Container) {
	raffles := router.Group("/raffles")
	raffles.Use(middleware.UserAuth(container.Config.Auth.JWTSecret))
	raffles.Use(container.RateLimiter.PerUser())
	{
		raffles.GET("", container.RaffleHandlers.List)
		raffles.GET("/:id", container.RaffleHandlers.Get)
		raffles.POST("/:id/join", container.RaffleHandlers.Join)
	}
}

// registerAdminRoutes registers the operator console routes. Operations
// that move or settle funds additionally require a TOTP code.
func registerAdminRoutes(router *gin.RouterGroup, container *di.Container) {
	cfg := container.Config

	admin := router.Group("/admin")
	admin.Use(middleware.AuthRateLimit(adminRateLimitPerMinute(cfg)))
	admin.Use(container.AdminAuth.Authenticate())
	{
		payouts := admin.Group("/payouts")
		{
			payouts.GET("/reconcile", container.PayoutHandlers.ReconcileReport)
			payouts.GET("/:id", container.PayoutHandlers.Get)
			payouts.GET("/:id/audit", container.PayoutHandlers.AuditTrail)
			payouts.POST("/:id/refunds", container.PayoutHandlers.ProcessRefunds)
			payouts.POST("/:id/manual-send", container.PayoutHandlers.RequestManualSend)
			payouts.POST("/:id/confirm", container.AdminAuth.RequireTOTP(), container.PayoutHandlers.ConfirmManualSend)
			payouts.POST("/:id/reject", container.AdminAuth.RequireTOTP(), container.PayoutHandlers.Reject)
		}

		admin.POST("/payments", container.PaymentHandlers.Record)
		admin.POST("/tokens", container.TokenHandlers.Issue)

		raffles := admin.Group("/raffles")
		{
			raffles.POST("", container.RaffleHandlers.Create)
			raffles.POST("/:id/draw", container.RaffleHandlers.Draw)
		}
	}
}

func adminRateLimitPerMinute(cfg *config.Config) int {
	if cfg.Server.AdminRateLimitPerMinute > 0 {
		return cfg.Server.AdminRateLimitPerMinute
	}
	return 30
}

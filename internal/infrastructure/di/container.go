package di

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	adminhandlers "github.com/raffle-service/raffle_service/internal/api/handlers/admin"
	rafflehandlers "github.com/raffle-service/raffle_service/internal/api/handlers/raffle"
	wallethandlers "github.com/raffle-service/raffle_service/internal/api/handlers/wallet"
	"github.com/raffle-service/raffle_service/internal/api/middleware"
	"github.com/raffle-service/raffle_service/internal/domain/entities"
	ledgersvc "github.com/raffle-service/raffle_service/internal/domain/services/ledger"
	paymentssvc "github.com/raffle-service/raffle_service/internal/domain/services/payments"
	rafflesvc "github.com/raffle-service/raffle_service/internal/domain/services/raffle"
	withdrawalsvc "github.com/raffle-service/raffle_service/internal/domain/services/withdrawal"
	"github.com/raffle-service/raffle_service/internal/infrastructure/adapters"
	"github.com/raffle-service/raffle_service/internal/infrastructure/adapters/randomorg"
	"github.com/raffle-service/raffle_service/internal/infrastructure/adapters/telegram"
	"github.com/raffle-service/raffle_service/internal/infrastructure/config"
	"github.com/raffle-service/raffle_service/internal/infrastructure/repositories"
	"github.com/raffle-service/raffle_service/pkg/auth"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// Container wires repositories, services, adapters and handlers.
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Log    *logger.Logger
	Redis  *redis.Client

	// Repositories
	LedgerRepo     *repositories.LedgerRepository
	PaymentRepo    *repositories.PaymentRepository
	WithdrawalRepo *repositories.WithdrawalRepository
	RaffleRepo     *repositories.RaffleRepository

	// Services
	LedgerService     *ledgersvc.Service
	PaymentService    *paymentssvc.Service
	WithdrawalService *withdrawalsvc.Service
	RaffleService     *rafflesvc.Service

	// Adapters
	TelegramClient   *telegram.Client
	OperatorNotifier *telegram.OperatorNotifier
	RandomClient     *randomorg.Client
	EmailService     *adapters.EmailService
	TokenIssuer      *auth.TokenIssuer

	// HTTP layer
	WithdrawalHandlers *wallethandlers.WithdrawalHandlers
	PayoutHandlers     *adminhandlers.PayoutHandlers
	PaymentHandlers    *adminhandlers.PaymentHandlers
	TokenHandlers      *adminhandlers.TokenHandlers
	RaffleHandlers     *rafflehandlers.Handlers
	RateLimiter        *middleware.RateLimiter
	AdminAuth          *middleware.AdminAuth
}

// NewContainer builds the full dependency graph.
func NewContainer(cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, DB: db, Log: log}

	c.Redis = newRedisClient(cfg.Redis)

	c.LedgerRepo = repositories.NewLedgerRepository(db)
	c.PaymentRepo = repositories.NewPaymentRepository(db)
	c.WithdrawalRepo = repositories.NewWithdrawalRepository(db)
	c.RaffleRepo = repositories.NewRaffleRepository(db)

	c.TelegramClient = telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken, log)
	c.EmailService = adapters.NewEmailService(cfg.Email, log)
	// A nil *EmailService must stay a nil interface inside the notifier.
	var fallback telegram.EmailSender
	if c.EmailService != nil {
		fallback = c.EmailService
	}
	c.OperatorNotifier = telegram.NewOperatorNotifier(c.TelegramClient, cfg.Telegram.AdminChatID, fallback, log)
	c.RandomClient = randomorg.NewClient(cfg.RandomOrg.APIURL, cfg.RandomOrg.APIKey)

	c.LedgerService = ledgersvc.NewService(c.LedgerRepo, log)
	c.PaymentService = paymentssvc.NewService(c.PaymentRepo, c.LedgerService, log)
	c.WithdrawalService = withdrawalsvc.NewService(
		c.WithdrawalRepo,
		c.LedgerService,
		c.PaymentService,
		c.TelegramClient,
		c.OperatorNotifier,
		cfg.Withdrawal.RefundLookback,
		withdrawalsvc.Limits{
			MinAmountStars: decimal.NewFromInt(cfg.Withdrawal.MinAmountStars),
			MaxPerDay:      int(cfg.Withdrawal.MaxPerDay),
		},
		log,
	)
	c.RaffleService = rafflesvc.NewService(c.RaffleRepo, c.LedgerService, c.RandomClient, c.OperatorNotifier, log)

	c.WithdrawalHandlers = wallethandlers.NewWithdrawalHandlers(c.WithdrawalService, c.LedgerService, log)
	c.PayoutHandlers = adminhandlers.NewPayoutHandlers(c.WithdrawalService, c.LedgerService, log)
	c.PaymentHandlers = adminhandlers.NewPaymentHandlers(c.PaymentService, log)
	c.TokenIssuer = auth.NewTokenIssuer(cfg.Auth.JWTSecret, 0)
	c.TokenHandlers = adminhandlers.NewTokenHandlers(c.TokenIssuer, log)
	c.RaffleHandlers = rafflehandlers.NewHandlers(c.RaffleService, map[entities.Currency]decimal.Decimal{
		entities.CurrencyStars: decimal.NewFromInt(cfg.Raffle.StarsCommissionPercent),
		entities.CurrencyRub:   decimal.NewFromInt(cfg.Raffle.RubCommissionPercent),
	}, log)

	c.RateLimiter = middleware.NewRateLimiter(c.Redis, log, cfg.Server.RateLimitPerMinute, time.Minute)
	c.AdminAuth = middleware.NewAdminAuth(cfg.Auth.AdminPasswordHash, cfg.Auth.AdminTOTPSecret)

	return c, nil
}

// newRedisClient returns nil when no address is configured; the rate
// limiter falls back to an in-process limiter in that case.
func newRedisClient(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Close releases container-held resources.
func (c *Container) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			return err
		}
	}
	return c.DB.Close()
}

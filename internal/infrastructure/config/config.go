// Package config loads service configuration from the environment via
// viper, with .env support for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the full service configuration
type Config struct {
	Environment string
	LogLevel    string

	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Telegram   TelegramConfig
	Withdrawal WithdrawalConfig
	Raffle     RaffleConfig
	RandomOrg  RandomOrgConfig
	Email      EmailConfig
	Auth       AuthConfig
	Tracing    TracingConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// RateLimitPerMinute bounds requests per authenticated user;
	// AdminRateLimitPerMinute bounds the operator console per IP.
	RateLimitPerMinute      int
	AdminRateLimitPerMinute int
}

// DatabaseConfig holds Postgres settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds redis settings (rate limiting)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelegramConfig holds Bot API settings
type TelegramConfig struct {
	BotToken    string
	APIBaseURL  string
	AdminChatID int64
}

// WithdrawalConfig holds payout engine settings
type WithdrawalConfig struct {
	// RefundLookback bounds how old a Stars payment may be and still be
	// reversible through the Bot API. Telegram enforces 21 days.
	RefundLookback   time.Duration
	MinAmountStars   int64
	ReminderInterval time.Duration
	ReminderAge      time.Duration
	MaxPerDay        int64
}

// RaffleConfig holds raffle settings
type RaffleConfig struct {
	StarsCommissionPercent int64
	RubCommissionPercent   int64
}

// RandomOrgConfig holds the signed randomness provider settings
type RandomOrgConfig struct {
	APIKey string
	APIURL string
}

// EmailConfig holds the operator email fallback settings
type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	OperatorEmail  string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret         string
	AdminPasswordHash string // bcrypt hash of the admin panel password
	AdminTOTPSecret   string // TOTP secret for manual-send confirmation
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool
	CollectorURL string
	SampleRate   float64
}

// Load reads configuration from the environment. A .env file is honored
// when present but never required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("SERVER_RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("SERVER_ADMIN_RATE_LIMIT_PER_MINUTE", 30)

	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("TELEGRAM_API_BASE_URL", "https://api.telegram.org")

	v.SetDefault("WITHDRAWAL_REFUND_LOOKBACK", "504h") // 21 days
	v.SetDefault("WITHDRAWAL_MIN_AMOUNT_STARS", 1)
	v.SetDefault("WITHDRAWAL_REMINDER_INTERVAL", "1h")
	v.SetDefault("WITHDRAWAL_REMINDER_AGE", "24h")
	v.SetDefault("WITHDRAWAL_MAX_PER_DAY", 3)

	v.SetDefault("RAFFLE_STARS_COMMISSION_PERCENT", 20)
	v.SetDefault("RAFFLE_RUB_COMMISSION_PERCENT", 15)

	v.SetDefault("RANDOM_ORG_API_URL", "https://api.random.org/json-rpc/4/invoke")

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_COLLECTOR_URL", "localhost:4317")
	v.SetDefault("TRACING_SAMPLE_RATE", 0.1)

	cfg := &Config{
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Server: ServerConfig{
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),

			RateLimitPerMinute:      v.GetInt("SERVER_RATE_LIMIT_PER_MINUTE"),
			AdminRateLimitPerMinute: v.GetInt("SERVER_ADMIN_RATE_LIMIT_PER_MINUTE"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Telegram: TelegramConfig{
			BotToken:    v.GetString("TELEGRAM_BOT_TOKEN"),
			APIBaseURL:  v.GetString("TELEGRAM_API_BASE_URL"),
			AdminChatID: v.GetInt64("TELEGRAM_ADMIN_CHAT_ID"),
		},
		Withdrawal: WithdrawalConfig{
			RefundLookback:   v.GetDuration("WITHDRAWAL_REFUND_LOOKBACK"),
			MinAmountStars:   v.GetInt64("WITHDRAWAL_MIN_AMOUNT_STARS"),
			ReminderInterval: v.GetDuration("WITHDRAWAL_REMINDER_INTERVAL"),
			ReminderAge:      v.GetDuration("WITHDRAWAL_REMINDER_AGE"),
			MaxPerDay:        v.GetInt64("WITHDRAWAL_MAX_PER_DAY"),
		},
		Raffle: RaffleConfig{
			StarsCommissionPercent: v.GetInt64("RAFFLE_STARS_COMMISSION_PERCENT"),
			RubCommissionPercent:   v.GetInt64("RAFFLE_RUB_COMMISSION_PERCENT"),
		},
		RandomOrg: RandomOrgConfig{
			APIKey: v.GetString("RANDOM_ORG_API_KEY"),
			APIURL: v.GetString("RANDOM_ORG_API_URL"),
		},
		Email: EmailConfig{
			SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
			FromEmail:      v.GetString("EMAIL_FROM_ADDRESS"),
			FromName:       v.GetString("EMAIL_FROM_NAME"),
			OperatorEmail:  v.GetString("EMAIL_OPERATOR_ADDRESS"),
		},
		Auth: AuthConfig{
			JWTSecret:         v.GetString("JWT_SECRET"),
			AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
			AdminTOTPSecret:   v.GetString("ADMIN_TOTP_SECRET"),
		},
		Tracing: TracingConfig{
			Enabled:      v.GetBool("TRACING_ENABLED"),
			CollectorURL: v.GetString("TRACING_COLLECTOR_URL"),
			SampleRate:   v.GetFloat64("TRACING_SAMPLE_RATE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

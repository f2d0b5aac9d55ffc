package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raffle-service/raffle_service/internal/api/routes"
	"github.com/raffle-service/raffle_service/internal/infrastructure/config"
	"github.com/raffle-service/raffle_service/internal/infrastructure/database"
	"github.com/raffle-service/raffle_service/internal/infrastructure/di"
	"github.com/raffle-service/raffle_service/internal/workers/payout_reminder"
	"github.com/raffle-service/raffle_service/pkg/logger"
	"github.com/raffle-service/raffle_service/pkg/tracing"
)

// Application represents the main application
type Application struct {
	cfg       *config.Config
	log       *logger.Logger
	server    *http.Server
	container *di.Container

	reminderWorker *payout_reminder.Worker

	tracingShutdown func(context.Context) error
}

// NewApplication creates a new application instance
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes the application
func (app *Application) Initialize() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.cfg = cfg

	log := logger.New(cfg.LogLevel, cfg.Environment)
	app.log = log

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := app.initializeTracing(); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	container, err := di.NewContainer(cfg, db, log)
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}
	app.container = container

	if err := app.initializeWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}

	app.initializeServer()
	return nil
}

// initializeTracing initializes OpenTelemetry tracing
func (app *Application) initializeTracing() error {
	shutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      app.cfg.Tracing.Enabled,
		CollectorURL: app.cfg.Tracing.CollectorURL,
		Environment:  app.cfg.Environment,
		SampleRate:   app.cfg.Tracing.SampleRate,
	}, app.log.Zap())
	if err != nil {
		return err
	}
	app.tracingShutdown = shutdown
	return nil
}

// initializeWorkers starts the background workers
func (app *Application) initializeWorkers() error {
	app.reminderWorker = payout_reminder.NewWorker(
		app.container.WithdrawalRepo,
		app.container.OperatorNotifier,
		app.cfg.Withdrawal.ReminderInterval,
		app.cfg.Withdrawal.ReminderAge,
		app.log,
	)
	if err := app.reminderWorker.Start(); err != nil {
		return fmt.Errorf("failed to start payout reminder worker: %w", err)
	}
	return nil
}

// initializeServer builds the HTTP server
func (app *Application) initializeServer() {
	if app.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := routes.SetupRoutes(app.container)

	app.server = &http.Server{
		Addr:           fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    app.cfg.Server.ReadTimeout,
		WriteTimeout:   app.cfg.Server.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

// Start starts the HTTP server
func (app *Application) Start() error {
	go func() {
		app.log.Info("starting server",
			"port", app.cfg.Server.Port,
			"environment", app.cfg.Environment,
		)
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.Error("server terminated unexpectedly", "error", err)
			os.Exit(1)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.log.Info("shutting down server")

	if app.reminderWorker != nil {
		app.reminderWorker.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if app.tracingShutdown != nil {
		if err := app.tracingShutdown(context.Background()); err != nil {
			app.log.Warn("error shutting down tracing", "error", err)
		}
	}

	if err := app.container.Close(); err != nil {
		app.log.Warn("error closing container resources", "error", err)
	}

	app.log.Info("server exited gracefully")
	return app.log.Sync()
}

// WaitForShutdown blocks until an interrupt signal arrives
func (app *Application) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

package main

import (
	"fmt"
	"os"

	"github.com/raffle-service/raffle_service/internal/app"
)

// @title Raffle Service API
// @version 1.0
// @description Telegram Stars raffle platform with a reconciled withdrawal ledger.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	application := app.NewApplication()

	if err := application.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := application.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start application: %v\n", err)
		os.Exit(1)
	}

	application.WaitForShutdown()

	if err := application.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shut down cleanly: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-broker-go/internal/config"
	"paper-broker-go/internal/database"
	"paper-broker-go/internal/engine"
	"paper-broker-go/internal/ledger"
	"paper-broker-go/internal/logger"
	"paper-broker-go/internal/quote"
	"paper-broker-go/internal/server"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	store := ledger.NewStore(db)
	seedAccounts(log, store, &cfg.Ledger)

	// Initialize the quote provider client
	quotes := quote.NewRestClient(&cfg.Quote, log)

	// Initialize the trading engine and its API host
	eng := engine.NewEngine(log, &cfg, quotes, store)
	api := server.NewAPIServer(cfg.Server.Port, eng, log)
	api.Start()

	// Wait for a shutdown signal
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Stop(ctx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	log.Info("Server has been shut down.")
}

// seedAccounts opens accounts for the configured demo users. Registration is
// otherwise the identity layer's job; existing accounts are left alone.
func seedAccounts(log *zap.Logger, store ledger.Store, cfg *config.Ledger) {
	if len(cfg.SeedUsers) == 0 {
		return
	}

	opening, err := decimal.NewFromString(cfg.OpeningBalance)
	if err != nil {
		log.Warn("Invalid opening balance, seeding accounts with zero cash",
			zap.String("opening_balance", cfg.OpeningBalance))
		opening = decimal.Zero
	}

	for _, user := range cfg.SeedUsers {
		_, err := store.CreateAccount(context.Background(), user, opening)
		if errors.Is(err, ledger.ErrAccountExists) {
			continue
		}
		if err != nil {
			log.Fatal("Failed to seed account", zap.String("user_id", user), zap.Error(err))
		}
		log.Info("Seeded account", zap.String("user_id", user), zap.String("cash", opening.String()))
	}
}

// Package main provides the API server entry point for the alert service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stealth-alerts/internal/adapter"
	"github.com/stealth-alerts/internal/api"
	"github.com/stealth-alerts/internal/bot"
	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/dedup"
	"github.com/stealth-alerts/internal/delivery"
	"github.com/stealth-alerts/internal/engine"
	"github.com/stealth-alerts/internal/enrich"
	"github.com/stealth-alerts/internal/logging"
	"github.com/stealth-alerts/internal/session"
	"github.com/stealth-alerts/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Load alert definitions
	defs, err := config.LoadDefinitions(cfg.Alerts.DefinitionsPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load alert definitions")
	}
	logger.WithField("count", len(defs)).Info("Alert definitions loaded")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	// The ClickHouse archive is best-effort; the pipeline runs without it.
	var clickhouse *storage.ClickHouseDB
	ch, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable, transaction archive disabled")
	} else {
		clickhouse = ch
		defer clickhouse.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := clickhouse.EnsureArchiveTable(ctx); err != nil {
			logger.WithError(err).Warn("Failed to ensure archive table")
		}
		cancel()
	}

	logger.Info("Database connections established")

	// Initialize repositories
	tokenRepo := storage.NewTokenRepository(postgres)
	deliveryRepo := storage.NewDeliveryRepository(postgres)

	// Initialize upstream clients
	candlestick := adapter.NewCandlestickClient(cfg.Provider)
	etherscan := adapter.NewEtherscanClient(cfg.Provider.EtherscanAPIKey)
	honeypot := adapter.NewHoneypotClient()
	goplus := adapter.NewGoPlusClient()

	sessionManager := session.NewManager(candlestick, redis, logger)

	// Enrichment coordinator; chain lookups need an RPC endpoint
	var coordinator *enrich.Coordinator
	if cfg.Provider.EthRPCURL != "" {
		chainClient, err := adapter.NewChainClient(cfg.Provider.EthRPCURL)
		if err != nil {
			logger.WithError(err).Warn("Chain RPC unavailable, contract metadata disabled")
			coordinator = enrich.NewCoordinator(etherscan, nil, honeypot, goplus, candlestick, logger)
		} else {
			coordinator = enrich.NewCoordinator(etherscan, chainClient, honeypot, goplus, candlestick, logger)
		}
	} else {
		logger.Warn("No chain RPC configured, contract metadata disabled")
		coordinator = enrich.NewCoordinator(etherscan, nil, honeypot, goplus, candlestick, logger)
	}

	// Initialize Telegram delivery
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Telegram bot")
	}
	dispatcher := delivery.NewDispatcher(botAPI, cfg.Delivery, cfg.Telegram, logger)

	// Assemble the pipeline
	opts := engine.Options{
		Definitions: defs,
		Session:     sessionManager,
		Provider:    candlestick,
		Enricher:    coordinator,
		Dispatcher:  dispatcher,
		Tokens:      tokenRepo,
		Deliveries:  deliveryRepo,
		Wallets:     redis,
		Claims:      dedup.NewRedisClaimer(redis.Client()),
		DedupTTL:    cfg.Alerts.DedupTTL,
		Logger:      logger,
	}
	if clickhouse != nil {
		opts.Archive = clickhouse
	}
	alertEngine := engine.New(opts)

	alertBot := bot.New(botAPI, alertEngine, logger)

	server := api.NewServer(cfg.Server, alertEngine, alertBot, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

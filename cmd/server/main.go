package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cipher-game/cipher-server/internal/auth"
	"github.com/cipher-game/cipher-server/internal/chat"
	"github.com/cipher-game/cipher-server/internal/config"
	"github.com/cipher-game/cipher-server/internal/handler"
	"github.com/cipher-game/cipher-server/internal/kafka"
	"github.com/cipher-game/cipher-server/internal/postgres"
	"github.com/cipher-game/cipher-server/internal/redis"
	"github.com/cipher-game/cipher-server/internal/service"
	"github.com/cipher-game/cipher-server/internal/websocket"
	"github.com/cipher-game/cipher-server/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis leaderboard cache
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	leaderboardCache, err := redis.NewCache(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer leaderboardCache.Close()
	logger.Info("connected to Redis")

	// Initialize chat components around the WebSocket hub
	registry := chat.NewRegistry(postgresRepo, logger)
	wsHub := websocket.NewHub(registry, logger)

	typingTracker := chat.NewTypingTracker(cfg.Chat.TypingTTL, wsHub)
	go typingTracker.Run(ctx)

	membership := chat.NewMembership(registry, typingTracker, wsHub, logger)
	cooldown := chat.NewCooldown(cfg.Chat.MessageCooldown)
	relay := chat.NewRelay(postgresRepo, wsHub, cooldown, typingTracker, cfg.Chat.MaxMessageLength, logger)

	wsHub.Attach(membership, relay, typingTracker)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize refresh worker and progression engine
	refreshWorker := worker.NewRefreshWorker(postgresRepo, leaderboardCache, &cfg.Refresh, logger)
	progression := service.NewProgressionEngine(postgresRepo, refreshWorker, cfg.Progression, logger)

	// Warm the leaderboard cache on startup
	logger.Info("warming leaderboard cache")
	refreshWorker.RunOnce(ctx)

	if cfg.Refresh.Enabled {
		if err := refreshWorker.Start(ctx); err != nil {
			logger.Error("failed to start refresh worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for high-load score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, progression, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	verifier := auth.NewVerifier(&cfg.Auth)
	httpHandler := handler.NewHandler(
		progression,
		relay,
		leaderboardCache,
		postgresRepo,
		wsHub,
		verifier,
		cfg.Chat,
		cfg.Refresh,
		logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop refresh worker
	if err := refreshWorker.Stop(); err != nil {
		logger.Error("failed to stop refresh worker", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}

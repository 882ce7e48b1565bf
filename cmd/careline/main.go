package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careline/careline/internal/api"
	"github.com/careline/careline/internal/config"
	"github.com/careline/careline/internal/genai"
	"github.com/careline/careline/internal/lookup"
	"github.com/careline/careline/internal/orchestrator"
	"github.com/careline/careline/internal/refdata"
	pgstore "github.com/careline/careline/internal/store"
	"github.com/careline/careline/internal/summarizer"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting CareLine...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/careline.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize model router
	router := genai.NewRouter(logger)
	for _, mc := range cfg.Models {
		modelCfg := genai.Config{
			ID: mc.ID, Type: mc.Type, Name: mc.Name,
			Endpoint: mc.Endpoint, APIKey: mc.APIKey, Model: mc.Model,
		}
		switch mc.Type {
		case "gemini":
			router.Register(genai.NewGeminiClient(modelCfg, logger))
		case "openai":
			router.Register(genai.NewOpenAIClient(modelCfg, logger))
		default:
			logger.Warn("unknown model type", zap.String("id", mc.ID), zap.String("type", mc.Type))
		}
	}

	// Initialize PostgreSQL store. Everything persists here: referrals,
	// records, summaries, decision cards, and the task ledger.
	store, err := pgstore.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("PostgreSQL unavailable", zap.Error(err))
	}
	if err := store.Migrate(context.Background(), cfg.MigrationsDir); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Reference data: provider directory, insurance networks, cost
	// tables, and patient charts.
	data := refdata.Default()

	// Lookup and synthesis services
	directory := lookup.NewDirectory(data, store, logger)
	records := lookup.NewRecords(data, store, store, logger)
	availability := lookup.NewAvailability(store, store, logger)
	cost := lookup.NewCost(data, store, logger)
	summaries := summarizer.NewService(router, store, store, store, logger)

	// Fan-out orchestrator
	orch := orchestrator.New(store, directory, records, availability, cost, summaries, store, store, logger)
	if cfg.Orchestrator.PhaseTimeoutSeconds > 0 {
		orch.SetPhaseTimeout(time.Duration(cfg.Orchestrator.PhaseTimeoutSeconds) * time.Second)
	}

	// Change-reaction loop, with Redis-backed notifications when available
	var notifier orchestrator.Notifier = orchestrator.NewLogNotifier(logger)
	var redisNotifier *orchestrator.RedisNotifier
	if cfg.Database.Redis.URL != "" {
		rn, nErr := orchestrator.NewRedisNotifier(cfg.Database.Redis.URL, logger)
		if nErr != nil {
			logger.Warn("Redis unavailable, notifications will only be logged", zap.Error(nErr))
		} else {
			redisNotifier = rn
			notifier = rn
		}
	}
	loop := orchestrator.NewLoop(store, store, summaries, notifier, store, logger)

	// Stream-backed event ingestion alongside HTTP
	var events *orchestrator.EventSource
	eventsCtx, cancelEvents := context.WithCancel(context.Background())
	defer cancelEvents()
	if cfg.Database.Redis.URL != "" {
		es, esErr := orchestrator.NewEventSource(cfg.Database.Redis.URL, orch, loop, logger)
		if esErr != nil {
			logger.Warn("Redis unavailable, event streams disabled", zap.Error(esErr))
		} else {
			events = es
			go events.Run(eventsCtx)
			logger.Info("Event stream consumer started")
		}
	}

	// Build HTTP handler
	handler := api.NewHandler(store, store, store, orch, loop, availability, directory, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("CareLine listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down CareLine...")
	cancelEvents()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if events != nil {
		events.Close()
	}
	if redisNotifier != nil {
		redisNotifier.Close()
	}
	store.Close()
}

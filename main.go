package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/api"
	"ultra-signal-engine/internal/cache"
	"ultra-signal-engine/internal/database"
	"ultra-signal-engine/internal/events"
	"ultra-signal-engine/internal/ingest"
	"ultra-signal-engine/internal/intel"
	"ultra-signal-engine/internal/lifecycle"
	"ultra-signal-engine/internal/logging"
	"ultra-signal-engine/internal/market"
	"ultra-signal-engine/internal/notification"
	"ultra-signal-engine/internal/patterns"
	"ultra-signal-engine/internal/pipeline"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewBus()

	// Cache store: Redis when configured, in-memory otherwise. The Redis
	// store degrades rather than failing when the server is unreachable.
	var store cache.Store
	if cfg.RedisConfig.Enabled {
		redisStore, err := cache.NewRedisStore(cfg.RedisConfig)
		if err != nil {
			log.Fatalf("Failed to initialize redis store: %v", err)
		}
		store = redisStore
		logger.Info("Redis cache store initialized", "address", cfg.RedisConfig.Address)
	} else {
		memStore := cache.NewMemoryStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					memStore.CleanupExpired()
				}
			}
		}()
		store = memStore
		logger.Info("In-memory cache store initialized")
	}
	defer store.Close()

	var intelProvider *intel.Provider
	if cfg.IntelConfig.Enabled {
		intelProvider = intel.NewProvider(cfg.IntelConfig, store)
		go intelProvider.Run(ctx)
		logger.Info("Market intelligence provider started")
	}

	// Signal history is optional; the pipeline skips the channel when no
	// database is wired
	var repo *database.Repository
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(cfg.DatabaseConfig)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		migrateCtx, migrateCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := db.RunMigrations(migrateCtx); err != nil {
			migrateCancel()
			log.Fatalf("Failed to run migrations: %v", err)
		}
		migrateCancel()
		repo = database.NewRepository(db)
		logger.Info("Signal history database initialized")
	}

	var notifier *notification.Manager
	if cfg.NotificationConfig.Enabled {
		notifier = notification.NewManager(cfg.NotificationConfig)
		logger.Info("Notification manager initialized",
			"telegram", cfg.NotificationConfig.Telegram.Enabled,
			"discord", cfg.NotificationConfig.Discord.Enabled)
	}

	lifecycleLog := zerolog.New(os.Stdout).With().Timestamp().Str("component", "lifecycle").Logger()
	buffer := lifecycle.NewBuffer(lifecycleLog)
	sweepInterval := time.Duration(cfg.LifecycleConfig.SweepInterval) * time.Second
	go buffer.Run(ctx, sweepInterval)

	deps := pipeline.Deps{
		Engine: market.NewEngine(market.EngineConfig{
			RSIPeriod:   cfg.AnalyzerConfig.RSIPeriod,
			ATRPeriod:   cfg.AnalyzerConfig.ATRPeriod,
			StochPeriod: 14,
			BBPeriod:    20,
			ADXPeriod:   14,
		}),
		Patterns: patterns.NewDetector(0),
		Waves:    patterns.NewWaveDetector(0),
		Intel:    intelProvider,
		Book:     ingest.NewBook(cfg.IngestConfig.MaxSignalAge),
		Buffer:   buffer,
		Changes: lifecycle.NewChangeDetector(
			cfg.LifecycleConfig.ConfidenceThreshold,
			cfg.LifecycleConfig.PriceThresholdPct,
		),
		Bus:      eventBus,
		Repo:     repo,
		Notifier: notifier,
	}
	pipe := pipeline.New(cfg, deps)

	server := api.NewServer(cfg.ServerConfig, cfg.IngestConfig.WebhookEnabled, api.Deps{
		Pipeline: pipe,
		Book:     deps.Book,
		Buffer:   buffer,
		Repo:     repo,
		Intel:    intelProvider,
		Bus:      eventBus,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}
	if db != nil {
		db.Close()
	}

	logger.Info("Shutdown complete")
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/voicehire-team/voicehire/internal/adapter/handler"
	"github.com/voicehire-team/voicehire/internal/adapter/repository"
	"github.com/voicehire-team/voicehire/internal/infrastructure/cache"
	"github.com/voicehire-team/voicehire/internal/infrastructure/database"
	"github.com/voicehire-team/voicehire/internal/infrastructure/external/speech"
	"github.com/voicehire-team/voicehire/internal/infrastructure/media"
	"github.com/voicehire-team/voicehire/internal/infrastructure/storage"
	meetingUsecase "github.com/voicehire-team/voicehire/internal/usecase/meeting"
	"github.com/voicehire-team/voicehire/internal/usecase/postprocess"
	"github.com/voicehire-team/voicehire/internal/usecase/relay"
	"github.com/voicehire-team/voicehire/pkg/config"
	pkgvalidator "github.com/voicehire-team/voicehire/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
	}))

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Run AutoMigrate only when explicitly enabled in config.
	// Production deployments should manage schema via sql-migrate.
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		log.Println("🔄 Running GORM AutoMigrate (development only) ...")
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run AutoMigrate: %v", err)
		}
	} else {
		log.Println("🔄 Skipping GORM AutoMigrate; use sql-migrate for schema migrations in CI/CD/production")
	}

	// Initialize token cache (Redis with in-memory fallback)
	var store cache.Store
	if cfg.Redis.Enabled {
		log.Println("📦 Connecting to Redis...")
		redisStore, err := cache.NewRedisStore(cfg)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, falling back to in-memory cache: %v", err)
			store = cache.NewMemoryStore()
		} else {
			defer redisStore.Close()
			store = redisStore
		}
	} else {
		log.Println("📦 Redis disabled, using in-memory cache")
		store = cache.NewMemoryStore()
	}

	// Initialize object storage
	log.Println("🪣 Connecting to MinIO...")
	minioClient, err := storage.NewMinIOClient(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	meetingRepo := repository.NewMeetingRepository(db)
	audioRepo := repository.NewAudioObjectRepository(db)

	// Initialize meeting service
	meetingService := meetingUsecase.NewService(meetingRepo, store, logger)

	// Initialize media encoder
	encoder := media.NewEncoder(&cfg.Media)
	if err := encoder.CheckBinary(); err != nil {
		log.Printf("⚠️  %v, post-processing will fail until ffmpeg is installed", err)
	}

	// Initialize merge pipeline
	log.Println("🎛️  Initializing merge pipeline...")
	processor := postprocess.NewProcessor(audioRepo, minioClient, encoder, logger, "")
	scheduler := postprocess.NewScheduler(processor, logger)

	// Initialize relay components
	log.Println("🔊 Initializing relay...")
	registry := relay.NewConnectionRegistry(logger)
	persister := relay.NewChunkPersister(minioClient, audioRepo, logger, cfg.Relay.MaxConcurrentSaves, cfg.Relay.SaveTimeout)
	speechClient := speech.NewClient(&cfg.Speech)

	// Initialize call handler
	callHandler := handler.NewCallHandler(meetingService, speechClient, registry, persister, scheduler, logger)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(cfg, callHandler)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	// Drain in-flight chunk saves and merge jobs before the process exits
	log.Println("⏳ Draining background work...")
	persister.Wait()
	scheduler.Wait()

	log.Println("✅ Server stopped gracefully")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"bestiary-server/internal/authutils"
	"bestiary-server/internal/config"
	"bestiary-server/internal/database"
	"bestiary-server/internal/handler"
	"bestiary-server/internal/logger"
	"bestiary-server/internal/messaging"
	"bestiary-server/internal/middleware"
	"bestiary-server/internal/ratelimit"
	"bestiary-server/internal/repository"
	"bestiary-server/internal/service"
	"bestiary-server/internal/storage"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("Logger initialized", zap.String("level", cfg.Logger.Level), zap.String("env", cfg.AppEnv))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- External connections ---
	pool, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(pool, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	assetStore, err := storage.NewMinioAssetStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize asset store", zap.Error(err))
	}

	var orphans service.OrphanReporter
	if cfg.RabbitMQ.URL != "" {
		mqConn, err := messaging.Connect(ctx, cfg.RabbitMQ.URL, 20, 3*time.Second, log.Named("RabbitMQ"))
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer closeRabbitMQ(mqConn, log)

		publisher, err := messaging.NewOrphanPublisher(mqConn, cfg.RabbitMQ.OrphanQueue, log)
		if err != nil {
			log.Fatal("Failed to create orphan publisher", zap.Error(err))
		}
		defer func() { _ = publisher.Close() }()
		orphans = publisher
	} else {
		log.Info("RABBITMQ_URL is empty, orphaned illustrations are deleted inline")
		orphans = service.NewInlineOrphanCleaner(assetStore, cfg.Pipeline.OrphanTimeout, log)
	}

	var limiter service.GenerationLimiter
	if cfg.Redis.GenerationRateLimit > 0 {
		redisClient, err := setupRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()

		fixedWindow, err := ratelimit.NewFixedWindowLimiter(redisClient, "", cfg.Redis.GenerationRateLimit, cfg.Redis.GenerationRateWindow)
		if err != nil {
			log.Fatal("Failed to create generation limiter", zap.Error(err))
		}
		limiter = fixedWindow
		log.Info("Generation rate limit enabled",
			zap.Int("limit", cfg.Redis.GenerationRateLimit), zap.Duration("window", cfg.Redis.GenerationRateWindow))
	}

	// --- Dependency injection ---
	textGenerator, err := service.NewTextGenerator(cfg.AI, log)
	if err != nil {
		log.Fatal("Failed to create text generator", zap.Error(err))
	}
	imageGenerator := service.NewImageGenerator(cfg.AI, log)
	fetcher := service.NewHTTPImageFetcher(cfg.AI.Timeout, cfg.Pipeline.FetchMaxBytes)

	monsterRepo := repository.NewPgMonsterRepository(pool, log)
	pipeline := service.NewPipeline(
		service.NewCreatureSynthesizer(textGenerator, cfg.AI, log),
		service.NewIllustrationSynthesizer(imageGenerator, fetcher, cfg.AI.ImageSize, log),
		service.NewAssetIngestor(assetStore, cfg.Storage.Folder, log),
		monsterRepo,
		orphans,
		service.TimeoutsFromConfig(cfg.Pipeline),
		log,
	)
	monsterService := service.NewMonsterService(pipeline, monsterRepo, limiter, service.NewBriefPolicy(cfg.BriefRules), log)

	verifier, err := authutils.NewJWTVerifier(cfg.Auth.JWTSecret, log)
	if err != nil {
		log.Fatal("Failed to create JWT verifier", zap.Error(err))
	}
	monsterHandler := handler.NewMonsterHandler(monsterService, verifier, log)

	// --- HTTP server (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.AppEnv == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ZapLoggingMiddlewareForGin(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.GetAllowedOrigins()
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	monsterHandler.RegisterRoutes(router)

	// Метрики HTTP подключаются после регистрации маршрутов
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	// WriteTimeout покрывает все стадии конвейера
	writeTimeout := cfg.Pipeline.SynthesizeTimeout + cfg.Pipeline.IllustrateTimeout +
		cfg.Pipeline.IngestTimeout + cfg.Pipeline.PersistTimeout + 30*time.Second
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exiting")
}

// setupRedis создает клиента Redis и ждет, пока сервер ответит на PING.
func setupRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	const maxRetries = 10
	retryDelay := 3 * time.Second
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		pingCancel()
		if lastErr == nil {
			log.Info("Connected to Redis", zap.String("addr", cfg.Addr), zap.Int("attempt", attempt))
			return client, nil
		}
		log.Warn("Redis ping failed, retrying", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries), zap.Error(lastErr))

		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, lastErr)
}

func closeRabbitMQ(conn *amqp091.Connection, log *zap.Logger) {
	if err := conn.Close(); err != nil {
		log.Warn("Failed to close RabbitMQ connection", zap.Error(err))
	}
}

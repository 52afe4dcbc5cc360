package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/82deutschmark/Disavowed/internal/ai"
	"github.com/82deutschmark/Disavowed/internal/config"
	"github.com/82deutschmark/Disavowed/internal/database"
	"github.com/82deutschmark/Disavowed/internal/handler"
	"github.com/82deutschmark/Disavowed/internal/logger"
	"github.com/82deutschmark/Disavowed/internal/messaging"
	"github.com/82deutschmark/Disavowed/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

const (
	connectMaxRetries = 5
	connectRetryDelay = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: "json"})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(appLogger)
	defer appLogger.Sync()

	ctx := context.Background()

	pool, err := database.NewPgxPool(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if err := database.ApplyMigrations(pool); err != nil {
		appLogger.Fatal("Failed to apply database migrations", zap.Error(err))
	}

	redisClient, err := setupRedis(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	mqConn, err := connectRabbitMQ(cfg.RabbitMQURL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()

	publisher, err := messaging.NewRabbitMQEventPublisher(mqConn, cfg.MissionEventsQueue, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create event publisher", zap.Error(err))
	}

	textGenerator, err := ai.NewTextGenerator(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create AI client", zap.Error(err))
	}
	generator := ai.NewGenerator(textGenerator, cfg, appLogger)

	missionService := service.NewMissionService(
		pool,
		database.NewTxManager(pool, appLogger),
		database.NewPgMissionRepository(appLogger),
		database.NewPgStoryNodeRepository(appLogger),
		database.NewPgWalletRepository(appLogger),
		database.NewPgCharacterRepository(pool, appLogger),
		database.NewRedisBalanceCache(redisClient, database.DefaultBalanceTTL, appLogger),
		generator,
		publisher,
		appLogger,
	)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(handler.RequestLogger(appLogger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Health Check Endpoint. Registered before the metrics middleware so
	// probes stay out of the request metrics.
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/healthz", healthHandler)
	router.HEAD("/healthz", healthHandler)

	p := ginprometheus.NewPrometheus("gin")
	// Metric labels use the route template, not the raw path with embedded ids.
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.FullPath()
	}
	p.Use(router)

	handler.NewMissionHandler(missionService, appLogger).RegisterRoutes(router)

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting mission server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	appLogger.Info("Server exited")
}

// setupRedis initializes the Redis client with retry logic.
func setupRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	logger.Info("Attempting to connect to Redis",
		zap.String("address", redisOpts.Addr),
		zap.Int("db", redisOpts.DB),
		zap.Int("max_retries", connectMaxRetries),
		zap.Duration("retry_delay", connectRetryDelay))

	var client *redis.Client
	var lastErr error
	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		client = redis.NewClient(redisOpts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := client.Ping(pingCtx).Result()
		cancel()
		if err == nil {
			logger.Info("Successfully connected and pinged Redis", zap.Int("attempt", attempt))
			return client, nil
		}

		client.Close()
		lastErr = fmt.Errorf("unable to ping redis (attempt %d/%d): %w", attempt, connectMaxRetries, err)
		logger.Warn("Redis ping failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", connectMaxRetries),
			zap.Error(err))
		if attempt < connectMaxRetries {
			time.Sleep(connectRetryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", connectMaxRetries, lastErr)
}

// connectRabbitMQ dials the broker with retry logic and installs a close
// listener that logs unexpected connection loss.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp091.Connection, error) {
	var conn *amqp091.Connection
	var err error
	logger.Info("Attempting to connect to RabbitMQ",
		zap.String("url", maskRabbitMQURL(url)),
		zap.Int("max_retries", connectMaxRetries),
		zap.Duration("retry_delay", connectRetryDelay))

	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		conn, err = amqp091.Dial(url)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ", zap.Int("attempt", attempt))
			go func() {
				notifyClose := make(chan *amqp091.Error)
				conn.NotifyClose(notifyClose)
				if closeErr := <-notifyClose; closeErr != nil {
					logger.Error("RabbitMQ connection closed unexpectedly", zap.Error(closeErr))
				} else {
					logger.Info("RabbitMQ connection closed gracefully")
				}
			}()
			return conn, nil
		}
		logger.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", connectMaxRetries),
			zap.Error(err))
		if attempt < connectMaxRetries {
			time.Sleep(connectRetryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", connectMaxRetries, err)
}

// maskRabbitMQURL hides the credential part of an AMQP URL for logging.
func maskRabbitMQURL(urlStr string) string {
	atIndex := strings.Index(urlStr, "@")
	schemeEnd := strings.Index(urlStr, "://")
	if atIndex == -1 || schemeEnd == -1 || atIndex < schemeEnd+3 {
		return urlStr
	}
	return urlStr[:schemeEnd+3] + "****:****@" + urlStr[atIndex+1:]
}

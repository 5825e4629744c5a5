package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"catalog-import-service/internal/config"
	"catalog-import-service/internal/events"
	"catalog-import-service/internal/handlers"
	"catalog-import-service/internal/metrics"
	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"
	"catalog-import-service/internal/sources"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/security"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

const serviceName = "catalog-import-service"

// @title Catalog Import API
// @version 1.0.0
// @description Imports products and variations from Google Sheets, Airtable, S3 and file uploads into the tenant catalog

// @contact.name Catalog Import API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8095
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (using localhost)", err)
		redisOpts = &redis.Options{Addr: "localhost:6379"}
	}
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (imports will be refused and /ready reports not ready until Redis is reachable)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	catalogRepo := repository.NewCatalogRepository(db, redisClient)
	settingsRepo := repository.NewSettingsRepository(db, newCredentialsEncryptor(cfg))
	statusStore := repository.NewStatusStore(redisClient, cfg.StatusTTL, cfg.LockTTL)

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	var s3Client *s3.Client
	if cfg.AWSRegion != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		cancel()
		if err != nil {
			log.Printf("WARNING: Failed to load AWS config: %v (S3 source disabled)", err)
		} else {
			s3Client = s3.NewFromConfig(awsCfg)
			log.Println("✓ S3 client initialized")
		}
	} else {
		log.Println("AWS_REGION not set, S3 source disabled")
	}

	sourceFactory := sources.NewFactory(sources.FactoryConfig{
		AirtableAPIURL:    cfg.AirtableAPIURL,
		AirtableRateLimit: cfg.AirtableRateLimit,
		MaxRows:           cfg.MaxImportRows,
	}, s3Client, logrus.NewEntry(logger))

	registry := metrics.NewRegistry()
	log.Println("✓ Prometheus metrics initialized")

	importService := services.NewImportService(
		settingsRepo,
		statusStore,
		catalogRepo,
		sourceFactory,
		publisher,
		registry,
		services.Options{
			ConflictPolicy: cfg.ConflictPolicy,
			MaxRows:        cfg.MaxImportRows,
		},
		logger,
	)
	importHandler := handlers.NewImportHandler(importService, cfg.MaxUploadBytes, cfg.RunTimeout, logger)

	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig(serviceName))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig(serviceName))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gosharedmw.RequestIDMiddleware())
	router.Use(registry.Middleware())
	router.Use(tracing.GinMiddleware(serviceName))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database handle:", err)
	}
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck(map[string]handlers.Pinger{
		"database": sqlDB.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}))
	router.GET("/metrics", gin.WrapH(registry.Handler()))

	api := router.Group("/api/v1")
	if cfg.Environment == "development" {
		api.Use(middleware.DevelopmentAuthMiddleware())
	} else {
		api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	}
	api.Use(middleware.TenantMiddleware())
	importHandler.RegisterRoutes(api)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog import service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down catalog-import-service...")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	log.Println("Catalog import service stopped")
}

// newCredentialsEncryptor loads the key for stored source credentials.
// Without a key, credentials are stored as given.
func newCredentialsEncryptor(cfg *config.Config) *security.PIIEncryptor {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	encryptor, err := config.LoadCredentialsEncryptor(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize credentials encryption:", err)
	}
	if encryptor == nil {
		log.Println("WARNING: CREDENTIALS_KEY not set, source credentials are stored unencrypted")
		return nil
	}
	log.Println("✓ Credentials encryption enabled")
	return encryptor
}

// newPublisher picks the event backend; failures fall back to dropping events
func newPublisher(cfg *config.Config, logger *logrus.Logger) events.Publisher {
	switch cfg.EventsBackend {
	case "kafka":
		log.Printf("✓ Kafka events publisher initialized (topic %s)", cfg.KafkaTopic)
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	case "nats":
		if cfg.NATSURL == "" {
			log.Println("NATS_URL not set, skipping event publishing initialization")
			return events.NoopPublisher{}
		}
		publisher, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
			return events.NoopPublisher{}
		}
		log.Println("✓ Events publisher initialized (NATS connected)")
		return publisher
	}
	return events.NoopPublisher{}
}

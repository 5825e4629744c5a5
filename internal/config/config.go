package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/sources"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// Server
	Port           string
	Environment    string
	AllowedOrigins []string

	// Auth
	JWTSecret string

	// Credentials encryption: a base64 key, or a Secret Manager secret
	CredentialsKey       string
	GCPProjectID         string
	CredentialsKeySecret string

	// Events
	EventsBackend string // nats, kafka or none
	NATSURL       string
	KafkaBrokers  []string
	KafkaTopic    string

	// Sources
	AWSRegion         string
	AirtableAPIURL    string
	AirtableRateLimit float64

	// Import
	ConflictPolicy importer.ConflictPolicy
	StatusTTL      time.Duration
	LockTTL        time.Duration
	RunTimeout     time.Duration
	MaxImportRows  int
	MaxUploadBytes int64
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	policy, err := importer.ParseConflictPolicy(getEnv("IMPORT_CONFLICT_POLICY", string(importer.ConflictReject)))
	if err != nil {
		return nil, err
	}
	statusTTL, err := time.ParseDuration(getEnv("IMPORT_STATUS_TTL", "300s"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMPORT_STATUS_TTL: %w", err)
	}
	lockTTL, err := time.ParseDuration(getEnv("IMPORT_LOCK_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMPORT_LOCK_TTL: %w", err)
	}
	runTimeout, err := time.ParseDuration(getEnv("IMPORT_RUN_TIMEOUT", "25m"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMPORT_RUN_TIMEOUT: %w", err)
	}
	rateLimit, err := strconv.ParseFloat(getEnv("AIRTABLE_RATE_LIMIT", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AIRTABLE_RATE_LIMIT: %w", err)
	}
	maxRows, err := strconv.Atoi(getEnv("MAX_IMPORT_ROWS", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_IMPORT_ROWS: %w", err)
	}
	maxUploadMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}

	backend := strings.ToLower(getEnv("EVENTS_BACKEND", "nats"))
	switch backend {
	case "nats", "kafka", "none":
	default:
		return nil, fmt.Errorf("invalid EVENTS_BACKEND %q, use nats, kafka or none", backend)
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "catalog_import_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port:           getEnv("PORT", "8095"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		CredentialsKey:       os.Getenv("CREDENTIALS_KEY"),
		GCPProjectID:         os.Getenv("GCP_PROJECT_ID"),
		CredentialsKeySecret: getEnv("CREDENTIALS_KEY_SECRET", "catalog-import-credentials-key"),

		EventsBackend: backend,
		NATSURL:       os.Getenv("NATS_URL"),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "catalog-import-events"),

		AWSRegion:         os.Getenv("AWS_REGION"),
		AirtableAPIURL:    getEnv("AIRTABLE_API_URL", sources.DefaultAirtableAPIURL),
		AirtableRateLimit: rateLimit,

		ConflictPolicy: policy,
		StatusTTL:      statusTTL,
		LockTTL:        lockTTL,
		RunTimeout:     runTimeout,
		MaxImportRows:  maxRows,
		MaxUploadBytes: int64(maxUploadMB) << 20,
	}, nil
}

// DSN returns the Postgres connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.ImportSettings{},
		&models.ImportRun{},
	); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.Printf("Note: Migration constraint warning (safe to ignore): %v", err)
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

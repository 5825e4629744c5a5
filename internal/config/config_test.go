package config

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/sources"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, importer.ConflictReject, cfg.ConflictPolicy)
	assert.Equal(t, 300*time.Second, cfg.StatusTTL)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "nats", cfg.EventsBackend)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5.0, cfg.AirtableRateLimit)
	assert.Equal(t, sources.DefaultAirtableAPIURL, cfg.AirtableAPIURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("IMPORT_CONFLICT_POLICY", "convert")
	t.Setenv("IMPORT_STATUS_TTL", "1m")
	t.Setenv("EVENTS_BACKEND", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MAX_UPLOAD_MB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, importer.ConflictConvert, cfg.ConflictPolicy)
	assert.Equal(t, time.Minute, cfg.StatusTTL)
	assert.Equal(t, "kafka", cfg.EventsBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"IMPORT_CONFLICT_POLICY": "overwrite",
		"IMPORT_STATUS_TTL":      "soon",
		"EVENTS_BACKEND":         "rabbitmq",
		"DB_PORT":                "postgres",
		"MAX_IMPORT_ROWS":        "many",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5433, DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=require", cfg.DSN())
}

func TestLoadCredentialsEncryptor(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		encryptor, err := LoadCredentialsEncryptor(ctx, &Config{})
		require.NoError(t, err)
		assert.Nil(t, encryptor)
	})

	t.Run("base64 key", func(t *testing.T) {
		key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
		encryptor, err := LoadCredentialsEncryptor(ctx, &Config{CredentialsKey: key + "\n"})
		require.NoError(t, err)
		require.NotNil(t, encryptor)

		sealed, err := encryptor.Encrypt("pat-123")
		require.NoError(t, err)
		plain, err := encryptor.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, "pat-123", plain)
	})

	t.Run("short key", func(t *testing.T) {
		key := base64.StdEncoding.EncodeToString([]byte("too-short"))
		_, err := LoadCredentialsEncryptor(ctx, &Config{CredentialsKey: key})
		assert.Error(t, err)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := LoadCredentialsEncryptor(ctx, &Config{CredentialsKey: "%%%"})
		assert.Error(t, err)
	})
}

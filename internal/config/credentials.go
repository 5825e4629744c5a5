package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/security"
)

// LoadCredentialsEncryptor builds the encryptor for stored source credentials.
// The base64 key comes from CREDENTIALS_KEY, or from GCP Secret Manager when
// GCP_PROJECT_ID is set. It returns nil when neither is configured.
func LoadCredentialsEncryptor(ctx context.Context, cfg *Config) (*security.PIIEncryptor, error) {
	key := cfg.CredentialsKey
	if key == "" && cfg.GCPProjectID != "" {
		client, err := secrets.NewGCPSecretManagerClient(ctx, secrets.GCPSecretManagerConfig{
			ProjectID: cfg.GCPProjectID,
		})
		if err != nil {
			return nil, err
		}
		defer client.Close()

		key, err = client.GetSecret(ctx, cfg.CredentialsKeySecret)
		if err != nil {
			return nil, fmt.Errorf("failed to load credentials key: %w", err)
		}
	}
	if key == "" {
		return nil, nil
	}

	encryptor, err := security.NewPIIEncryptorFromBase64(strings.TrimSpace(key))
	if err != nil {
		return nil, fmt.Errorf("invalid credentials key: %w", err)
	}
	return encryptor, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Tesseract-Nexus/go-shared/security"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-import-service/internal/models"
)

// sealedPrefix marks credentials encrypted before storage
const sealedPrefix = "enc:v1:"

// SettingsRepository stores per-tenant import settings and run history.
// With an encryptor, source credentials are sealed at rest.
type SettingsRepository struct {
	db        *gorm.DB
	encryptor *security.PIIEncryptor
}

func NewSettingsRepository(db *gorm.DB, encryptor *security.PIIEncryptor) *SettingsRepository {
	return &SettingsRepository{db: db, encryptor: encryptor}
}

// GetSettings returns the tenant's settings, or an unsaved empty value when
// none exist yet
func (r *SettingsRepository) GetSettings(ctx context.Context, tenantID string) (*models.ImportSettings, error) {
	var settings models.ImportSettings
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ImportSettings{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.openCredentials(&settings); err != nil {
		return nil, fmt.Errorf("failed to read credentials of tenant %s: %w", tenantID, err)
	}
	return &settings, nil
}

// SaveSettings stores a sealed copy; settings keeps its plaintext credentials
func (r *SettingsRepository) SaveSettings(ctx context.Context, settings *models.ImportSettings) error {
	stored := *settings
	if err := r.sealCredentials(&stored); err != nil {
		return err
	}

	var err error
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
		err = r.db.WithContext(ctx).Create(&stored).Error
	} else {
		err = r.db.WithContext(ctx).Save(&stored).Error
	}
	if err != nil {
		return err
	}
	settings.ID = stored.ID
	settings.CreatedAt = stored.CreatedAt
	settings.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *SettingsRepository) sealCredentials(settings *models.ImportSettings) error {
	if r.encryptor == nil {
		return nil
	}
	for _, field := range []**string{&settings.GoogleKeyJSON, &settings.AirtableToken} {
		if *field == nil || **field == "" {
			continue
		}
		sealed, err := sealCredential(r.encryptor, **field)
		if err != nil {
			return fmt.Errorf("failed to seal credentials: %w", err)
		}
		*field = &sealed
	}
	return nil
}

// openCredentials decrypts sealed values; values stored before encryption
// was enabled are kept as they are
func (r *SettingsRepository) openCredentials(settings *models.ImportSettings) error {
	for _, field := range []**string{&settings.GoogleKeyJSON, &settings.AirtableToken} {
		if *field == nil || !isSealed(**field) {
			continue
		}
		if r.encryptor == nil {
			return errors.New("credentials are sealed but no credentials key is configured")
		}
		plain, err := r.encryptor.Decrypt(strings.TrimPrefix(**field, sealedPrefix))
		if err != nil {
			return err
		}
		*field = &plain
	}
	return nil
}

func sealCredential(encryptor *security.PIIEncryptor, value string) (string, error) {
	if isSealed(value) {
		return value, nil
	}
	sealed, err := encryptor.Encrypt(value)
	if err != nil {
		return "", err
	}
	return sealedPrefix + sealed, nil
}

func isSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

func (r *SettingsRepository) CreateRun(ctx context.Context, run *models.ImportRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// ListRuns returns the tenant's runs, newest first
func (r *SettingsRepository) ListRuns(ctx context.Context, tenantID string, page, limit int) ([]models.ImportRun, int64, error) {
	var runs []models.ImportRun
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ImportRun{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("started_at DESC").Offset(offset).Limit(limit).Find(&runs).Error
	return runs, total, err
}

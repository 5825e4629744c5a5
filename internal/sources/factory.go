package sources

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/clients"
	"catalog-import-service/internal/models"
)

// FactoryConfig holds the service-wide settings of the remote sources
type FactoryConfig struct {
	AirtableAPIURL    string
	AirtableRateLimit float64
	MaxRows           int
}

// Factory builds sources from a tenant's stored settings
type Factory struct {
	cfg      FactoryConfig
	s3Client S3API
	logger   *logrus.Entry
}

func NewFactory(cfg FactoryConfig, s3Client *s3.Client, logger *logrus.Entry) *Factory {
	f := &Factory{cfg: cfg, logger: logger.WithField("component", "sources")}
	if s3Client != nil {
		f.s3Client = s3Client
	}
	return f
}

// FromSettings returns the adapter for source configured by settings. File
// uploads are not built here; they arrive through NewFileSource.
func (f *Factory) FromSettings(ctx context.Context, settings *models.ImportSettings, source models.SourceType) (Source, error) {
	if source == "" {
		source = settings.SelectedSource
	}
	switch source {
	case models.SourceGoogleSheets:
		key := stringValue(settings.GoogleKeyJSON)
		spreadsheetID := stringValue(settings.SpreadsheetID)
		if key == "" || spreadsheetID == "" {
			return nil, fmt.Errorf("%w: Google Sheets needs a service account key and a spreadsheet ID", ErrNotConfigured)
		}
		return NewGoogleSheetsSource(GoogleSheetsConfig{
			CredentialsJSON: []byte(key),
			SpreadsheetID:   spreadsheetID,
			SheetName:       stringValue(settings.SheetName),
			Headers:         settings.HeadersFor(models.SourceGoogleSheets),
		}), nil
	case models.SourceAirtable:
		token := stringValue(settings.AirtableToken)
		baseID := stringValue(settings.AirtableBaseID)
		table := stringValue(settings.AirtableTable)
		if token == "" || baseID == "" || table == "" {
			return nil, fmt.Errorf("%w: Airtable needs an access token, a base ID and a table", ErrNotConfigured)
		}
		client := clients.NewHTTPClient(f.cfg.AirtableRateLimit, clients.DefaultRetryPolicy())
		return NewAirtableSource(AirtableConfig{
			BaseURL: f.cfg.AirtableAPIURL,
			Token:   token,
			BaseID:  baseID,
			Table:   table,
			Logger:  f.logger,
		}, client), nil
	case models.SourceS3:
		bucket := stringValue(settings.S3Bucket)
		key := stringValue(settings.S3Key)
		if bucket == "" || key == "" {
			return nil, fmt.Errorf("%w: S3 needs a bucket and an object key", ErrNotConfigured)
		}
		if f.s3Client == nil {
			return nil, fmt.Errorf("%w: S3 client is not initialized", ErrNotConfigured)
		}
		return NewS3Source(f.s3Client, bucket, key, f.cfg.MaxRows), nil
	case models.SourceFile:
		return nil, fmt.Errorf("%w: file imports are uploaded directly", ErrNotConfigured)
	}
	return nil, fmt.Errorf("%w: unknown source %q", ErrNotConfigured, source)
}

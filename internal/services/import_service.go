package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/tracing"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"catalog-import-service/internal/catalog"
	"catalog-import-service/internal/events"
	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/metrics"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/sources"
)

var (
	// ErrImportInProgress is returned when the tenant already has a running import
	ErrImportInProgress = errors.New("an import is already running for this tenant")
	// ErrInvalidSettings wraps validation failures of settings updates
	ErrInvalidSettings = errors.New("invalid import settings")
	// ErrInvalidUpload wraps unreadable or oversized upload files
	ErrInvalidUpload = errors.New("invalid import file")
)

// SettingsStore persists settings and run history
type SettingsStore interface {
	GetSettings(ctx context.Context, tenantID string) (*models.ImportSettings, error)
	SaveSettings(ctx context.Context, settings *models.ImportSettings) error
	CreateRun(ctx context.Context, run *models.ImportRun) error
	ListRuns(ctx context.Context, tenantID string, page, limit int) ([]models.ImportRun, int64, error)
}

// StatusTracker keeps the latest result and the per-tenant run lock
type StatusTracker interface {
	SetStatus(ctx context.Context, tenantID string, result models.ImportResult) error
	GetStatus(ctx context.Context, tenantID string) (*models.ImportResult, error)
	ClearStatus(ctx context.Context, tenantID string) error
	AcquireLock(ctx context.Context, tenantID, owner string) (bool, error)
	ReleaseLock(ctx context.Context, tenantID, owner string) error
}

// CatalogProvider hands out tenant-scoped catalog ports
type CatalogProvider interface {
	ForTenant(tenantID string) catalog.Port
}

// SourceProvider builds a source from stored settings
type SourceProvider interface {
	FromSettings(ctx context.Context, settings *models.ImportSettings, source models.SourceType) (sources.Source, error)
}

// Options are the service-wide import settings
type Options struct {
	ConflictPolicy importer.ConflictPolicy
	MaxRows        int
	SampleSize     int
}

type ImportService struct {
	settings  SettingsStore
	status    StatusTracker
	catalog   CatalogProvider
	sources   SourceProvider
	publisher events.Publisher
	metrics   *metrics.Registry
	opts      Options
	logger    *logrus.Entry
}

func NewImportService(
	settings SettingsStore,
	status StatusTracker,
	catalogProvider CatalogProvider,
	sourceProvider SourceProvider,
	publisher events.Publisher,
	registry *metrics.Registry,
	opts Options,
	logger *logrus.Logger,
) *ImportService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = 5
	}
	return &ImportService{
		settings:  settings,
		status:    status,
		catalog:   catalogProvider,
		sources:   sourceProvider,
		publisher: publisher,
		metrics:   registry,
		opts:      opts,
		logger:    logger.WithField("component", "import-service"),
	}
}

// GetSettings returns the public view of the tenant's settings
func (s *ImportService) GetSettings(ctx context.Context, tenantID string) (*models.SettingsResponse, error) {
	settings, err := s.settings.GetSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return settingsResponse(settings), nil
}

// UpdateSettings applies a partial update. Headers and mapping apply to the
// selected source (after the update).
func (s *ImportService) UpdateSettings(ctx context.Context, tenantID string, req *models.UpdateSettingsRequest) (*models.SettingsResponse, error) {
	settings, err := s.settings.GetSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if req.SelectedSource != nil {
		if *req.SelectedSource != "" && !req.SelectedSource.Valid() {
			return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidSettings, *req.SelectedSource)
		}
		settings.SelectedSource = *req.SelectedSource
	}
	assignTrimmed(&settings.GoogleKeyJSON, req.GoogleKeyJSON)
	assignTrimmed(&settings.SpreadsheetID, req.SpreadsheetID)
	assignTrimmed(&settings.SheetName, req.SheetName)
	assignTrimmed(&settings.AirtableToken, req.AirtableToken)
	assignTrimmed(&settings.AirtableBaseID, req.AirtableBaseID)
	assignTrimmed(&settings.AirtableTable, req.AirtableTable)
	assignTrimmed(&settings.S3Bucket, req.S3Bucket)
	assignTrimmed(&settings.S3Key, req.S3Key)

	if settings.GoogleKeyJSON != nil && *settings.GoogleKeyJSON != "" && !json.Valid([]byte(*settings.GoogleKeyJSON)) {
		return nil, fmt.Errorf("%w: the Google service account key is not valid JSON", ErrInvalidSettings)
	}

	if req.Headers != nil || req.Mapping != nil {
		if settings.SelectedSource == "" {
			return nil, fmt.Errorf("%w: select a source before saving headers or mappings", ErrInvalidSettings)
		}
	}
	if req.Headers != nil {
		headers := make([]string, 0, len(req.Headers))
		for _, h := range req.Headers {
			headers = append(headers, strings.TrimSpace(h))
		}
		if err := settings.SetHeadersFor(settings.SelectedSource, headers); err != nil {
			return nil, err
		}
	}
	if req.Mapping != nil {
		mapping, err := ParseMapping(req.Mapping)
		if err != nil {
			return nil, err
		}
		merged := settings.MappingFor(settings.SelectedSource)
		for key, column := range mapping {
			merged[key] = column
		}
		if err := settings.SetMappingFor(settings.SelectedSource, merged); err != nil {
			return nil, err
		}
	}

	if err := s.settings.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settingsResponse(settings), nil
}

// ParseMapping validates mapping keys against the target field set. Aliases
// are stored under their canonical key.
func ParseMapping(raw map[string]string) (models.FieldMapping, error) {
	mapping := make(models.FieldMapping, len(raw))
	for key, column := range raw {
		field, ok := models.ParseFieldKey(strings.TrimSpace(key))
		if !ok {
			return nil, fmt.Errorf("%w: unknown target field %q", ErrInvalidSettings, key)
		}
		canonical := field.Canonical()
		if _, taken := mapping[canonical]; taken && field != canonical {
			continue
		}
		mapping[canonical] = strings.TrimSpace(column)
	}
	return mapping, nil
}

// DisconnectSource forgets the credentials, headers and mapping of a source
func (s *ImportService) DisconnectSource(ctx context.Context, tenantID string, source models.SourceType) error {
	if !source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidSettings, source)
	}
	settings, err := s.settings.GetSettings(ctx, tenantID)
	if err != nil {
		return err
	}
	switch source {
	case models.SourceGoogleSheets:
		settings.GoogleKeyJSON, settings.SpreadsheetID, settings.SheetName = nil, nil, nil
	case models.SourceAirtable:
		settings.AirtableToken, settings.AirtableBaseID, settings.AirtableTable = nil, nil, nil
	case models.SourceS3:
		settings.S3Bucket, settings.S3Key = nil, nil
	}
	if err := settings.SetHeadersFor(source, nil); err != nil {
		return err
	}
	if err := settings.SetMappingFor(source, nil); err != nil {
		return err
	}
	if settings.SelectedSource == source {
		settings.SelectedSource = ""
	}
	return s.settings.SaveSettings(ctx, settings)
}

// TestSource fetches a single row to prove the source is reachable
func (s *ImportService) TestSource(ctx context.Context, tenantID string, source models.SourceType) error {
	src, _, err := s.resolveSource(ctx, tenantID, source)
	if err != nil {
		return err
	}
	if err := sources.Test(ctx, src); err != nil {
		s.observeFetchError(src.Type())
		return err
	}
	return nil
}

// SampleSource fetches the first rows of a source and stores the headers it
// discovers
func (s *ImportService) SampleSource(ctx context.Context, tenantID string, source models.SourceType, limit int) (*models.SampleResponse, error) {
	if limit <= 0 {
		limit = s.opts.SampleSize
	}
	src, settings, err := s.resolveSource(ctx, tenantID, source)
	if err != nil {
		return nil, err
	}

	if source == models.SourceGoogleSheets {
		// Re-read the header row instead of trusting stored headers
		if err := settings.SetHeadersFor(source, nil); err != nil {
			return nil, err
		}
		if src, err = s.sources.FromSettings(ctx, settings, source); err != nil {
			return nil, err
		}
	}

	batch, err := src.Fetch(ctx, limit)
	if err != nil {
		s.observeFetchError(src.Type())
		return nil, err
	}

	if len(batch.Headers) > 0 {
		if err := settings.SetHeadersFor(src.Type(), batch.Headers); err != nil {
			return nil, err
		}
		if err := s.settings.SaveSettings(ctx, settings); err != nil {
			return nil, err
		}
	}

	headers := batch.Headers
	if headers == nil {
		headers = []string{}
	}
	return &models.SampleResponse{
		Source:  src.Type(),
		Headers: headers,
		Rows:    sources.KeyedPreview(batch, limit),
	}, nil
}

func (s *ImportService) resolveSource(ctx context.Context, tenantID string, source models.SourceType) (sources.Source, *models.ImportSettings, error) {
	settings, err := s.settings.GetSettings(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if source == "" {
		source = settings.SelectedSource
	}
	src, err := s.sources.FromSettings(ctx, settings, source)
	if err != nil {
		return nil, nil, err
	}
	return src, settings, nil
}

// RunConfigured imports from the tenant's configured source
func (s *ImportService) RunConfigured(ctx context.Context, tenantID, actor string, source models.SourceType) (*models.ImportRun, models.ImportResult, error) {
	settings, err := s.settings.GetSettings(ctx, tenantID)
	if err != nil {
		return nil, models.ImportResult{}, err
	}
	if source == "" {
		source = settings.SelectedSource
	}
	if source == "" {
		cfgErr := &importer.ConfigError{
			Reason:  importer.ReasonIncompleteSetup,
			Message: "Import configuration incomplete: no source selected",
		}
		return s.finish(ctx, tenantID, actor, source, failedResult(cfgErr), cfgErr)
	}

	src, err := s.sources.FromSettings(ctx, settings, source)
	if err != nil {
		cfgErr := &importer.ConfigError{Reason: importer.ReasonIncompleteSetup, Message: err.Error()}
		return s.finish(ctx, tenantID, actor, source, failedResult(cfgErr), cfgErr)
	}
	return s.run(ctx, tenantID, actor, src, settings.MappingFor(source))
}

// RunUpload imports an uploaded CSV or XLSX file. Without a stored file
// mapping, columns named after the target fields are used.
func (s *ImportService) RunUpload(ctx context.Context, tenantID, actor, filename string, data []byte) (*models.ImportRun, models.ImportResult, error) {
	settings, err := s.settings.GetSettings(ctx, tenantID)
	if err != nil {
		return nil, models.ImportResult{}, err
	}
	src, err := sources.NewFileSource(filename, data, s.opts.MaxRows)
	if err != nil {
		return nil, models.ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	return s.run(ctx, tenantID, actor, src, settings.MappingFor(models.SourceFile))
}

func (s *ImportService) run(ctx context.Context, tenantID, actor string, src sources.Source, mapping models.FieldMapping) (*models.ImportRun, models.ImportResult, error) {
	owner := uuid.New().String()
	acquired, err := s.status.AcquireLock(ctx, tenantID, owner)
	if err != nil {
		return nil, models.ImportResult{}, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if !acquired {
		return nil, models.ImportResult{}, ErrImportInProgress
	}
	defer func() {
		if err := s.status.ReleaseLock(context.Background(), tenantID, owner); err != nil {
			s.logger.WithError(err).WithField("tenant_id", tenantID).Warn("Failed to release import lock")
		}
	}()

	if s.metrics != nil {
		s.metrics.RunsInProgress.Inc()
		defer s.metrics.RunsInProgress.Dec()
	}

	ctx, span := tracing.StartSpan(ctx, "import.run")
	defer span.End()
	tracing.SetAttribute(ctx, "tenant_id", tenantID)
	tracing.SetAttribute(ctx, "import.source", string(src.Type()))

	log := s.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "source": src.Type()})
	log.Info("Starting import run")
	startedAt := time.Now()

	batch, err := src.Fetch(ctx, 0)
	if err != nil {
		s.observeFetchError(src.Type())
		tracing.SetError(span, err)
		log.WithError(err).Warn("Import fetch failed")
		result := failedResult(err)
		result.StartedAt = startedAt
		return s.finish(ctx, tenantID, actor, src.Type(), result, err)
	}
	if s.opts.MaxRows > 0 && len(batch.Rows) > s.opts.MaxRows {
		cfgErr := &importer.ConfigError{
			Reason:  importer.ReasonIncompleteSetup,
			Message: fmt.Sprintf("Source returned %d rows, the limit is %d", len(batch.Rows), s.opts.MaxRows),
		}
		return s.finish(ctx, tenantID, actor, src.Type(), failedResult(cfgErr), cfgErr)
	}

	if len(mapping) == 0 && src.Type() == models.SourceFile {
		mapping = DefaultMapping(batch.Headers)
	}

	engine := importer.NewEngine(
		s.catalog.ForTenant(tenantID),
		importer.WithConflictPolicy(s.opts.ConflictPolicy),
		importer.WithLogger(log),
	)
	result, runErr := engine.Run(ctx, batch, mapping)
	tracing.SetAttribute(ctx, "import.processed", result.Processed)
	if runErr != nil {
		tracing.SetError(span, runErr)
	}
	return s.finish(ctx, tenantID, actor, src.Type(), result, runErr)
}

// finish stores, announces and measures a run whatever its outcome
func (s *ImportService) finish(ctx context.Context, tenantID, actor string, source models.SourceType, result models.ImportResult, runErr error) (*models.ImportRun, models.ImportResult, error) {
	result.Source = source
	if result.StartedAt.IsZero() {
		result.StartedAt = time.Now()
	}
	if result.FinishedAt.IsZero() {
		result.FinishedAt = time.Now()
	}

	status := models.ImportStatusCompleted
	if runErr != nil {
		status = models.ImportStatusFailed
	}

	errorsJSON, _ := json.Marshal(result.Errors)
	run := &models.ImportRun{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Source:     source,
		Status:     status,
		Processed:  result.Processed,
		Created:    result.Created,
		Updated:    result.Updated,
		Failed:     result.Failed,
		Errors:     datatypes.JSON(errorsJSON),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if actor != "" {
		run.TriggeredBy = &actor
	}

	// Persist with a fresh context so a cancelled request still leaves a record
	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "source": source})
	if err := s.settings.CreateRun(persistCtx, run); err != nil {
		log.WithError(err).Error("Failed to store import run")
	}
	if err := s.status.SetStatus(persistCtx, tenantID, result); err != nil {
		log.WithError(err).Warn("Failed to store import status")
	}
	if err := s.publisher.PublishImportEvent(persistCtx, events.NewImportEvent(run, result)); err != nil {
		log.WithError(err).Warn("Failed to publish import event")
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(source, status, result)
	}

	log.WithFields(logrus.Fields{
		"status":    status,
		"processed": result.Processed,
		"created":   result.Created,
		"updated":   result.Updated,
		"failed":    result.Failed,
	}).Info("Import run stored")
	return run, result, runErr
}

// LatestStatus returns the most recent result while it is retained. With
// consume set the result is removed after reading.
func (s *ImportService) LatestStatus(ctx context.Context, tenantID string, consume bool) (*models.ImportResult, error) {
	result, err := s.status.GetStatus(ctx, tenantID)
	if err != nil || result == nil {
		return result, err
	}
	if consume {
		if err := s.status.ClearStatus(ctx, tenantID); err != nil {
			s.logger.WithError(err).Warn("Failed to clear import status")
		}
	}
	return result, nil
}

func (s *ImportService) ListRuns(ctx context.Context, tenantID string, page, limit int) ([]models.ImportRun, int64, error) {
	return s.settings.ListRuns(ctx, tenantID, page, limit)
}

func (s *ImportService) observeFetchError(source models.SourceType) {
	if s.metrics != nil {
		s.metrics.ObserveFetchError(source)
	}
}

// DefaultMapping maps every target field to the header of the same name
func DefaultMapping(headers []string) models.FieldMapping {
	mapping := models.FieldMapping{}
	for _, h := range headers {
		name := strings.ToLower(strings.TrimSpace(h))
		if field, ok := models.ParseFieldKey(name); ok {
			if _, taken := mapping[field.Canonical()]; !taken {
				mapping[field.Canonical()] = h
			}
		}
	}
	return mapping
}

// ResultLevel classifies a result for display: success, warning, error or info
func ResultLevel(result models.ImportResult) string {
	switch {
	case result.Processed == 0 && result.Failed == 0 && len(result.Errors) == 0:
		return "info"
	case result.Processed == 0:
		return "error"
	case result.Failed > 0 || len(result.Errors) > 0:
		return "warning"
	}
	return "success"
}

func failedResult(err error) models.ImportResult {
	result := models.NewImportResult()
	result.Errors = append(result.Errors, err.Error())
	return result
}

func assignTrimmed(dst **string, value *string) {
	if value == nil {
		return
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		*dst = nil
		return
	}
	*dst = &trimmed
}

func settingsResponse(settings *models.ImportSettings) *models.SettingsResponse {
	headers := settings.HeadersFor(settings.SelectedSource)
	if headers == nil {
		headers = []string{}
	}
	return &models.SettingsResponse{
		SelectedSource:   settings.SelectedSource,
		SpreadsheetID:    settings.SpreadsheetID,
		SheetName:        settings.SheetName,
		HasGoogleKey:     settings.GoogleKeyJSON != nil && *settings.GoogleKeyJSON != "",
		AirtableBaseID:   settings.AirtableBaseID,
		AirtableTable:    settings.AirtableTable,
		HasAirtableToken: settings.AirtableToken != nil && *settings.AirtableToken != "",
		S3Bucket:         settings.S3Bucket,
		S3Key:            settings.S3Key,
		Headers:          headers,
		Mapping:          settings.MappingFor(settings.SelectedSource),
		TargetFields:     models.TargetFields(),
	}
}

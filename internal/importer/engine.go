// Package importer reconciles externally sourced rows into the product catalog.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/catalog"
	"catalog-import-service/internal/models"
)

// OutcomeKind classifies a processed row
type OutcomeKind int

const (
	OutcomeCreated OutcomeKind = iota
	OutcomeUpdated
	OutcomeFailed
)

// RowOutcome is the result of one row. Notes carry advisory messages
// (dropped entries, failed variations) that do not change Kind.
type RowOutcome struct {
	Row     int
	SKU     string
	Kind    OutcomeKind
	Failure *RowFailure
	Notes   []models.ImportRowError
}

// Engine runs import batches against one catalog
type Engine struct {
	port   catalog.Port
	policy ConflictPolicy
	logger *logrus.Entry
	now    func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithConflictPolicy sets how SKUs held by non-variable products are handled
func WithConflictPolicy(policy ConflictPolicy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithLogger sets the engine's logger
func WithLogger(logger *logrus.Entry) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine writing through port
func NewEngine(port catalog.Port, opts ...Option) *Engine {
	e := &Engine{
		port:   port,
		policy: ConflictReject,
		logger: logrus.NewEntry(logrus.StandardLogger()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithField("component", "importer")
	return e
}

// Preflight checks that a batch can be run at all
func Preflight(batch models.RowBatch, mapping models.FieldMapping) error {
	mapped := 0
	for _, source := range mapping {
		if source != "" {
			mapped++
		}
	}
	if mapped == 0 {
		return &ConfigError{
			Reason:  ReasonIncompleteSetup,
			Message: "Import configuration incomplete: no field mapping configured",
		}
	}
	if len(batch.Rows) == 0 {
		return &ConfigError{
			Reason:  ReasonEmptyBatch,
			Message: "No data rows found in the source",
		}
	}
	if batch.IsPositional() && len(batch.Headers) == 0 {
		return &ConfigError{
			Reason:  ReasonMissingHeaders,
			Message: "Import configuration incomplete: source headers are missing",
		}
	}
	return nil
}

// Run processes every row of batch in order. Row failures are folded into the
// result; a *ConfigError or *FatalError is returned alongside the result when
// the run cannot continue.
func (e *Engine) Run(ctx context.Context, batch models.RowBatch, mapping models.FieldMapping) (models.ImportResult, error) {
	result := models.NewImportResult()
	result.StartedAt = e.now()

	if err := Preflight(batch, mapping); err != nil {
		e.logger.WithError(err).Warn("Import pre-flight check failed")
		result.Errors = append(result.Errors, err.Error())
		result.FinishedAt = e.now()
		return result, err
	}

	for i, row := range batch.Rows {
		rowNum := i + 1
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Import interrupted before row %d: %v", rowNum, err))
			result.FinishedAt = e.now()
			return result, err
		}

		outcome, err := e.processRow(ctx, rowNum, row, batch.Headers, mapping)
		if err != nil {
			fatal := &FatalError{Row: rowNum, Err: err}
			e.logger.WithError(err).WithField("row", rowNum).Error("Catalog unavailable, aborting import")
			result.Errors = append(result.Errors, fatal.Error())
			result.FinishedAt = e.now()
			return result, fatal
		}
		fold(&result, outcome)
	}

	result.FinishedAt = e.now()
	e.logger.WithFields(logrus.Fields{
		"processed": result.Processed,
		"created":   result.Created,
		"updated":   result.Updated,
		"failed":    result.Failed,
	}).Info("Import run finished")
	return result, nil
}

// processRow returns an error only when the catalog is unavailable
func (e *Engine) processRow(ctx context.Context, rowNum int, row models.RawRow, headers []string, mapping models.FieldMapping) (RowOutcome, error) {
	outcome := RowOutcome{Row: rowNum}
	log := e.logger.WithField("row", rowNum)

	record, defects, err := Decode(Normalize(row, mapping, headers))
	if err != nil {
		return failedOutcome(outcome, err, log), nil
	}
	outcome.SKU = record.SKU
	log = log.WithField("sku", record.SKU)

	parent, err := UpsertParent(ctx, record, e.port, e.policy)
	if err != nil {
		if catalog.IsUnavailable(err) {
			return outcome, err
		}
		return failedOutcome(outcome, err, log), nil
	}
	if parent.WasCreated {
		outcome.Kind = OutcomeCreated
	} else {
		outcome.Kind = OutcomeUpdated
	}

	for _, defect := range append(defects, parent.Defects...) {
		log.WithField("field", defect.Field).Warn(defect.String())
		outcome.Notes = append(outcome.Notes, models.ImportRowError{
			Row:     rowNum,
			SKU:     record.SKU,
			Column:  string(defect.Field),
			Code:    "FIELD_DEFECT",
			Message: defect.String(),
		})
	}

	for _, v := range ReconcileVariations(ctx, parent.Product, record.Variations, e.port) {
		if catalog.IsUnavailable(v.Err) {
			return outcome, v.Err
		}
		if !v.Failed() {
			continue
		}
		code := "VARIATION_SAVE_FAILED"
		if v.Skipped {
			code = "VARIATION_SKIPPED"
		}
		log.WithError(v.Err).Warn("Variation not saved")
		outcome.Notes = append(outcome.Notes, models.ImportRowError{
			Row:     rowNum,
			SKU:     record.SKU,
			Column:  string(models.FieldVariationsJSON),
			Code:    code,
			Message: v.String(),
		})
	}

	return outcome, nil
}

func failedOutcome(outcome RowOutcome, err error, log *logrus.Entry) RowOutcome {
	var failure *RowFailure
	if !errors.As(err, &failure) {
		failure = &RowFailure{Reason: ReasonSaveFailed, Detail: err.Error()}
	}
	log.WithField("reason", failure.Reason).Warn(failure.Error())
	outcome.Kind = OutcomeFailed
	outcome.Failure = failure
	return outcome
}

// fold adds one row outcome to the run tally
func fold(result *models.ImportResult, outcome RowOutcome) {
	result.Processed++
	switch outcome.Kind {
	case OutcomeCreated:
		result.Created++
	case OutcomeUpdated:
		result.Updated++
	case OutcomeFailed:
		result.Failed++
		column := ""
		if outcome.Failure.Field != "" {
			column = string(outcome.Failure.Field)
		}
		result.Errors = append(result.Errors, rowPrefix(outcome.Row, outcome.SKU)+outcome.Failure.Error())
		result.Details = append(result.Details, models.ImportRowError{
			Row:     outcome.Row,
			SKU:     outcome.SKU,
			Column:  column,
			Code:    outcome.Failure.Code(),
			Message: outcome.Failure.Error(),
		})
	}
	for _, note := range outcome.Notes {
		result.Errors = append(result.Errors, rowPrefix(note.Row, note.SKU)+note.Message)
		result.Details = append(result.Details, note)
	}
}

func rowPrefix(row int, sku string) string {
	if sku == "" {
		return fmt.Sprintf("Row %d: ", row)
	}
	return fmt.Sprintf("Row %d (SKU: %s): ", row, sku)
}

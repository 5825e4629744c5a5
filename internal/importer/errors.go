package importer

import (
	"fmt"

	"catalog-import-service/internal/models"
)

// Row failure reasons
const (
	ReasonMissingSKU      = "missing sku"
	ReasonInvalidField    = "invalid structured field"
	ReasonSKUConflict     = "sku conflict"
	ReasonLookupFailed    = "lookup failed"
	ReasonSaveFailed      = "save failed"
	ReasonEmptyBatch      = "empty batch"
	ReasonMissingHeaders  = "missing headers"
	ReasonIncompleteSetup = "incomplete configuration"
)

// ConfigError is a pre-flight failure. The run stops before touching the catalog.
type ConfigError struct {
	Reason  string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// RowFailure stops the processing of a single row
type RowFailure struct {
	Reason string
	Field  models.FieldKey
	Detail string
}

func (e *RowFailure) Error() string {
	switch e.Reason {
	case ReasonMissingSKU:
		return "missing SKU after mapping"
	case ReasonInvalidField:
		return fmt.Sprintf("invalid JSON in %s column: %s", e.Field, e.Detail)
	}
	if e.Detail == "" {
		return e.Reason
	}
	return e.Detail
}

// Code returns the machine-readable code used in ImportRowError details
func (e *RowFailure) Code() string {
	switch e.Reason {
	case ReasonMissingSKU:
		return "MISSING_SKU"
	case ReasonInvalidField:
		return "INVALID_JSON"
	case ReasonSKUConflict:
		return "SKU_CONFLICT"
	case ReasonLookupFailed:
		return "LOOKUP_FAILED"
	}
	return "SAVE_FAILED"
}

// FieldDefect is an advisory about a dropped attribute or variation entry.
// It never fails the row.
type FieldDefect struct {
	Field   models.FieldKey
	Index   int
	Message string
}

func (d FieldDefect) String() string {
	entry := "attribute"
	if d.Field == models.FieldVariationsJSON {
		entry = "variation"
	}
	return fmt.Sprintf("%s %d dropped: %s", entry, d.Index+1, d.Message)
}

// FatalError aborts the whole run; the catalog cannot be used any more
type FatalError struct {
	Row int
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("import aborted at row %d: %v", e.Row, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

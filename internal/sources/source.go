// Package sources fetches import rows from the configured external system.
package sources

import (
	"context"
	"errors"
	"fmt"

	"catalog-import-service/internal/models"
)

// ErrNotConfigured is returned when the settings lack what a source needs
var ErrNotConfigured = errors.New("source not configured")

// Source fetches a batch of raw rows. A limit of 0 fetches everything.
type Source interface {
	Type() models.SourceType
	Fetch(ctx context.Context, limit int) (models.RowBatch, error)
}

// FetchError wraps any failure of a source adapter
type FetchError struct {
	Source models.SourceType
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Error fetching data: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchError(source models.SourceType, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Source: source, Err: err}
}

// Test checks that a source is reachable and returns data
func Test(ctx context.Context, src Source) error {
	_, err := src.Fetch(ctx, 1)
	return err
}

// KeyedPreview renders the first rows of a batch as field maps for display
func KeyedPreview(batch models.RowBatch, limit int) []map[string]interface{} {
	preview := make([]map[string]interface{}, 0, limit)
	for _, row := range batch.Rows {
		if limit > 0 && len(preview) >= limit {
			break
		}
		if row.IsKeyed() {
			preview = append(preview, row.Fields)
			continue
		}
		fields := make(map[string]interface{}, len(batch.Headers))
		for i, h := range batch.Headers {
			if i < len(row.Cells) {
				fields[h] = row.Cells[i]
			}
		}
		preview = append(preview, fields)
	}
	return preview
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

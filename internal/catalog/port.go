// Package catalog defines the boundary between the import engine and the
// catalog store it writes to.
package catalog

import (
	"context"
	"errors"

	"catalog-import-service/internal/models"
)

var (
	// ErrNotFound is returned by lookups that match nothing
	ErrNotFound = errors.New("catalog entity not found")
	// ErrUnavailable marks failures of the catalog subsystem as a whole
	// (connection refused, database down). The engine aborts the run on it.
	ErrUnavailable = errors.New("catalog unavailable")
)

// Port is the catalog seen by the import engine. Save calls are atomic per
// entity; there is no transaction spanning a product and its variants.
type Port interface {
	// FindProduct returns the product with the given SKU or ErrNotFound
	FindProduct(ctx context.Context, sku string) (*models.Product, error)
	// SaveProduct inserts the product when its ID is nil, otherwise updates it
	SaveProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	// FindVariant returns the variant with the given SKU or ErrNotFound
	FindVariant(ctx context.Context, sku string) (*models.ProductVariant, error)
	// SaveVariant inserts the variant when its ID is nil, otherwise updates it
	SaveVariant(ctx context.Context, variant *models.ProductVariant) (*models.ProductVariant, error)
	// AttributeKey maps an attribute display name to the catalog's canonical key
	AttributeKey(name string) string
}

// IsUnavailable reports whether err means the catalog cannot be reached
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

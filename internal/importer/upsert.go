package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"catalog-import-service/internal/catalog"
	"catalog-import-service/internal/models"
)

const defaultProductName = "Untitled Product"

// ConflictPolicy decides what happens when a row's SKU already belongs to a
// product that cannot carry variants
type ConflictPolicy string

const (
	// ConflictReject fails the row and leaves the existing product untouched
	ConflictReject ConflictPolicy = "reject"
	// ConflictConvert turns the existing product into a variable product
	ConflictConvert ConflictPolicy = "convert"
	// ConflictCoexist creates a second, variable product with the same SKU
	ConflictCoexist ConflictPolicy = "coexist"
)

// ParseConflictPolicy validates a policy name; empty means ConflictReject
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch policy := ConflictPolicy(strings.ToLower(strings.TrimSpace(s))); policy {
	case "":
		return ConflictReject, nil
	case ConflictReject, ConflictConvert, ConflictCoexist:
		return policy, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q", s)
}

// LookupKind tags the outcome of a parent lookup
type LookupKind int

const (
	LookupNotFound LookupKind = iota
	LookupCompatible
	LookupIncompatible
)

// LookupResult is the tagged result of looking up a parent by SKU
type LookupResult struct {
	Kind    LookupKind
	Product *models.Product
}

// LookupParent classifies the catalog entry holding sku
func LookupParent(ctx context.Context, port catalog.Port, sku string) (LookupResult, error) {
	product, err := port.FindProduct(ctx, sku)
	if errors.Is(err, catalog.ErrNotFound) {
		return LookupResult{Kind: LookupNotFound}, nil
	}
	if err != nil {
		return LookupResult{}, err
	}
	if product.IsVariable() {
		return LookupResult{Kind: LookupCompatible, Product: product}, nil
	}
	return LookupResult{Kind: LookupIncompatible, Product: product}, nil
}

// ParentResult is a persisted parent product
type ParentResult struct {
	Product    *models.Product
	WasCreated bool
	Defects    []FieldDefect
}

// UpsertParent finds or creates the variable product for record and saves
// its scalar fields and attribute list
func UpsertParent(ctx context.Context, record models.ProductRecord, port catalog.Port, policy ConflictPolicy) (ParentResult, error) {
	lookup, err := LookupParent(ctx, port, record.SKU)
	if err != nil {
		if catalog.IsUnavailable(err) {
			return ParentResult{}, err
		}
		return ParentResult{}, &RowFailure{Reason: ReasonLookupFailed, Detail: err.Error()}
	}

	var product *models.Product
	switch lookup.Kind {
	case LookupCompatible:
		product = lookup.Product
	case LookupIncompatible:
		switch policy {
		case ConflictConvert:
			product = lookup.Product
			product.Type = models.ProductTypeVariable
		case ConflictCoexist:
			product = newParent(record.SKU)
		default:
			return ParentResult{}, &RowFailure{
				Reason: ReasonSKUConflict,
				Detail: fmt.Sprintf("SKU %s already used by a non-variable product", record.SKU),
			}
		}
	default:
		product = newParent(record.SKU)
	}

	priorID := product.ID
	applyScalars(product, record)

	attrs, defects := buildAttributes(record.Attributes, port)
	if err := product.SetAttributeList(attrs); err != nil {
		return ParentResult{}, &RowFailure{Reason: ReasonSaveFailed, Detail: err.Error()}
	}

	saved, err := port.SaveProduct(ctx, product)
	if err != nil {
		if catalog.IsUnavailable(err) {
			return ParentResult{}, err
		}
		return ParentResult{}, &RowFailure{Reason: ReasonSaveFailed, Detail: err.Error()}
	}

	return ParentResult{
		Product:    saved,
		WasCreated: priorID == uuid.Nil || saved.ID != priorID,
		Defects:    defects,
	}, nil
}

func newParent(sku string) *models.Product {
	return &models.Product{SKU: sku, Type: models.ProductTypeVariable}
}

func applyScalars(product *models.Product, record models.ProductRecord) {
	name := record.Name
	if name == "" {
		name = defaultProductName
	}
	product.Name = name
	product.Description = optionalText(record.Description)
	product.ShortDescription = optionalText(record.ShortDescription)
	product.Status = models.ProductStatusActive
	if product.Slug == nil {
		slug := catalog.Slugify(name + "-" + record.SKU)
		product.Slug = &slug
	}
}

// buildAttributes assigns positions by list order and skips entries without
// a name or options
func buildAttributes(defs []models.AttributeDef, port catalog.Port) ([]models.ProductAttribute, []FieldDefect) {
	attrs := make([]models.ProductAttribute, 0, len(defs))
	var defects []FieldDefect
	for i, def := range defs {
		if def.Name == "" || len(def.Options) == 0 {
			defects = append(defects, FieldDefect{Field: models.FieldAttributesJSON, Index: i, Message: "missing name or options"})
			continue
		}
		attrs = append(attrs, models.ProductAttribute{
			Name:      def.Name,
			Key:       port.AttributeKey(def.Name),
			Options:   def.Options,
			Position:  len(attrs),
			Visible:   def.IsVisible,
			Variation: def.IsVariation,
		})
	}
	return attrs, defects
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

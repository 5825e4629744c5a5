package importer

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"catalog-import-service/internal/catalog"
	"catalog-import-service/internal/models"
)

// memCatalog is an in-memory catalog.Port
type memCatalog struct {
	products     map[uuid.UUID]*models.Product
	variants     map[uuid.UUID]*models.ProductVariant
	productSaves int
	variantSaves int
	failProduct  map[string]error
	failVariant  map[string]error
	unavailable  bool
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		products:    map[uuid.UUID]*models.Product{},
		variants:    map[uuid.UUID]*models.ProductVariant{},
		failProduct: map[string]error{},
		failVariant: map[string]error{},
	}
}

func (m *memCatalog) FindProduct(_ context.Context, sku string) (*models.Product, error) {
	if m.unavailable {
		return nil, catalog.ErrUnavailable
	}
	for _, p := range m.products {
		if p.SKU == sku {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memCatalog) SaveProduct(_ context.Context, product *models.Product) (*models.Product, error) {
	if m.unavailable {
		return nil, catalog.ErrUnavailable
	}
	if err := m.failProduct[product.SKU]; err != nil {
		return nil, err
	}
	m.productSaves++
	cp := *product
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	m.products[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memCatalog) FindVariant(_ context.Context, sku string) (*models.ProductVariant, error) {
	if m.unavailable {
		return nil, catalog.ErrUnavailable
	}
	for _, v := range m.variants {
		if v.SKU == sku {
			cp := *v
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memCatalog) SaveVariant(_ context.Context, variant *models.ProductVariant) (*models.ProductVariant, error) {
	if m.unavailable {
		return nil, catalog.ErrUnavailable
	}
	if err := m.failVariant[variant.SKU]; err != nil {
		return nil, err
	}
	if variant.SKU != "" {
		for id, v := range m.variants {
			if v.SKU == variant.SKU && id != variant.ID {
				return nil, errors.New("duplicate variant SKU")
			}
		}
	}
	m.variantSaves++
	cp := *variant
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	m.variants[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memCatalog) AttributeKey(name string) string {
	return catalog.AttributeKey(name)
}

func (m *memCatalog) productBySKU(sku string) *models.Product {
	for _, p := range m.products {
		if p.SKU == sku {
			return p
		}
	}
	return nil
}

func (m *memCatalog) variantsOf(productID uuid.UUID) []*models.ProductVariant {
	var out []*models.ProductVariant
	for _, v := range m.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out
}

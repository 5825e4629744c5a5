package importer

import (
	"context"
	"errors"
	"fmt"

	"catalog-import-service/internal/catalog"
	"catalog-import-service/internal/models"
)

// VariationOutcome reports what happened to one declared variation
type VariationOutcome struct {
	Index   int
	SKU     string
	Variant *models.ProductVariant
	Created bool
	Skipped bool
	Err     error
}

// Failed reports whether the variation was skipped or could not be saved
func (o VariationOutcome) Failed() bool {
	return o.Skipped || o.Err != nil
}

func (o VariationOutcome) String() string {
	label := fmt.Sprintf("variation %d", o.Index+1)
	if o.SKU != "" {
		label = fmt.Sprintf("%s (SKU: %s)", label, o.SKU)
	}
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", label, o.Err)
	}
	return label
}

// ReconcileVariations saves each variation under parent. Variations are
// independent of each other; processing only stops early when the catalog
// becomes unavailable.
func ReconcileVariations(ctx context.Context, parent *models.Product, variations []models.VariationDef, port catalog.Port) []VariationOutcome {
	outcomes := make([]VariationOutcome, 0, len(variations))
	for i, def := range variations {
		outcome := reconcileVariation(ctx, parent, i, def, port)
		outcomes = append(outcomes, outcome)
		if catalog.IsUnavailable(outcome.Err) {
			break
		}
	}
	return outcomes
}

func reconcileVariation(ctx context.Context, parent *models.Product, index int, def models.VariationDef, port catalog.Port) VariationOutcome {
	outcome := VariationOutcome{Index: index, SKU: def.SKU}

	selection, err := selectionFor(def, port)
	if err != nil {
		outcome.Skipped = true
		outcome.Err = err
		return outcome
	}

	variant, err := findChild(ctx, parent, def.SKU, port)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if variant == nil {
		variant = &models.ProductVariant{ProductID: parent.ID}
		outcome.Created = true
	}

	if err := variant.SetSelection(selection); err != nil {
		outcome.Err = err
		return outcome
	}
	if def.RegularPrice != nil {
		price := *def.RegularPrice
		variant.RegularPrice = &price
	}
	if def.StockQuantity != nil {
		qty := *def.StockQuantity
		variant.ManageStock = true
		variant.StockQuantity = &qty
	} else {
		variant.ManageStock = false
		variant.StockQuantity = nil
	}
	if def.SKU != "" {
		variant.SKU = def.SKU
	}

	saved, err := port.SaveVariant(ctx, variant)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Variant = saved
	return outcome
}

// findChild returns the existing variant for sku when it belongs to parent,
// nil when a new variant has to be started
func findChild(ctx context.Context, parent *models.Product, sku string, port catalog.Port) (*models.ProductVariant, error) {
	if sku == "" {
		return nil, nil
	}
	existing, err := port.FindVariant(ctx, sku)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.ProductID != parent.ID {
		return nil, nil
	}
	return existing, nil
}

func selectionFor(def models.VariationDef, port catalog.Port) (map[string]string, error) {
	if len(def.Attributes) == 0 {
		return nil, errors.New("skipped: missing attributes")
	}
	selection := make(map[string]string, len(def.Attributes))
	for _, attr := range def.Attributes {
		key := port.AttributeKey(attr.Name)
		if key == "" {
			return nil, fmt.Errorf("skipped: attribute %q has no usable key", attr.Name)
		}
		selection[key] = attr.Option
	}
	return selection, nil
}

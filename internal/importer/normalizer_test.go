package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"catalog-import-service/internal/models"
)

func TestNormalize_Positional(t *testing.T) {
	headers := []string{"Product SKU", "Title", "Attrs"}
	mapping := models.FieldMapping{
		models.FieldSKU:            "Product SKU",
		models.FieldName:           "title",
		models.FieldAttributesJSON: "Attrs",
		models.FieldDescription:    "Missing Column",
	}

	row := Normalize(models.PositionalRow("A1", "Shirt"), mapping, headers)

	assert.Equal(t, "A1", row[models.FieldSKU])
	assert.Equal(t, "Shirt", row[models.FieldName], "header match falls back to case-insensitive")
	assert.NotContains(t, row, models.FieldAttributesJSON, "short row leaves trailing fields absent")
	assert.NotContains(t, row, models.FieldDescription)
}

func TestNormalize_Keyed(t *testing.T) {
	mapping := models.FieldMapping{
		models.FieldSKU:         "Code",
		models.FieldProductName: "Name",
		models.FieldDescription: "Notes",
	}
	row := Normalize(models.KeyedRow(map[string]interface{}{
		"Code": "A1",
		"Name": "Shirt",
	}), mapping, nil)

	assert.Equal(t, models.NormalizedRow{
		models.FieldSKU:         "A1",
		models.FieldProductName: "Shirt",
	}, row)
}

func TestNormalize_IgnoresEmptyMappingEntries(t *testing.T) {
	mapping := models.FieldMapping{models.FieldSKU: "sku", models.FieldName: ""}
	row := Normalize(models.PositionalRow("A1", "x"), mapping, []string{"sku", ""})
	assert.Len(t, row, 1)
}

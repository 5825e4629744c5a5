package sources

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"catalog-import-service/internal/models"
)

func TestFormatFromName(t *testing.T) {
	format, err := FormatFromName("products.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)

	format, err = FormatFromName("catalog.xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	_, err = FormatFromName("catalog.json")
	assert.Error(t, err)
}

func TestFileSource_CSV(t *testing.T) {
	data := "\ufeffsku *,name,variations_json\n" +
		"A1,Shirt,\"[{\"\"sku\"\":\"\"A1-RED\"\"}]\"\n" +
		",,\n" +
		"B1,Hat\n"
	src, err := NewFileSource("products.csv", []byte(data), 0)
	require.NoError(t, err)

	batch, err := src.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"sku", "name", "variations_json"}, batch.Headers)
	require.Len(t, batch.Rows, 2, "blank rows are skipped")
	assert.Equal(t, []interface{}{"A1", "Shirt", `[{"sku":"A1-RED"}]`}, batch.Rows[0].Cells)
	assert.Equal(t, []interface{}{"B1", "Hat"}, batch.Rows[1].Cells)
	assert.Equal(t, models.SourceFile, src.Type())
}

func TestFileSource_CSVWindows1252(t *testing.T) {
	data := []byte("sku,name\nC1,Caf\xe9\n")
	src, err := NewFileSource("products.csv", data, 0)
	require.NoError(t, err)

	batch, err := src.Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, []interface{}{"C1", "Café"}, batch.Rows[0].Cells)
}

func TestFileSource_MaxRows(t *testing.T) {
	src, err := NewFileSource("p.csv", []byte("sku\nA\nB\nC\n"), 2)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrTooManyRows)

	batch, err := src.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, batch.Rows, 1)
}

func TestFileSource_EmptyFile(t *testing.T) {
	src, err := NewFileSource("p.csv", nil, 0)
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), 0)
	assert.EqualError(t, err, "Error fetching data: file is empty")
}

func TestFileSource_XLSXPrefersProductsSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"ignored"}))
	_, err := f.NewSheet("Products")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Products", "A1", &[]interface{}{"sku", "name"}))
	require.NoError(t, f.SetSheetRow("Products", "A2", &[]interface{}{"A1", "Shirt"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	src, err := NewFileSource("catalog.xlsx", buf.Bytes(), 0)
	require.NoError(t, err)
	batch, err := src.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"sku", "name"}, batch.Headers)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, []interface{}{"A1", "Shirt"}, batch.Rows[0].Cells)
}

func TestKeyedPreview(t *testing.T) {
	batch := models.RowBatch{
		Headers: []string{"sku", "name"},
		Rows: []models.RawRow{
			models.PositionalRow("A1", "Shirt"),
			models.PositionalRow("B1"),
			models.KeyedRow(map[string]interface{}{"sku": "C1"}),
		},
	}
	preview := KeyedPreview(batch, 2)
	require.Len(t, preview, 2)
	assert.Equal(t, map[string]interface{}{"sku": "A1", "name": "Shirt"}, preview[0])
	assert.Equal(t, map[string]interface{}{"sku": "B1"}, preview[1])
}

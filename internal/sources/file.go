package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"catalog-import-service/internal/models"
)

// Supported upload formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ErrTooManyRows is returned when a file exceeds the configured row limit
var ErrTooManyRows = errors.New("file exceeds the maximum number of import rows")

// FileSource serves rows parsed from an uploaded CSV or XLSX file
type FileSource struct {
	sourceType models.SourceType
	format     string
	data       []byte
	maxRows    int
}

// NewFileSource wraps file contents; the format is taken from the file name
func NewFileSource(filename string, data []byte, maxRows int) (*FileSource, error) {
	format, err := FormatFromName(filename)
	if err != nil {
		return nil, err
	}
	return &FileSource{sourceType: models.SourceFile, format: format, data: data, maxRows: maxRows}, nil
}

// FormatFromName maps a file extension onto a supported format
func FormatFromName(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported file format %q, use .csv or .xlsx", filepath.Ext(filename))
}

func (s *FileSource) Type() models.SourceType {
	return s.sourceType
}

func (s *FileSource) Fetch(_ context.Context, limit int) (models.RowBatch, error) {
	var (
		records [][]string
		err     error
	)
	switch s.format {
	case FormatXLSX:
		records, err = readXLSX(bytes.NewReader(s.data))
	default:
		records, err = readCSV(csvReader(s.data))
	}
	if err != nil {
		return models.RowBatch{}, fetchError(s.sourceType, err)
	}
	batch, err := recordsToBatch(records, limit, s.maxRows)
	return batch, fetchError(s.sourceType, err)
}

// recordsToBatch takes the first record as the header row and skips blank rows
func recordsToBatch(records [][]string, limit, maxRows int) (models.RowBatch, error) {
	if len(records) == 0 {
		return models.RowBatch{}, errors.New("file is empty")
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimPrefix(h, "\ufeff")
		headers[i] = strings.TrimSuffix(strings.TrimSpace(h), " *")
	}

	batch := models.RowBatch{Headers: headers}
	for _, record := range records[1:] {
		if limit > 0 && len(batch.Rows) >= limit {
			break
		}
		cells := make([]interface{}, len(record))
		blank := true
		for i, value := range record {
			value = strings.TrimSpace(value)
			if value != "" {
				blank = false
			}
			cells[i] = value
		}
		if blank {
			continue
		}
		if maxRows > 0 && len(batch.Rows) >= maxRows {
			return models.RowBatch{}, fmt.Errorf("%w (%d)", ErrTooManyRows, maxRows)
		}
		batch.Rows = append(batch.Rows, models.PositionalRow(cells...))
	}
	return batch, nil
}

// csvReader decodes spreadsheet exports saved as Windows-1252 when the bytes are not UTF-8
func csvReader(data []byte) io.Reader {
	if utf8.Valid(data) {
		return bytes.NewReader(data)
	}
	return charmap.Windows1252.NewDecoder().Reader(bytes.NewReader(data))
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// readXLSX reads the sheet named "Products", or the first sheet
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, errors.New("no sheets found in Excel file")
	}
	sheetName := sheetList[0]
	for _, name := range sheetList {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return rows, nil
}

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"catalog-import-service/internal/models"
)

const defaultSheetName = "Sheet1"

// GoogleSheetsConfig locates a sheet and the stored headers of the source
type GoogleSheetsConfig struct {
	CredentialsJSON []byte
	SpreadsheetID   string
	SheetName       string
	Headers         []string
	// ClientOptions replace the credentials option when set
	ClientOptions []option.ClientOption
}

// GoogleSheetsSource reads positional rows from a spreadsheet with a
// service account
type GoogleSheetsSource struct {
	cfg GoogleSheetsConfig
}

func NewGoogleSheetsSource(cfg GoogleSheetsConfig) *GoogleSheetsSource {
	if cfg.SheetName == "" {
		cfg.SheetName = defaultSheetName
	}
	return &GoogleSheetsSource{cfg: cfg}
}

func (s *GoogleSheetsSource) Type() models.SourceType {
	return models.SourceGoogleSheets
}

func (s *GoogleSheetsSource) service(ctx context.Context) (*sheets.Service, error) {
	opts := s.cfg.ClientOptions
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsJSON(s.cfg.CredentialsJSON),
			option.WithScopes(sheets.SpreadsheetsReadonlyScope),
		}
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid Google service account key: %w", err)
	}
	return svc, nil
}

// Fetch reads the sheet. Without stored headers the first row becomes the
// header row; with stored headers a first row equal to them is dropped.
func (s *GoogleSheetsSource) Fetch(ctx context.Context, limit int) (models.RowBatch, error) {
	svc, err := s.service(ctx)
	if err != nil {
		return models.RowBatch{}, fetchError(s.Type(), err)
	}

	resp, err := svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, s.cfg.SheetName).Context(ctx).Do()
	if err != nil {
		return models.RowBatch{}, fetchError(s.Type(), translateSheetsError(err, s.cfg))
	}

	values := resp.Values
	headers := s.cfg.Headers
	if len(values) > 0 {
		first := cellsToStrings(values[0])
		if len(headers) == 0 {
			headers = first
			values = values[1:]
		} else if sameHeaders(first, headers) {
			values = values[1:]
		}
	}

	batch := models.RowBatch{Headers: headers, Rows: make([]models.RawRow, 0, len(values))}
	for _, cells := range values {
		if limit > 0 && len(batch.Rows) >= limit {
			break
		}
		if blankRow(cells) {
			continue
		}
		batch.Rows = append(batch.Rows, models.PositionalRow(cells...))
	}
	return batch, nil
}

func translateSheetsError(err error, cfg GoogleSheetsConfig) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusNotFound:
		return fmt.Errorf("spreadsheet %s was not found, check the spreadsheet ID", cfg.SpreadsheetID)
	case apiErr.Code == http.StatusForbidden:
		return errors.New("permission denied, share the spreadsheet with the service account email")
	case apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "Unable to parse range"):
		return fmt.Errorf("sheet or range %q does not exist in the spreadsheet", cfg.SheetName)
	}
	return fmt.Errorf("Google Sheets API error (%d): %s", apiErr.Code, apiErr.Message)
}

func cellsToStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(fmt.Sprint(c))
	}
	return out
}

func sameHeaders(row, headers []string) bool {
	if len(row) != len(headers) {
		return false
	}
	for i := range row {
		if row[i] != strings.TrimSpace(headers[i]) {
			return false
		}
	}
	return true
}

func blankRow(cells []interface{}) bool {
	for _, c := range cells {
		if c != nil && strings.TrimSpace(fmt.Sprint(c)) != "" {
			return false
		}
	}
	return true
}

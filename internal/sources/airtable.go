package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/clients"
	"catalog-import-service/internal/models"
)

const (
	DefaultAirtableAPIURL = "https://api.airtable.com"
	airtablePageSize      = 100
)

// AirtableConfig locates a table
type AirtableConfig struct {
	BaseURL string // API host; a trailing /v0 is accepted
	Token   string
	BaseID  string
	Table   string
	Logger  *logrus.Entry
}

// AirtableSource reads keyed records from an Airtable table page by page
type AirtableSource struct {
	cfg    AirtableConfig
	client *clients.HTTPClient
}

func NewAirtableSource(cfg AirtableConfig, client *clients.HTTPClient) *AirtableSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAirtableAPIURL
	}
	cfg.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v0")
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &AirtableSource{cfg: cfg, client: client}
}

func (s *AirtableSource) Type() models.SourceType {
	return models.SourceAirtable
}

type airtableRecord struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

type airtablePage struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset"`
}

// Fetch follows the offset cursor until the table or the limit is exhausted.
// Headers are the union of field names in order of first appearance.
func (s *AirtableSource) Fetch(ctx context.Context, limit int) (models.RowBatch, error) {
	var batch models.RowBatch
	seen := map[string]bool{}
	offset := ""

	for page := 1; ; page++ {
		result, err := s.fetchPage(ctx, offset, limit)
		if err != nil {
			return models.RowBatch{}, fetchError(s.Type(), err)
		}
		s.cfg.Logger.WithFields(logrus.Fields{
			"page":    page,
			"records": len(result.Records),
		}).Debug("Fetched Airtable page")

		for _, rec := range result.Records {
			if limit > 0 && len(batch.Rows) >= limit {
				return batch, nil
			}
			names := make([]string, 0, len(rec.Fields))
			for name := range rec.Fields {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if !seen[name] {
					seen[name] = true
					batch.Headers = append(batch.Headers, name)
				}
			}
			batch.Rows = append(batch.Rows, models.KeyedRow(rec.Fields))
		}

		if result.Offset == "" || (limit > 0 && len(batch.Rows) >= limit) {
			return batch, nil
		}
		offset = result.Offset
	}
}

func (s *AirtableSource) fetchPage(ctx context.Context, offset string, limit int) (*airtablePage, error) {
	pageSize := airtablePageSize
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}
	query := url.Values{}
	query.Set("pageSize", strconv.Itoa(pageSize))
	if offset != "" {
		query.Set("offset", offset)
	}
	endpoint := fmt.Sprintf("%s/v0/%s/%s?%s", s.cfg.BaseURL, url.PathEscape(s.cfg.BaseID), url.PathEscape(s.cfg.Table), query.Encode())

	resp, _, err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("Airtable request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Airtable response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, airtableError(resp.StatusCode, body)
	}

	var page airtablePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode Airtable response: %w", err)
	}
	return &page, nil
}

// airtableError reads both error body shapes: {"error":{"type","message"}}
// and {"error":"TYPE"}
func airtableError(status int, body []byte) error {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var detailed struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &detailed) == nil && (detailed.Type != "" || detailed.Message != "") {
			if detailed.Message == "" {
				return fmt.Errorf("Airtable API error (%d): %s", status, detailed.Type)
			}
			return fmt.Errorf("Airtable API error (%d): %s: %s", status, detailed.Type, detailed.Message)
		}
		var code string
		if json.Unmarshal(envelope.Error, &code) == nil && code != "" {
			return fmt.Errorf("Airtable API error (%d): %s", status, code)
		}
	}
	return fmt.Errorf("Airtable API error (%d): %s", status, http.StatusText(status))
}

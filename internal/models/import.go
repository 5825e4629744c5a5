package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FieldKey is one of the fixed target fields a source column can be mapped to
type FieldKey string

const (
	FieldName             FieldKey = "name"
	FieldSKU              FieldKey = "sku"
	FieldDescription      FieldKey = "description"
	FieldShortDescription FieldKey = "short_description"
	FieldAttributesJSON   FieldKey = "attributes_json"
	FieldVariationsJSON   FieldKey = "variations_json"

	// FieldProductName is the external label some mappings use for FieldName
	FieldProductName FieldKey = "product_name"
)

// TargetFields returns the canonical target field keys in display order
func TargetFields() []FieldKey {
	return []FieldKey{
		FieldName,
		FieldSKU,
		FieldDescription,
		FieldShortDescription,
		FieldAttributesJSON,
		FieldVariationsJSON,
	}
}

// Canonical resolves aliases to their canonical key
func (k FieldKey) Canonical() FieldKey {
	if k == FieldProductName {
		return FieldName
	}
	return k
}

// ParseFieldKey validates a mapping key, accepting the product_name alias
func ParseFieldKey(s string) (FieldKey, bool) {
	key := FieldKey(s)
	if key == FieldProductName {
		return key, true
	}
	for _, k := range TargetFields() {
		if k == key {
			return key, true
		}
	}
	return "", false
}

// FieldMapping maps a target field key to a source column or field name
type FieldMapping map[FieldKey]string

// RawRow is one row as delivered by a source adapter. Positional rows carry
// Cells (resolved through the batch headers), keyed rows carry Fields.
type RawRow struct {
	Cells  []interface{}
	Fields map[string]interface{}
}

// PositionalRow builds a row of cell values
func PositionalRow(cells ...interface{}) RawRow {
	if cells == nil {
		cells = []interface{}{}
	}
	return RawRow{Cells: cells}
}

// KeyedRow builds a row of named field values
func KeyedRow(fields map[string]interface{}) RawRow {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return RawRow{Fields: fields}
}

// IsKeyed reports whether the row is addressed by field name
func (r RawRow) IsKeyed() bool {
	return r.Fields != nil
}

// RowBatch is an already-fetched set of rows. Headers are only meaningful
// for positional rows.
type RowBatch struct {
	Headers []string `json:"headers,omitempty"`
	Rows    []RawRow `json:"-"`
}

// IsPositional reports whether any row in the batch is positional
func (b RowBatch) IsPositional() bool {
	for _, row := range b.Rows {
		if !row.IsKeyed() {
			return true
		}
	}
	return false
}

// NormalizedRow maps target field keys to raw source values
type NormalizedRow map[FieldKey]interface{}

// AttributeDef is a decoded attribute entry of attributes_json
type AttributeDef struct {
	Name        string   `json:"name"`
	Options     []string `json:"options"`
	IsVisible   bool     `json:"is_visible"`
	IsVariation bool     `json:"is_variation"`
	Position    int      `json:"position"`
}

// AttributeSelection is one (attribute, option) pair of a variation
type AttributeSelection struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

// VariationDef is a decoded variation entry of variations_json
type VariationDef struct {
	SKU           string               `json:"sku,omitempty"`
	Attributes    []AttributeSelection `json:"attributes"`
	RegularPrice  *string              `json:"regular_price,omitempty"`
	StockQuantity *int                 `json:"stock_quantity,omitempty"`
}

// ProductRecord is a fully decoded import row
type ProductRecord struct {
	Name             string
	SKU              string
	Description      string
	ShortDescription string
	Attributes       []AttributeDef
	Variations       []VariationDef
}

// ImportRowError represents an error for a specific row
type ImportRowError struct {
	Row     int    `json:"row"`
	SKU     string `json:"sku,omitempty"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult is the tally of one import run
type ImportResult struct {
	Processed  int              `json:"processed"`
	Created    int              `json:"created"`
	Updated    int              `json:"updated"`
	Failed     int              `json:"failed"`
	Errors     []string         `json:"errors"`
	Details    []ImportRowError `json:"details,omitempty"`
	Source     SourceType       `json:"source,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// NewImportResult returns an empty result with a non-nil error list
func NewImportResult() ImportResult {
	return ImportResult{Errors: []string{}}
}

// ImportStatus represents the status of an import run
type ImportStatus string

const (
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusCompleted  ImportStatus = "COMPLETED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// SourceType identifies where import rows come from
type SourceType string

const (
	SourceGoogleSheets SourceType = "google_sheets"
	SourceAirtable     SourceType = "airtable"
	SourceFile         SourceType = "file"
	SourceS3           SourceType = "s3"
)

// Valid reports whether the source type is known
func (s SourceType) Valid() bool {
	switch s {
	case SourceGoogleSheets, SourceAirtable, SourceFile, SourceS3:
		return true
	}
	return false
}

// ImportSettings is the per-tenant source and mapping configuration
type ImportSettings struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	TenantID       string         `json:"tenantId" gorm:"not null;uniqueIndex"`
	SelectedSource SourceType     `json:"selectedSource"`
	GoogleKeyJSON  *string        `json:"-" gorm:"type:text"`
	SpreadsheetID  *string        `json:"spreadsheetId,omitempty"`
	SheetName      *string        `json:"sheetName,omitempty"`
	AirtableToken  *string        `json:"-"`
	AirtableBaseID *string        `json:"airtableBaseId,omitempty"`
	AirtableTable  *string        `json:"airtableTable,omitempty"`
	S3Bucket       *string        `json:"s3Bucket,omitempty"`
	S3Key          *string        `json:"s3Key,omitempty"`
	Headers        datatypes.JSON `json:"headers,omitempty" gorm:"type:jsonb"`
	Mappings       datatypes.JSON `json:"mappings,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// TableName returns the table name for the ImportSettings model
func (ImportSettings) TableName() string {
	return "import_settings"
}

// HeadersFor returns the stored headers of a source
func (s *ImportSettings) HeadersFor(source SourceType) []string {
	all := map[SourceType][]string{}
	if len(s.Headers) > 0 {
		_ = json.Unmarshal(s.Headers, &all)
	}
	return all[source]
}

// SetHeadersFor replaces the stored headers of a source
func (s *ImportSettings) SetHeadersFor(source SourceType, headers []string) error {
	all := map[SourceType][]string{}
	if len(s.Headers) > 0 {
		if err := json.Unmarshal(s.Headers, &all); err != nil {
			return err
		}
	}
	if headers == nil {
		delete(all, source)
	} else {
		all[source] = headers
	}
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	s.Headers = datatypes.JSON(data)
	return nil
}

// MappingFor returns the stored field mapping of a source
func (s *ImportSettings) MappingFor(source SourceType) FieldMapping {
	all := map[SourceType]FieldMapping{}
	if len(s.Mappings) > 0 {
		_ = json.Unmarshal(s.Mappings, &all)
	}
	if all[source] == nil {
		return FieldMapping{}
	}
	return all[source]
}

// SetMappingFor replaces the stored field mapping of a source
func (s *ImportSettings) SetMappingFor(source SourceType, mapping FieldMapping) error {
	all := map[SourceType]FieldMapping{}
	if len(s.Mappings) > 0 {
		if err := json.Unmarshal(s.Mappings, &all); err != nil {
			return err
		}
	}
	if mapping == nil {
		delete(all, source)
	} else {
		all[source] = mapping
	}
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	s.Mappings = datatypes.JSON(data)
	return nil
}

// ImportRun is the persisted history entry of one import run
type ImportRun struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	TenantID    string         `json:"tenantId" gorm:"not null;index"`
	Source      SourceType     `json:"source"`
	Status      ImportStatus   `json:"status" gorm:"not null"`
	Processed   int            `json:"processed"`
	Created     int            `json:"created"`
	Updated     int            `json:"updated"`
	Failed      int            `json:"failed"`
	Errors      datatypes.JSON `json:"errors,omitempty" gorm:"type:jsonb"`
	TriggeredBy *string        `json:"triggeredBy,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  time.Time      `json:"finishedAt"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// TableName returns the table name for the ImportRun model
func (ImportRun) TableName() string {
	return "import_runs"
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity     string                 `json:"entity"`
	Version    string                 `json:"version"`
	Columns    []ImportTemplateColumn `json:"columns"`
	SampleData []map[string]string    `json:"sampleData,omitempty"`
}

// ProductImportColumns returns the column definitions for product import
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: string(FieldName), Description: "Product name", Required: false, Type: "string", Example: "Shirt"},
		{Name: string(FieldSKU), Description: "Unique product SKU", Required: true, Type: "string", Example: "A1"},
		{Name: string(FieldDescription), Description: "Long description", Required: false, Type: "string", Example: "Cotton shirt"},
		{Name: string(FieldShortDescription), Description: "Short description", Required: false, Type: "string", Example: "Shirt"},
		{Name: string(FieldAttributesJSON), Description: "JSON list of {name, options, is_visible, is_variation}", Required: false, Type: "json", Example: `[{"name":"Color","options":["Red","Blue"],"is_variation":true}]`},
		{Name: string(FieldVariationsJSON), Description: "JSON list of {sku, attributes:[{name, option}], regular_price, stock_quantity}", Required: false, Type: "json", Example: `[{"sku":"A1-RED","attributes":[{"name":"Color","option":"Red"}],"regular_price":"10.00"}]`},
	}
}

// StartImportRequest triggers an import of the configured source
type StartImportRequest struct {
	Source SourceType `json:"source,omitempty"`
}

// UpdateSettingsRequest updates import settings; nil fields are left unchanged
type UpdateSettingsRequest struct {
	SelectedSource *SourceType       `json:"selectedSource,omitempty"`
	GoogleKeyJSON  *string           `json:"googleKeyJson,omitempty"`
	SpreadsheetID  *string           `json:"spreadsheetId,omitempty"`
	SheetName      *string           `json:"sheetName,omitempty"`
	AirtableToken  *string           `json:"airtableToken,omitempty"`
	AirtableBaseID *string           `json:"airtableBaseId,omitempty"`
	AirtableTable  *string           `json:"airtableTable,omitempty"`
	S3Bucket       *string           `json:"s3Bucket,omitempty"`
	S3Key          *string           `json:"s3Key,omitempty"`
	Headers        []string          `json:"headers,omitempty"`
	Mapping        map[string]string `json:"mapping,omitempty"`
}

// SettingsResponse is the public view of import settings
type SettingsResponse struct {
	SelectedSource   SourceType   `json:"selectedSource"`
	SpreadsheetID    *string      `json:"spreadsheetId,omitempty"`
	SheetName        *string      `json:"sheetName,omitempty"`
	HasGoogleKey     bool         `json:"hasGoogleKey"`
	AirtableBaseID   *string      `json:"airtableBaseId,omitempty"`
	AirtableTable    *string      `json:"airtableTable,omitempty"`
	HasAirtableToken bool         `json:"hasAirtableToken"`
	S3Bucket         *string      `json:"s3Bucket,omitempty"`
	S3Key            *string      `json:"s3Key,omitempty"`
	Headers          []string     `json:"headers"`
	Mapping          FieldMapping `json:"mapping"`
	TargetFields     []FieldKey   `json:"targetFields"`
}

// SourceRequest identifies a source for connection tests and sampling.
// Empty fields fall back to stored settings.
type SourceRequest struct {
	Source SourceType `json:"source" binding:"required"`
	Limit  int        `json:"limit,omitempty"`
}

// SampleResponse holds discovered headers and the first rows of a source
type SampleResponse struct {
	Source  SourceType               `json:"source"`
	Headers []string                 `json:"headers"`
	Rows    []map[string]interface{} `json:"rows"`
}

// RunResponse reports a finished run with its display level
type RunResponse struct {
	Run    *ImportRun   `json:"run,omitempty"`
	Result ImportResult `json:"result"`
	Level  string       `json:"level"`
}

// RunListResponse is one page of import run history
type RunListResponse struct {
	Runs  []ImportRun `json:"runs"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

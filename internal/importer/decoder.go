package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"catalog-import-service/internal/models"
)

var decimalPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Decode turns a normalized row into a typed product record. Malformed
// structured fields fail the row; malformed entries inside them are dropped
// and reported as defects.
func Decode(row models.NormalizedRow) (models.ProductRecord, []FieldDefect, error) {
	fields := canonicalFields(row)

	record := models.ProductRecord{
		Name:             scalarText(fields[models.FieldName]),
		SKU:              scalarText(fields[models.FieldSKU]),
		Description:      scalarText(fields[models.FieldDescription]),
		ShortDescription: scalarText(fields[models.FieldShortDescription]),
	}
	if record.SKU == "" {
		return models.ProductRecord{}, nil, &RowFailure{Reason: ReasonMissingSKU, Field: models.FieldSKU}
	}

	attrEntries, err := recordList(fields, models.FieldAttributesJSON)
	if err != nil {
		return models.ProductRecord{}, nil, err
	}
	varEntries, err := recordList(fields, models.FieldVariationsJSON)
	if err != nil {
		return models.ProductRecord{}, nil, err
	}

	var defects []FieldDefect
	record.Attributes = make([]models.AttributeDef, 0, len(attrEntries))
	for i, entry := range attrEntries {
		attr, msg := decodeAttribute(entry)
		if msg != "" {
			defects = append(defects, FieldDefect{Field: models.FieldAttributesJSON, Index: i, Message: msg})
			continue
		}
		attr.Position = len(record.Attributes)
		record.Attributes = append(record.Attributes, attr)
	}

	record.Variations = make([]models.VariationDef, 0, len(varEntries))
	for i, entry := range varEntries {
		variation, msg := decodeVariation(entry)
		if msg != "" {
			defects = append(defects, FieldDefect{Field: models.FieldVariationsJSON, Index: i, Message: msg})
			continue
		}
		record.Variations = append(record.Variations, variation)
	}

	return record, defects, nil
}

// canonicalFields renames aliases; an explicit canonical key wins over its alias
func canonicalFields(row models.NormalizedRow) map[models.FieldKey]interface{} {
	fields := make(map[models.FieldKey]interface{}, len(row))
	for key, value := range row {
		canonical := key.Canonical()
		if canonical != key {
			if _, exists := row[canonical]; exists {
				continue
			}
		}
		fields[canonical] = value
	}
	return fields
}

// scalarText renders a scalar cell value as trimmed text
func scalarText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// recordList parses a structured field into its list of records. A blank or
// missing field is an empty list.
func recordList(fields map[models.FieldKey]interface{}, key models.FieldKey) ([]map[string]json.RawMessage, error) {
	value, ok := fields[key]
	if !ok || value == nil {
		return nil, nil
	}

	var payload []byte
	switch v := value.(type) {
	case string:
		payload = []byte(strings.TrimSpace(v))
	case []byte:
		payload = bytes.TrimSpace(v)
	case []interface{}, map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, &RowFailure{Reason: ReasonInvalidField, Field: key, Detail: err.Error()}
		}
		payload = data
	default:
		return nil, &RowFailure{Reason: ReasonInvalidField, Field: key, Detail: fmt.Sprintf("expected JSON text, got %T", value)}
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, &RowFailure{Reason: ReasonInvalidField, Field: key, Detail: describeJSONError(err)}
	}
	return entries, nil
}

func describeJSONError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("expected a list of objects, found %s", typeErr.Value)
	}
	return err.Error()
}

func decodeAttribute(entry map[string]json.RawMessage) (models.AttributeDef, string) {
	if entry == nil {
		return models.AttributeDef{}, "entry is not an object"
	}
	name, _ := jsonText(entry["name"])
	if name == "" {
		return models.AttributeDef{}, "missing name"
	}

	var rawOptions []json.RawMessage
	if raw, ok := entry["options"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &rawOptions); err != nil {
			return models.AttributeDef{}, fmt.Sprintf("options of %q is not a list", name)
		}
	}
	options := make([]string, 0, len(rawOptions))
	for _, raw := range rawOptions {
		if option, ok := jsonText(raw); ok && option != "" {
			options = append(options, option)
		}
	}
	if len(options) == 0 {
		return models.AttributeDef{}, fmt.Sprintf("attribute %q has no options", name)
	}

	return models.AttributeDef{
		Name:        name,
		Options:     options,
		IsVisible:   jsonFlag(entry["is_visible"]),
		IsVariation: jsonFlag(entry["is_variation"]),
	}, ""
}

func decodeVariation(entry map[string]json.RawMessage) (models.VariationDef, string) {
	if entry == nil {
		return models.VariationDef{}, "entry is not an object"
	}
	sku, _ := jsonText(entry["sku"])
	label := "variation"
	if sku != "" {
		label = fmt.Sprintf("variation %s", sku)
	}

	var rawSelection []map[string]json.RawMessage
	if raw, ok := entry["attributes"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &rawSelection); err != nil {
			return models.VariationDef{}, fmt.Sprintf("%s: attributes is not a list of {name, option}", label)
		}
	}
	if len(rawSelection) == 0 {
		return models.VariationDef{}, fmt.Sprintf("%s: missing attributes", label)
	}
	selection := make([]models.AttributeSelection, 0, len(rawSelection))
	for _, pair := range rawSelection {
		name, _ := jsonText(pair["name"])
		option, ok := jsonText(pair["option"])
		if name == "" || !ok {
			return models.VariationDef{}, fmt.Sprintf("%s: attribute entry without name or option", label)
		}
		selection = append(selection, models.AttributeSelection{Name: name, Option: option})
	}

	variation := models.VariationDef{SKU: sku, Attributes: selection}

	if raw, ok := entry["regular_price"]; ok && !isNull(raw) {
		price, _ := jsonText(raw)
		if price != "" {
			if !decimalPattern.MatchString(price) {
				return models.VariationDef{}, fmt.Sprintf("%s: regular_price %q is not a decimal", label, price)
			}
			variation.RegularPrice = &price
		}
	}

	if raw, ok := entry["stock_quantity"]; ok && !isNull(raw) {
		text, _ := jsonText(raw)
		if text != "" {
			qty, err := strconv.Atoi(text)
			if err != nil {
				return models.VariationDef{}, fmt.Sprintf("%s: stock_quantity %q is not an integer", label, text)
			}
			variation.StockQuantity = &qty
		}
	}

	return variation, ""
}

// jsonText reads a JSON string or number as text. The boolean reports
// whether the value was present and scalar.
func jsonText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// jsonFlag reads an optional boolean; "1"/"true" strings and 1 count as true
func jsonFlag(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	text, _ := jsonText(raw)
	parsed, err := strconv.ParseBool(text)
	return err == nil && parsed
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

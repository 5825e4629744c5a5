package importer

import (
	"strings"

	"catalog-import-service/internal/models"
)

// Normalize flattens a raw row into target field -> raw value using the
// mapping. Mapped names that cannot be resolved are left out.
func Normalize(row models.RawRow, mapping models.FieldMapping, headers []string) models.NormalizedRow {
	normalized := make(models.NormalizedRow, len(mapping))
	for key, source := range mapping {
		if source == "" {
			continue
		}
		if row.IsKeyed() {
			if value, ok := row.Fields[source]; ok {
				normalized[key] = value
			}
			continue
		}
		idx := headerIndex(headers, source)
		if idx < 0 || idx >= len(row.Cells) {
			continue
		}
		normalized[key] = row.Cells[idx]
	}
	return normalized
}

// headerIndex prefers an exact match and falls back to a trimmed,
// case-insensitive one
func headerIndex(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range headers {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify folds accents, lowercases s and collapses everything that is not a
// letter or digit into single hyphens
func Slugify(s string) string {
	slug := strings.ToLower(strings.TrimSpace(s))
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, slug); err == nil {
		slug = folded
	}
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// AttributeKey is the canonical key of a global product attribute ("pa_" + slug)
func AttributeKey(name string) string {
	slug := Slugify(name)
	if slug == "" {
		return ""
	}
	return "pa_" + slug
}

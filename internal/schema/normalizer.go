// Package schema maps human-readable source column labels to the canonical
// identifiers used by the warehouse.
package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD and removes combining marks, so "Localización"
// becomes "Localizacion". Composed back to NFC for stable output.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize converts a raw column label to its canonical identifier:
// diacritics stripped, lowercased, trimmed, interior whitespace replaced
// with underscores, and anything outside [a-z0-9_] dropped.
//
// The function is pure and total: it never fails, and the same input always
// yields the same output regardless of locale.
func Normalize(label string) string {
	out, _, err := transform.String(stripMarks, label)
	if err != nil {
		// Invalid UTF-8 sequences pass through undecomposed; the
		// character filter below still guarantees a clean identifier.
		out = label
	}

	out = strings.ToLower(strings.TrimSpace(out))

	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeAll normalizes a header row in place order, returning a new slice.
func NormalizeAll(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = Normalize(l)
	}
	return out
}

// loadAliases holds the fixed column-name discrepancies between the source
// extract and the raw store schema. This is independent of Normalize: the
// source header normalizes to "referencia_de_localizacion" but the warehouse
// column is "referencia_localizacion".
var loadAliases = map[string]string{
	"referencia_de_localizacion": "referencia_localizacion",
}

// LoadAlias maps a normalized column name to its raw-store column name.
// Columns without a known discrepancy map to themselves.
func LoadAlias(column string) string {
	if alias, ok := loadAliases[column]; ok {
		return alias
	}
	return column
}

// Package transform implements the transformation stage: type coercion and
// feature derivation from raw rows into the analytics store.
//
// Every per-field rule is a pure function, so categorization and coercion
// are unit-testable without touching the storage engine.
package transform

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Strict decimal patterns. Coercion accepts only plain decimal numbers;
// free text ("no calculable", "en revision"), blanks, and scientific
// notation all degrade to an absent value, never a parse error.
var (
	unsignedDecimalRe = regexp.MustCompile(`^[0-9]+\.?[0-9]*$`)
	signedDecimalRe   = regexp.MustCompile(`^-?[0-9]+\.?[0-9]*$`)
)

// CoerceDecimal coerces a trimmed text value to a number. Magnitude and
// depth in the source catalog are never negative, so their pattern rejects
// a leading minus; coordinates accept one.
func CoerceDecimal(s string, signed bool) *float64 {
	s = strings.TrimSpace(s)

	re := unsignedDecimalRe
	if signed {
		re = signedDecimalRe
	}
	if !re.MatchString(s) {
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// eventTimeLayout matches the catalog's DD/MM/YYYY date and HH:MM:SS time.
const eventTimeLayout = "02/01/2006 15:04:05"

// ParseEventTime combines the separate date and time text fields into one
// UTC timestamp. An unparseable combination yields nil for this field only;
// the row's other fields are still attempted.
func ParseEventTime(dateStr, timeStr string) *time.Time {
	combined := strings.TrimSpace(dateStr) + " " + strings.TrimSpace(timeStr)
	t, err := time.ParseInLocation(eventTimeLayout, combined, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

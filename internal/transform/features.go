package transform

import (
	"strings"
	"time"

	"github.com/quakeflow/quakeflow/pkg/types"
)

// MagnitudeCategoryOf buckets a magnitude on closed-open intervals.
// Absence of magnitude yields Unknown (cannot occur past the inclusion
// gate, but the function is total).
func MagnitudeCategoryOf(magnitude *float64) types.MagnitudeCategory {
	if magnitude == nil {
		return types.MagnitudeUnknown
	}
	m := *magnitude
	switch {
	case m < 3.0:
		return types.MagnitudeMinor
	case m < 4.0:
		return types.MagnitudeLight
	case m < 5.0:
		return types.MagnitudeModerate
	case m < 6.0:
		return types.MagnitudeStrong
	case m < 7.0:
		return types.MagnitudeMajor
	default:
		return types.MagnitudeGreat
	}
}

// DepthCategoryOf buckets a depth in kilometers.
func DepthCategoryOf(depthKm *float64) types.DepthCategory {
	if depthKm == nil {
		return types.DepthUnknown
	}
	d := *depthKm
	switch {
	case d < 70:
		return types.DepthShallow
	case d < 300:
		return types.DepthIntermediate
	default:
		return types.DepthDeep
	}
}

// regionRule is one keyword-containment rule.
type regionRule struct {
	region   string
	keywords []string
}

// regionRules is the fixed, ordered rule list. Order matters: location
// references routinely contain more than one matching substring ("OAX" is a
// substring of many references that also carry a neighboring state's
// abbreviation), and the first matching rule wins.
var regionRules = []regionRule{
	{"Michoacán", []string{"MICH"}},
	{"Oaxaca", []string{"OAXACA", "OAX"}},
	{"Guerrero", []string{"GUERRERO", "GRO"}},
	{"Chiapas", []string{"CHIAPAS", "CHIS"}},
	{"CDMX", []string{"CDMX", "CIUDAD DE MEXICO"}},
	{"Puebla", []string{"PUEBLA", "PUE"}},
	{"Veracruz", []string{"VERACRUZ", "VER"}},
}

// RegionOf infers the region from the location reference text by ordered
// first-match, case-insensitive keyword containment. No match yields Other.
func RegionOf(locationRef string) string {
	upper := strings.ToUpper(locationRef)
	for _, rule := range regionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(upper, kw) {
				return rule.region
			}
		}
	}
	return types.RegionOther
}

// IsSignificant flags events with magnitude >= 5.0 or depth < 50 km.
// A missing depth never satisfies the depth clause; the magnitude clause is
// evaluated independently.
func IsSignificant(magnitude, depthKm *float64) bool {
	if magnitude != nil && *magnitude >= 5.0 {
		return true
	}
	if depthKm != nil && *depthKm < 50 {
		return true
	}
	return false
}

// CalendarFeatures derives year, month, weekday name, and hour-of-day from
// the event timestamp.
func CalendarFeatures(t time.Time) (year, month int, dayOfWeek string, hourOfDay int) {
	return t.Year(), int(t.Month()), t.Weekday().String(), t.Hour()
}

package types

// MagnitudeCategory buckets events by magnitude on closed-open intervals.
type MagnitudeCategory string

const (
	MagnitudeMinor    MagnitudeCategory = "Minor"    // < 3.0
	MagnitudeLight    MagnitudeCategory = "Light"    // [3.0, 4.0)
	MagnitudeModerate MagnitudeCategory = "Moderate" // [4.0, 5.0)
	MagnitudeStrong   MagnitudeCategory = "Strong"   // [5.0, 6.0)
	MagnitudeMajor    MagnitudeCategory = "Major"    // [6.0, 7.0)
	MagnitudeGreat    MagnitudeCategory = "Great"    // >= 7.0
	MagnitudeUnknown  MagnitudeCategory = "Unknown"
)

// DepthCategory buckets events by hypocenter depth in kilometers.
type DepthCategory string

const (
	DepthShallow      DepthCategory = "Shallow"      // < 70
	DepthIntermediate DepthCategory = "Intermediate" // [70, 300)
	DepthDeep         DepthCategory = "Deep"         // >= 300
	DepthUnknown      DepthCategory = "Unknown"
)

// RegionOther is the fallback region when no keyword rule matches.
const RegionOther = "Other"

package types

import "time"

// RawRecord is one source row held verbatim: every field keeps its original
// textual representation, including values like "no calculable" that will
// never coerce to a number. The raw store is append-only, so a RawRecord is
// never mutated after load.
type RawRecord struct {
	// Fields maps normalized column names to the untouched source text.
	Fields map[string]string `json:"fields"`

	// BatchID tags the pipeline run that loaded this row.
	BatchID BatchID `json:"batch_id"`

	// LoadedAt is the ingestion timestamp stamped by the loader.
	LoadedAt time.Time `json:"loaded_at"`
}

// Event is a RawRecord reinterpreted with typed fields and derived features.
// Nullable fields use pointers: a nil pointer is an explicit absence of
// value, never a zero measurement.
type Event struct {
	// EventTime is the combined date+time of the earthquake (UTC).
	// Nil when the source date/time pair did not parse.
	EventTime *time.Time

	Magnitude *float64
	Latitude  *float64
	Longitude *float64
	DepthKm   *float64

	// LocationRef is the trimmed human-readable location reference.
	LocationRef string

	// Status is the lowercased review status from the source.
	Status string

	// Calendar features, derived from EventTime. Zero-valued when
	// EventTime is nil.
	Year      int
	Month     int
	DayOfWeek string
	HourOfDay int

	MagnitudeCategory MagnitudeCategory
	DepthCategory     DepthCategory
	Region            string
	IsSignificant     bool

	BatchID BatchID
}

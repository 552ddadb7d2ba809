package types

import "time"

// StatisticsSnapshot is one aggregation run over the entire analytics store.
// Snapshots are append-only: a new run always inserts a fresh row and never
// rewrites an earlier one, so the statistics table doubles as a history of
// what the dashboard saw at each point in time.
type StatisticsSnapshot struct {
	CalculationDate  time.Time
	TotalEarthquakes int64

	// Magnitude KPIs are nil when the analytics store is empty.
	AvgMagnitude *float64
	MaxMagnitude *float64
	MinMagnitude *float64
	AvgDepth     *float64

	SignificantCount int64

	// Count maps, serialized as JSON in the statistics table.
	ByMagnitudeCategory map[string]int64
	ByRegion            map[string]int64 // top 10 regions by count
	ByMonth             map[string]int64 // keyed "1".."12"
}

// Package types provides core data types for the QuakeFlow pipeline.
package types

import (
	"fmt"
	"time"
)

// BatchID identifies one pipeline run. It is derived from the run timestamp
// supplied by the scheduler, so re-triggering the same logical run yields the
// same ID and later runs always sort after earlier ones.
type BatchID string

// batchIDLayout is the compact UTC timestamp format used for batch IDs.
const batchIDLayout = "20060102T150405"

// NewBatchID derives a batch ID from the run timestamp (normalized to UTC).
func NewBatchID(runTime time.Time) BatchID {
	return BatchID(runTime.UTC().Format(batchIDLayout))
}

// ParseBatchID validates a batch ID string and returns the typed value.
func ParseBatchID(s string) (BatchID, error) {
	if _, err := time.Parse(batchIDLayout, s); err != nil {
		return "", fmt.Errorf("types: invalid batch ID %q: %w", s, err)
	}
	return BatchID(s), nil
}

// Time returns the run timestamp encoded in the batch ID.
func (b BatchID) Time() (time.Time, error) {
	return time.Parse(batchIDLayout, string(b))
}

func (b BatchID) String() string {
	return string(b)
}

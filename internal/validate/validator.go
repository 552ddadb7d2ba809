// Package validate implements the validation gate between load and
// transform: the raw store must hold exactly the rows the extractor counted.
package validate

import (
	"context"
	"log"

	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/warehouse"
	"github.com/quakeflow/quakeflow/pkg/types"
)

// Validator reconciles raw-store row counts for a batch.
type Validator struct {
	wh *warehouse.Warehouse
}

// New creates a validator over the given warehouse.
func New(wh *warehouse.Warehouse) *Validator {
	return &Validator{wh: wh}
}

// Run counts the raw rows tagged with the batch and fails with CountMismatch
// if the count differs from the extraction count. A mismatch means silent
// data loss between snapshot and raw store; it is fatal and must be
// surfaced for manual investigation, never transformed around.
func (v *Validator) Run(ctx context.Context, batchID types.BatchID, expectedCount int64) error {
	loaded, err := v.wh.CountRaw(ctx, batchID)
	if err != nil {
		return errors.NewInternalError("failed to count raw rows", err)
	}

	if loaded != expectedCount {
		return errors.NewCountMismatch(batchID.String(), expectedCount, loaded)
	}

	log.Printf("[validate] batch %s: %d rows confirmed", batchID, loaded)
	return nil
}

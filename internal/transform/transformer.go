package transform

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/warehouse"
	"github.com/quakeflow/quakeflow/pkg/types"
)

// Result is the transform stage's success payload.
type Result struct {
	BatchID types.BatchID
	// RawRowCount is the number of raw rows read for the batch.
	RawRowCount int64
	// EventCount is the number of rows that passed the inclusion gate.
	EventCount int64
}

// Transformer reads a batch's raw rows and writes typed, feature-enriched
// events to the analytics store.
type Transformer struct {
	wh *warehouse.Warehouse

	// keepUnparsedTimes keeps rows whose coordinates and magnitude coerced
	// but whose date/time pair did not parse, inserting them with a null
	// timestamp and zero calendar features. When false such rows are
	// excluded entirely.
	keepUnparsedTimes bool
}

// New creates a transformer over the given warehouse.
func New(wh *warehouse.Warehouse, keepUnparsedTimes bool) *Transformer {
	return &Transformer{wh: wh, keepUnparsedTimes: keepUnparsedTimes}
}

// Run transforms one batch. The write is a batch-scoped delete-then-insert
// inside one transaction, so re-running the transform for an unchanged
// batch yields the identical analytics row set.
func (t *Transformer) Run(ctx context.Context, batchID types.BatchID) (*Result, error) {
	records, err := t.wh.RawRecords(ctx, batchID)
	if err != nil {
		return nil, errors.Wrap(errors.StageTransform, errors.CodeTransformFailed,
			fmt.Sprintf("failed to read raw rows for batch %s", batchID), err)
	}

	events := make([]types.Event, 0, len(records))
	for _, rec := range records {
		if ev, ok := t.transformRecord(rec); ok {
			events = append(events, ev)
		}
	}

	if err := t.wh.ReplaceAnalytics(ctx, batchID, events); err != nil {
		return nil, errors.Wrap(errors.StageTransform, errors.CodeTransformFailed,
			fmt.Sprintf("failed to write analytics rows for batch %s", batchID), err)
	}

	log.Printf("[transform] batch %s: %d raw rows, %d analytics rows", batchID, len(records), len(events))

	return &Result{
		BatchID:     batchID,
		RawRowCount: int64(len(records)),
		EventCount:  int64(len(events)),
	}, nil
}

// transformRecord coerces and enriches one raw row. The second return is
// false when the row does not qualify for the analytics store. Exclusion is
// silent: the raw store already holds the row, so nothing is lost.
func (t *Transformer) transformRecord(rec types.RawRecord) (types.Event, bool) {
	magnitude := CoerceDecimal(rec.Fields["magnitud"], false)
	latitude := CoerceDecimal(rec.Fields["latitud"], true)
	longitude := CoerceDecimal(rec.Fields["longitud"], true)
	depth := CoerceDecimal(rec.Fields["profundidad"], false)

	// Inclusion gate: magnitude, latitude, and longitude must all coerce.
	if magnitude == nil || latitude == nil || longitude == nil {
		return types.Event{}, false
	}

	eventTime := ParseEventTime(rec.Fields["fecha_utc"], rec.Fields["hora_utc"])
	if eventTime == nil && !t.keepUnparsedTimes {
		return types.Event{}, false
	}

	ev := types.Event{
		EventTime:   eventTime,
		Magnitude:   magnitude,
		Latitude:    latitude,
		Longitude:   longitude,
		DepthKm:     depth,
		LocationRef: strings.TrimSpace(rec.Fields["referencia_localizacion"]),
		Status:      strings.ToLower(strings.TrimSpace(rec.Fields["estatus"])),
		BatchID:     rec.BatchID,
	}

	if eventTime != nil {
		ev.Year, ev.Month, ev.DayOfWeek, ev.HourOfDay = CalendarFeatures(*eventTime)
	}

	ev.MagnitudeCategory = MagnitudeCategoryOf(magnitude)
	ev.DepthCategory = DepthCategoryOf(depth)
	ev.Region = RegionOf(ev.LocationRef)
	ev.IsSignificant = IsSignificant(magnitude, depth)

	return ev, true
}

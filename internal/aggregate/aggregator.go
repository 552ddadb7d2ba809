// Package aggregate computes summary statistics over the analytics store.
package aggregate

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/warehouse"
	"github.com/quakeflow/quakeflow/pkg/types"
)

// topRegions caps the region count map at the ten largest regions.
const topRegions = 10

// Aggregator recomputes KPIs over the entire analytics store.
type Aggregator struct {
	wh *warehouse.Warehouse
}

// New creates an aggregator over the given warehouse.
func New(wh *warehouse.Warehouse) *Aggregator {
	return &Aggregator{wh: wh}
}

// Run computes a fresh statistics snapshot over all batches and appends it
// to the statistics store. A full recompute costs more than an incremental
// update but cannot drift, which is the right trade for a low-frequency
// scheduled pipeline.
func (a *Aggregator) Run(ctx context.Context) (*types.StatisticsSnapshot, error) {
	scalars, err := a.wh.AnalyticsScalarStats(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.StageAggregate, errors.CodeAggregateFailed,
			"failed to compute scalar statistics", err)
	}

	byCategory, err := a.wh.CountByColumn(ctx, "magnitude_category", "", 0)
	if err != nil {
		return nil, errors.Wrap(errors.StageAggregate, errors.CodeAggregateFailed,
			"failed to count by magnitude category", err)
	}

	byRegion, err := a.wh.CountByColumn(ctx, "region", "count DESC", topRegions)
	if err != nil {
		return nil, errors.Wrap(errors.StageAggregate, errors.CodeAggregateFailed,
			"failed to count by region", err)
	}

	byMonth, err := a.wh.CountByColumn(ctx, "month", "month", 0)
	if err != nil {
		return nil, errors.Wrap(errors.StageAggregate, errors.CodeAggregateFailed,
			"failed to count by month", err)
	}

	snap := &types.StatisticsSnapshot{
		CalculationDate:     time.Now().UTC(),
		TotalEarthquakes:    scalars.Total,
		SignificantCount:    scalars.SignificantCount,
		ByMagnitudeCategory: byCategory,
		ByRegion:            byRegion,
		ByMonth:             byMonth,
	}
	if scalars.AvgMagnitude.Valid {
		v := scalars.AvgMagnitude.Float64
		snap.AvgMagnitude = &v
	}
	if scalars.MaxMagnitude.Valid {
		v := scalars.MaxMagnitude.Float64
		snap.MaxMagnitude = &v
	}
	if scalars.MinMagnitude.Valid {
		v := scalars.MinMagnitude.Float64
		snap.MinMagnitude = &v
	}
	if scalars.AvgDepth.Valid {
		v := scalars.AvgDepth.Float64
		snap.AvgDepth = &v
	}

	if err := a.wh.InsertStatistics(ctx, snap); err != nil {
		return nil, errors.Wrap(errors.StageAggregate, errors.CodeAggregateFailed,
			"failed to persist statistics snapshot", err)
	}

	log.Printf("[aggregate] snapshot: %d events, %d significant, %d regions",
		snap.TotalEarthquakes, snap.SignificantCount, len(snap.ByRegion))

	return snap, nil
}

// TopRegions returns the region names of a snapshot ordered by descending
// count (ties broken by name for stable output). Convenience for callers
// that render the map.
func TopRegions(snap *types.StatisticsSnapshot) []string {
	names := make([]string, 0, len(snap.ByRegion))
	for name := range snap.ByRegion {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := snap.ByRegion[names[i]], snap.ByRegion[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	return names
}

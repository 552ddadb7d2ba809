package aggregate

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeflow/quakeflow/internal/warehouse"
	"github.com/quakeflow/quakeflow/pkg/types"
)

func fp(v float64) *float64 { return &v }

func newTestWarehouse(t *testing.T) *warehouse.Warehouse {
	t.Helper()
	wh, err := warehouse.New(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })
	return wh
}

func analyticsEvent(batchID types.BatchID, ts time.Time, magnitude, depth float64, category types.MagnitudeCategory, region string) types.Event {
	return types.Event{
		EventTime:         &ts,
		Magnitude:         fp(magnitude),
		Latitude:          fp(17.0),
		Longitude:         fp(-98.0),
		DepthKm:           fp(depth),
		LocationRef:       "near " + region,
		Status:            "revisado",
		Year:              ts.Year(),
		Month:             int(ts.Month()),
		DayOfWeek:         ts.Weekday().String(),
		HourOfDay:         ts.Hour(),
		MagnitudeCategory: category,
		DepthCategory:     types.DepthShallow,
		Region:            region,
		IsSignificant:     magnitude >= 5.0 || depth < 50,
		BatchID:           batchID,
	}
}

func TestAggregator_Run(t *testing.T) {
	wh := newTestWarehouse(t)
	ctx := context.Background()
	batchID := types.NewBatchID(time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))

	events := []types.Event{
		analyticsEvent(batchID, time.Date(2025, 2, 1, 1, 0, 0, 0, time.UTC), 3.5, 100, types.MagnitudeLight, "Oaxaca"),
		analyticsEvent(batchID, time.Date(2025, 2, 15, 2, 0, 0, 0, time.UTC), 4.5, 80, types.MagnitudeModerate, "Oaxaca"),
		analyticsEvent(batchID, time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC), 5.5, 10, types.MagnitudeStrong, "Guerrero"),
	}
	require.NoError(t, wh.ReplaceAnalytics(ctx, batchID, events))

	snap, err := New(wh).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), snap.TotalEarthquakes)
	assert.InDelta(t, 4.5, *snap.AvgMagnitude, 1e-9) // ROUND(AVG, 2)
	assert.Equal(t, 5.5, *snap.MaxMagnitude)
	assert.Equal(t, 3.5, *snap.MinMagnitude)
	assert.InDelta(t, 63.33, *snap.AvgDepth, 1e-9)
	assert.Equal(t, int64(1), snap.SignificantCount)

	assert.Equal(t, map[string]int64{"Light": 1, "Moderate": 1, "Strong": 1}, snap.ByMagnitudeCategory)
	assert.Equal(t, map[string]int64{"Oaxaca": 2, "Guerrero": 1}, snap.ByRegion)
	assert.Equal(t, map[string]int64{"2": 2, "3": 1}, snap.ByMonth)

	// The snapshot must also be persisted.
	latest, err := wh.LatestStatistics(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, snap.TotalEarthquakes, latest.TotalEarthquakes)
	assert.Equal(t, snap.ByRegion, latest.ByRegion)
}

func TestAggregator_EmptyStore(t *testing.T) {
	wh := newTestWarehouse(t)

	snap, err := New(wh).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), snap.TotalEarthquakes)
	assert.Nil(t, snap.AvgMagnitude)
	assert.Nil(t, snap.MaxMagnitude)
	assert.Empty(t, snap.ByRegion)
}

func TestAggregator_RegionsCappedAtTen(t *testing.T) {
	wh := newTestWarehouse(t)
	ctx := context.Background()
	batchID := types.NewBatchID(time.Date(2025, 3, 2, 6, 0, 0, 0, time.UTC))

	// Twelve distinct regions with descending counts: region-00 gets 12
	// events, region-11 gets one.
	var events []types.Event
	for r := 0; r < 12; r++ {
		for i := 0; i <= 11-r; i++ {
			ts := time.Date(2025, 3, 1, r, i, 0, 0, time.UTC)
			events = append(events, analyticsEvent(batchID, ts, 4.0, 60, types.MagnitudeModerate, fmt.Sprintf("region-%02d", r)))
		}
	}
	require.NoError(t, wh.ReplaceAnalytics(ctx, batchID, events))

	snap, err := New(wh).Run(ctx)
	require.NoError(t, err)

	assert.Len(t, snap.ByRegion, 10)
	assert.Contains(t, snap.ByRegion, "region-00")
	assert.NotContains(t, snap.ByRegion, "region-10")
	assert.NotContains(t, snap.ByRegion, "region-11")
	assert.Equal(t, int64(12), snap.ByRegion["region-00"])
}

func TestAggregator_FullRecompute(t *testing.T) {
	wh := newTestWarehouse(t)
	ctx := context.Background()
	agg := New(wh)

	batchA := types.NewBatchID(time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC))
	require.NoError(t, wh.ReplaceAnalytics(ctx, batchA, []types.Event{
		analyticsEvent(batchA, time.Date(2025, 4, 1, 1, 0, 0, 0, time.UTC), 4.0, 60, types.MagnitudeModerate, "Oaxaca"),
	}))

	first, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.TotalEarthquakes)

	// A second batch arrives; the next snapshot covers both.
	batchB := types.NewBatchID(time.Date(2025, 4, 2, 6, 0, 0, 0, time.UTC))
	require.NoError(t, wh.ReplaceAnalytics(ctx, batchB, []types.Event{
		analyticsEvent(batchB, time.Date(2025, 4, 2, 1, 0, 0, 0, time.UTC), 6.0, 5, types.MagnitudeMajor, "Guerrero"),
	}))

	second, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.TotalEarthquakes)
	assert.Equal(t, 6.0, *second.MaxMagnitude)
}

func TestTopRegions(t *testing.T) {
	snap := &types.StatisticsSnapshot{
		ByRegion: map[string]int64{"Oaxaca": 5, "Guerrero": 9, "Chiapas": 5, "Puebla": 1},
	}

	got := TopRegions(snap)
	assert.Equal(t, []string{"Guerrero", "Chiapas", "Oaxaca", "Puebla"}, got)
}

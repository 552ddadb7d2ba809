package transform

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeflow/quakeflow/internal/warehouse"
	"github.com/quakeflow/quakeflow/pkg/types"
)

// rawColumns is the seed column order used by these tests, aligned with the
// raw store schema.
var rawColumns = []string{
	"fecha_utc", "hora_utc", "magnitud", "latitud", "longitud",
	"profundidad", "referencia_localizacion", "fecha_local", "hora_local", "estatus",
}

func seedRaw(t *testing.T, wh *warehouse.Warehouse, batchID types.BatchID, rows [][]string) {
	t.Helper()
	_, err := wh.AppendRaw(context.Background(), batchID, rawColumns, rows, time.Now().UTC())
	require.NoError(t, err)
}

func newTestWarehouse(t *testing.T) *warehouse.Warehouse {
	t.Helper()
	wh, err := warehouse.New(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })
	return wh
}

func TestTransformer_Run(t *testing.T) {
	wh := newTestWarehouse(t)
	batchID := types.NewBatchID(time.Date(2025, 1, 15, 6, 0, 0, 0, time.UTC))

	seedRaw(t, wh, batchID, [][]string{
		{"15/01/2025", "06:30:45", "5.2", "18.1", "-99.2", "10", "7 km al SURESTE de ACAPULCO, GRO", "15/01/2025", "00:30:45", "Revisado"},
		{"15/01/2025", "07:00:00", "no calculable", "18.1", "-99.2", "10", "cerca de OAXACA, OAX", "15/01/2025", "01:00:00", "Revisado"},
		{"15/01/2025", "08:00:00", "3.4", "17.0", "-95.0", "120.5", "12 km al NORTE de OAXACA, OAX", "15/01/2025", "02:00:00", "verificado"},
	})

	tr := New(wh, false)
	res, err := tr.Run(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.RawRowCount)
	assert.Equal(t, int64(2), res.EventCount)

	events, err := wh.ListEventsByBatch(context.Background(), batchID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0]
	require.NotNil(t, first.EventTime)
	assert.Equal(t, time.Date(2025, 1, 15, 6, 30, 45, 0, time.UTC), first.EventTime.UTC())
	assert.Equal(t, 5.2, *first.Magnitude)
	assert.Equal(t, 18.1, *first.Latitude)
	assert.Equal(t, -99.2, *first.Longitude)
	assert.Equal(t, 10.0, *first.DepthKm)
	assert.Equal(t, types.MagnitudeStrong, first.MagnitudeCategory)
	assert.Equal(t, types.DepthShallow, first.DepthCategory)
	assert.Equal(t, "Guerrero", first.Region)
	assert.True(t, first.IsSignificant)
	assert.Equal(t, 2025, first.Year)
	assert.Equal(t, 1, first.Month)
	assert.Equal(t, "Wednesday", first.DayOfWeek)
	assert.Equal(t, 6, first.HourOfDay)
	assert.Equal(t, "revisado", first.Status)

	second := events[1]
	assert.Equal(t, types.MagnitudeLight, second.MagnitudeCategory)
	assert.Equal(t, types.DepthIntermediate, second.DepthCategory)
	assert.Equal(t, "Oaxaca", second.Region)
	assert.False(t, second.IsSignificant)
}

func TestTransformer_InclusionGate(t *testing.T) {
	wh := newTestWarehouse(t)
	batchID := types.NewBatchID(time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC))

	seedRaw(t, wh, batchID, [][]string{
		{"01/02/2025", "01:00:00", "no calculable", "18.1", "-99.2", "10", "GRO", "", "", "revisado"},
		{"01/02/2025", "02:00:00", "4.0", "", "-99.2", "10", "GRO", "", "", "revisado"},
		{"01/02/2025", "03:00:00", "4.0", "18.1", "en revision", "10", "GRO", "", "", "revisado"},
		{"01/02/2025", "04:00:00", "4.0", "18.1", "-99.2", "no calculable", "GRO", "", "", "revisado"},
	})

	tr := New(wh, false)
	res, err := tr.Run(context.Background(), batchID)
	require.NoError(t, err)

	// Only the last row passes: depth is optional, coordinates and
	// magnitude are not.
	require.Equal(t, int64(1), res.EventCount)

	events, err := wh.ListEventsByBatch(context.Background(), batchID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].DepthKm)
	assert.Equal(t, types.DepthUnknown, events[0].DepthCategory)
}

func TestTransformer_UnparsedTimePolicy(t *testing.T) {
	rows := [][]string{
		{"bad date", "06:30:45", "4.2", "18.1", "-99.2", "10", "GRO", "", "", "revisado"},
	}

	t.Run("excluded by default", func(t *testing.T) {
		wh := newTestWarehouse(t)
		batchID := types.NewBatchID(time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
		seedRaw(t, wh, batchID, rows)

		res, err := New(wh, false).Run(context.Background(), batchID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.EventCount)
	})

	t.Run("kept when configured", func(t *testing.T) {
		wh := newTestWarehouse(t)
		batchID := types.NewBatchID(time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
		seedRaw(t, wh, batchID, rows)

		res, err := New(wh, true).Run(context.Background(), batchID)
		require.NoError(t, err)
		require.Equal(t, int64(1), res.EventCount)

		events, err := wh.ListEventsByBatch(context.Background(), batchID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Nil(t, events[0].EventTime)
		assert.Zero(t, events[0].Year)
		assert.Empty(t, events[0].DayOfWeek)
	})
}

func TestTransformer_RerunIsIdempotent(t *testing.T) {
	wh := newTestWarehouse(t)
	batchID := types.NewBatchID(time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC))

	seedRaw(t, wh, batchID, [][]string{
		{"01/04/2025", "06:00:00", "4.5", "16.2", "-98.0", "33", "OAX", "", "", "revisado"},
		{"01/04/2025", "07:00:00", "3.1", "17.5", "-94.8", "80", "CHIS", "", "", "revisado"},
	})

	tr := New(wh, false)
	_, err := tr.Run(context.Background(), batchID)
	require.NoError(t, err)
	first, err := wh.ListEventsByBatch(context.Background(), batchID)
	require.NoError(t, err)

	// A retried transform for the same unchanged batch must yield the
	// same analytics rows, not duplicates.
	_, err = tr.Run(context.Background(), batchID)
	require.NoError(t, err)
	second, err := wh.ListEventsByBatch(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	count, err := wh.CountAnalytics(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestTransformer_DoesNotTouchOtherBatches(t *testing.T) {
	wh := newTestWarehouse(t)
	ctx := context.Background()

	batchA := types.NewBatchID(time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC))
	batchB := types.NewBatchID(time.Date(2025, 5, 2, 6, 0, 0, 0, time.UTC))

	seedRaw(t, wh, batchA, [][]string{
		{"01/05/2025", "06:00:00", "4.5", "16.2", "-98.0", "33", "OAX", "", "", "revisado"},
	})
	seedRaw(t, wh, batchB, [][]string{
		{"02/05/2025", "06:00:00", "5.5", "17.2", "-99.0", "12", "GRO", "", "", "revisado"},
	})

	tr := New(wh, false)
	_, err := tr.Run(ctx, batchA)
	require.NoError(t, err)
	_, err = tr.Run(ctx, batchB)
	require.NoError(t, err)

	// Re-running batch B must leave batch A's rows alone.
	_, err = tr.Run(ctx, batchB)
	require.NoError(t, err)

	countA, err := wh.CountAnalytics(ctx, batchA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countA)

	total, err := wh.CountAnalytics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qferrors "github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/snapshot"
	"github.com/quakeflow/quakeflow/internal/storage"
	"github.com/quakeflow/quakeflow/pkg/types"
)

const testCSV = `Fecha UTC,Hora UTC,Magnitud,Latitud,Longitud,Profundidad,Referencia de Localización,Fecha Local,Hora Local,Estatus
15/01/2025,06:30:45,5.2,18.1,-99.2,10,"7 km al SURESTE de ACAPULCO, GRO",15/01/2025,00:30:45,revisado
15/01/2025,07:00:00,no calculable,18.1,-99.2,10,"cerca de OAXACA, OAX",15/01/2025,01:00:00,revisado
`

func newTestExtractor(t *testing.T, csvContent string) (*Extractor, *storage.LocalStorage) {
	t.Helper()

	sourcePath := filepath.Join(t.TempDir(), "Sismos.csv")
	if csvContent != "" {
		require.NoError(t, os.WriteFile(sourcePath, []byte(csvContent), 0644))
	}

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	return New(sourcePath, store, "raw/earthquakes", t.TempDir()), store
}

func TestExtractor_Run(t *testing.T) {
	ex, store := newTestExtractor(t, testCSV)
	batchID := types.NewBatchID(time.Date(2025, 1, 15, 6, 0, 0, 0, time.UTC))

	res, err := ex.Run(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, batchID, res.BatchID)
	assert.Equal(t, int64(2), res.RowCount)
	assert.Equal(t, "raw/earthquakes/earthquakes_raw_20250115T060000.qsnap", res.SnapshotPath)

	// The snapshot must carry normalized column names and verbatim values.
	localPath := filepath.Join(t.TempDir(), "check.qsnap")
	require.NoError(t, store.Download(context.Background(), res.SnapshotPath, localPath))
	snap, err := snapshot.ReadFile(localPath)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"fecha_utc", "hora_utc", "magnitud", "latitud", "longitud",
		"profundidad", "referencia_de_localizacion", "fecha_local", "hora_local", "estatus",
	}, snap.Manifest.Columns)
	assert.Equal(t, "no calculable", snap.Rows[1][2])
	assert.Equal(t, batchID, snap.Manifest.BatchID)
}

func TestExtractor_DuplicateBatch(t *testing.T) {
	ex, _ := newTestExtractor(t, testCSV)
	batchID := types.NewBatchID(time.Date(2025, 1, 15, 6, 0, 0, 0, time.UTC))

	_, err := ex.Run(context.Background(), batchID)
	require.NoError(t, err)

	_, err = ex.Run(context.Background(), batchID)
	require.Error(t, err)
	assert.Equal(t, qferrors.CodeDuplicateBatch, qferrors.GetCode(err))
	assert.False(t, qferrors.IsRetryable(err))

	// A different batch still extracts fine.
	other := types.NewBatchID(time.Date(2025, 1, 16, 6, 0, 0, 0, time.UTC))
	_, err = ex.Run(context.Background(), other)
	assert.NoError(t, err)
}

func TestExtractor_SourceUnavailable(t *testing.T) {
	ex, _ := newTestExtractor(t, "")
	batchID := types.NewBatchID(time.Date(2025, 1, 15, 6, 0, 0, 0, time.UTC))

	_, err := ex.Run(context.Background(), batchID)
	require.Error(t, err)

	var pe *qferrors.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, qferrors.CodeSourceUnavailable, pe.Code)
	assert.False(t, pe.Retryable)
}

func TestExtractor_EmptySource(t *testing.T) {
	// A file with a header and zero data rows is a valid, empty batch.
	ex, _ := newTestExtractor(t, "Fecha UTC,Hora UTC,Magnitud\n")
	batchID := types.NewBatchID(time.Date(2025, 1, 15, 6, 0, 0, 0, time.UTC))

	res, err := ex.Run(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RowCount)
}

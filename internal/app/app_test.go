package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeflow/quakeflow/internal/config"
	"github.com/quakeflow/quakeflow/internal/export"
	"github.com/quakeflow/quakeflow/internal/storage"
	"github.com/quakeflow/quakeflow/internal/warehouse"
)

const appCSV = `Fecha UTC,Hora UTC,Magnitud,Latitud,Longitud,Profundidad,Referencia de Localización,Fecha Local,Hora Local,Estatus
15/01/2025,06:30:45,5.2,18.1,-99.2,10,"7 km al SURESTE de ACAPULCO, GRO",15/01/2025,00:30:45,revisado
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "qf")
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 4 * time.Millisecond
	cfg.Resolve()

	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Source.Path), 0755))
	require.NoError(t, os.WriteFile(cfg.Source.Path, []byte(appCSV), 0644))

	return cfg
}

func TestApp_FullRun(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Open(ctx))

	runTime := time.Date(2025, 1, 15, 6, 0, 0, 0, time.UTC)
	rc, err := a.Run(ctx, runTime)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	assert.Equal(t, "20250115T060000", rc.BatchID.String())
	assert.Equal(t, int64(1), rc.LoadedRowCount)
	assert.Equal(t, int64(1), rc.EventCount)

	// The warehouse and artifact survive the app shutdown.
	wh, err := warehouse.New(cfg.Warehouse.Path)
	require.NoError(t, err)
	defer wh.Close()

	count, err := wh.CountAnalytics(ctx, rc.BatchID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	store, err := storage.NewLocalStorage(cfg.Storage.Path)
	require.NoError(t, err)
	local := filepath.Join(t.TempDir(), "out.qcol")
	require.NoError(t, store.Download(ctx, cfg.Export.ObjectPath, local))
	header, _, err := export.ReadArtifact(local)
	require.NoError(t, err)
	assert.Equal(t, 1, header.RowCount)
}

func TestApp_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Type = "carrier-pigeon"

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestApp_UnknownStorageType(t *testing.T) {
	// Validation catches bad types at New; Open re-checks when building
	// the storage backend.
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)

	a.cfg.Storage.Type = "gcs"
	err = a.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

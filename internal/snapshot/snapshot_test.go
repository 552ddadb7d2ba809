package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeflow/quakeflow/pkg/types"
)

var testColumns = []string{"fecha_utc", "hora_utc", "magnitud"}

func testRows() [][]string {
	return [][]string{
		{"15/01/2025", "06:30:45", "5.2"},
		{"15/01/2025", "07:00:00", "no calculable"},
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	batchID := types.NewBatchID(time.Date(2025, 1, 15, 6, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "batch.qsnap")

	snap := New(batchID, testColumns, testRows())
	require.NoError(t, snap.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, batchID, got.Manifest.BatchID)
	assert.Equal(t, testColumns, got.Manifest.Columns)
	assert.Equal(t, 2, got.Manifest.RowCount)
	assert.Equal(t, testRows(), got.Rows)
}

func TestSnapshot_EmptyRows(t *testing.T) {
	batchID := types.NewBatchID(time.Date(2025, 1, 16, 6, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "empty.qsnap")

	snap := New(batchID, testColumns, nil)
	require.NoError(t, snap.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Manifest.RowCount)
	assert.Empty(t, got.Rows)
}

func TestSnapshot_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.qsnap")
	require.NoError(t, os.WriteFile(path, []byte("NOTASNAP0000"), 0644))

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestSnapshot_Truncated(t *testing.T) {
	batchID := types.NewBatchID(time.Date(2025, 1, 17, 6, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "whole.qsnap")

	snap := New(batchID, testColumns, testRows())
	require.NoError(t, snap.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	truncPath := filepath.Join(t.TempDir(), "trunc.qsnap")
	require.NoError(t, os.WriteFile(truncPath, data[:len(data)-5], 0644))

	_, err = ReadFile(truncPath)
	require.Error(t, err)
}

func TestSnapshot_ChecksumDetectsCorruption(t *testing.T) {
	batchID := types.NewBatchID(time.Date(2025, 1, 18, 6, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "whole.qsnap")

	snap := New(batchID, testColumns, testRows())
	require.NoError(t, snap.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip one bit in the compressed row payload.
	data[len(data)-1] ^= 0x01

	corruptPath := filepath.Join(t.TempDir(), "corrupt.qsnap")
	require.NoError(t, os.WriteFile(corruptPath, data, 0644))

	_, err = ReadFile(corruptPath)
	require.Error(t, err)
}

func TestSnapshot_TooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.qsnap")
	require.NoError(t, os.WriteFile(path, []byte("QS"), 0644))

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

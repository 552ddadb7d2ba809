// Package extract implements the extraction stage: it reads the external
// source, normalizes its schema, and materializes an immutable batch-tagged
// snapshot in the artifact store.
package extract

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/schema"
	"github.com/quakeflow/quakeflow/internal/snapshot"
	"github.com/quakeflow/quakeflow/internal/source"
	"github.com/quakeflow/quakeflow/internal/storage"
	"github.com/quakeflow/quakeflow/pkg/types"
)

// Result is the extraction stage's success payload, consumed by the loader.
type Result struct {
	BatchID      types.BatchID
	SnapshotPath string
	RowCount     int64
}

// Extractor reads the source and writes one snapshot per batch.
type Extractor struct {
	sourcePath     string
	store          storage.ObjectStorage
	snapshotPrefix string
	stagingDir     string
}

// New creates an extractor for the given source file and artifact store.
func New(sourcePath string, store storage.ObjectStorage, snapshotPrefix, stagingDir string) *Extractor {
	return &Extractor{
		sourcePath:     sourcePath,
		store:          store,
		snapshotPrefix: snapshotPrefix,
		stagingDir:     stagingDir,
	}
}

// SnapshotPath returns the object path of the snapshot for a batch.
func (e *Extractor) SnapshotPath(batchID types.BatchID) string {
	return fmt.Sprintf("%s/earthquakes_raw_%s.qsnap", e.snapshotPrefix, batchID)
}

// Run performs one extraction. Batches are keyed by run timestamp, so a
// snapshot already existing for this batch signals caller misuse and fails
// with DuplicateBatch rather than re-extracting.
func (e *Extractor) Run(ctx context.Context, batchID types.BatchID) (*Result, error) {
	log.Printf("[extract] batch %s: reading source %s", batchID, e.sourcePath)

	table, err := source.ReadCSV(e.sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewSourceUnavailable(e.sourcePath, err)
		}
		if _, statErr := os.Stat(e.sourcePath); statErr != nil {
			return nil, errors.NewSourceUnavailable(e.sourcePath, err)
		}
		return nil, errors.Wrap(errors.StageExtract, errors.CodeSourceMalformed,
			fmt.Sprintf("failed to parse source %s", e.sourcePath), err)
	}

	// Normalize column labels before any other stage sees the data.
	// Row values stay untouched: "no calculable" and friends must survive
	// verbatim into the raw layer.
	columns := schema.NormalizeAll(table.Columns)

	objectPath := e.SnapshotPath(batchID)
	exists, err := e.store.Exists(ctx, objectPath)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("failed to check for existing snapshot %s", objectPath), err)
	}
	if exists {
		return nil, errors.NewDuplicateBatch(batchID.String())
	}

	snap := snapshot.New(batchID, columns, table.Rows)

	stagingPath := filepath.Join(e.stagingDir, fmt.Sprintf("snap-%s.tmp", uuid.New().String()[:8]))
	if err := snap.WriteFile(stagingPath); err != nil {
		return nil, errors.NewInternalError("failed to stage snapshot", err)
	}
	defer os.Remove(stagingPath)

	if err := e.store.Upload(ctx, stagingPath, objectPath); err != nil {
		return nil, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("failed to upload snapshot %s", objectPath), err)
	}

	log.Printf("[extract] batch %s: %d rows snapshotted to %s", batchID, table.RowCount(), objectPath)

	return &Result{
		BatchID:      batchID,
		SnapshotPath: objectPath,
		RowCount:     int64(table.RowCount()),
	}, nil
}

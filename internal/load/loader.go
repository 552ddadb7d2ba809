// Package load implements the load stage: it appends a batch snapshot to the
// raw store exactly as extracted, with no type narrowing.
package load

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/schema"
	"github.com/quakeflow/quakeflow/internal/snapshot"
	"github.com/quakeflow/quakeflow/internal/storage"
	"github.com/quakeflow/quakeflow/internal/warehouse"
	"github.com/quakeflow/quakeflow/pkg/types"
)

// Result is the load stage's success payload.
type Result struct {
	BatchID        types.BatchID
	LoadedRowCount int64
}

// Loader appends snapshots to the raw store.
type Loader struct {
	store      storage.ObjectStorage
	wh         *warehouse.Warehouse
	stagingDir string
}

// New creates a loader over the given artifact store and warehouse.
func New(store storage.ObjectStorage, wh *warehouse.Warehouse, stagingDir string) *Loader {
	return &Loader{store: store, wh: wh, stagingDir: stagingDir}
}

// Run loads one batch snapshot into the raw store. The append runs in a
// single batch-scoped transaction, so a failed attempt leaves no rows and
// the orchestrator can retry without duplicating raw data.
func (l *Loader) Run(ctx context.Context, batchID types.BatchID, snapshotPath string) (*Result, error) {
	localPath := filepath.Join(l.stagingDir, fmt.Sprintf("load-%s.tmp", uuid.New().String()[:8]))
	defer os.Remove(localPath)

	if err := l.store.Download(ctx, snapshotPath, localPath); err != nil {
		return nil, errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("failed to download snapshot %s", snapshotPath), err)
	}

	snap, err := snapshot.ReadFile(localPath)
	if err != nil {
		return nil, errors.NewSnapshotCorrupt(snapshotPath, err.Error())
	}
	if snap.Manifest.BatchID != batchID {
		return nil, errors.NewSnapshotCorrupt(snapshotPath,
			fmt.Sprintf("manifest batch %s does not match run batch %s", snap.Manifest.BatchID, batchID))
	}

	// Apply the fixed source-to-store alias rules. This is independent of
	// the normalizer: the snapshot already carries normalized names.
	columns := make([]string, len(snap.Manifest.Columns))
	for i, col := range snap.Manifest.Columns {
		columns[i] = schema.LoadAlias(col)
	}

	loaded, err := l.wh.AppendRaw(ctx, batchID, columns, snap.Rows, time.Now().UTC())
	if err != nil {
		return nil, errors.Wrap(errors.StageLoad, errors.CodeLoadFailed,
			fmt.Sprintf("failed to append batch %s to raw store", batchID), err)
	}

	log.Printf("[load] batch %s: %d raw rows appended", batchID, loaded)

	return &Result{BatchID: batchID, LoadedRowCount: loaded}, nil
}

package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/storage"
	"github.com/quakeflow/quakeflow/internal/warehouse"
)

// Result is the export stage's success payload.
type Result struct {
	ObjectPath    string
	ExportedRows  int64
	ArtifactBytes int64
}

// Exporter snapshots the analytics store to the well-known artifact path.
type Exporter struct {
	wh         *warehouse.Warehouse
	store      storage.ObjectStorage
	objectPath string
	stagingDir string
}

// New creates an exporter writing to the fixed objectPath.
func New(wh *warehouse.Warehouse, store storage.ObjectStorage, objectPath, stagingDir string) *Exporter {
	return &Exporter{
		wh:         wh,
		store:      store,
		objectPath: objectPath,
		stagingDir: stagingDir,
	}
}

// Run exports the whole analytics store, ordered by event time descending,
// replacing any prior artifact. The export is never batch-scoped.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	events, err := e.wh.ListEventsByTimeDesc(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.StageExport, errors.CodeExportFailed,
			"failed to read analytics store", err)
	}

	stagingPath := filepath.Join(e.stagingDir, fmt.Sprintf("export-%s.tmp", uuid.New().String()[:8]))
	defer os.Remove(stagingPath)

	if err := WriteArtifact(stagingPath, events); err != nil {
		return nil, errors.Wrap(errors.StageExport, errors.CodeExportFailed,
			"failed to encode artifact", err)
	}

	info, err := os.Stat(stagingPath)
	if err != nil {
		return nil, errors.NewInternalError("failed to stat staged artifact", err)
	}

	if err := e.store.Upload(ctx, stagingPath, e.objectPath); err != nil {
		return nil, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("failed to upload artifact %s", e.objectPath), err)
	}

	log.Printf("[export] %d analytics rows exported to %s (%d bytes)",
		len(events), e.objectPath, info.Size())

	return &Result{
		ObjectPath:    e.objectPath,
		ExportedRows:  int64(len(events)),
		ArtifactBytes: info.Size(),
	}, nil
}

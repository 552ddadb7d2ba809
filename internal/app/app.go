// Package app provides the unified application lifecycle management for QuakeFlow.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/quakeflow/quakeflow/internal/aggregate"
	"github.com/quakeflow/quakeflow/internal/config"
	"github.com/quakeflow/quakeflow/internal/export"
	"github.com/quakeflow/quakeflow/internal/extract"
	"github.com/quakeflow/quakeflow/internal/load"
	"github.com/quakeflow/quakeflow/internal/pipeline"
	"github.com/quakeflow/quakeflow/internal/storage"
	"github.com/quakeflow/quakeflow/internal/transform"
	"github.com/quakeflow/quakeflow/internal/validate"
	"github.com/quakeflow/quakeflow/internal/warehouse"
	"github.com/quakeflow/quakeflow/pkg/types"
)

// App wires configuration, storage, the warehouse, and the pipeline together
// and owns their lifecycles.
type App struct {
	cfg *config.Config

	storage   storage.ObjectStorage
	warehouse *warehouse.Warehouse
	pipeline  *pipeline.Pipeline
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg: cfg,
	}, nil
}

// Open initializes storage and the warehouse and assembles the pipeline.
func (a *App) Open(ctx context.Context) error {
	var err error

	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		if a.cfg.Storage.S3.Endpoint != "" {
			s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		}
		a.storage, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Printf("Storage initialized: type=%s", a.cfg.Storage.Type)
	if a.cfg.Storage.Type == "s3" {
		log.Printf("S3 Config: Bucket=%s, Region=%s, Endpoint=%s",
			a.cfg.Storage.S3.Bucket, a.cfg.Storage.S3.Region, a.cfg.Storage.S3.Endpoint)
	}

	a.warehouse, err = warehouse.New(a.cfg.Warehouse.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize warehouse: %w", err)
	}
	log.Printf("Warehouse initialized: %s", a.cfg.Warehouse.Path)

	a.pipeline = pipeline.New(
		extract.New(a.cfg.Source.Path, a.storage, a.cfg.Storage.SnapshotPrefix, a.cfg.Storage.StagingDir),
		load.New(a.storage, a.warehouse, a.cfg.Storage.StagingDir),
		validate.New(a.warehouse),
		transform.New(a.warehouse, a.cfg.Transform.KeepUnparsedTimes),
		aggregate.New(a.warehouse),
		export.New(a.warehouse, a.storage, a.cfg.Export.ObjectPath, a.cfg.Storage.StagingDir),
		pipeline.RetryPolicy{
			MaxAttempts: a.cfg.Retry.MaxAttempts,
			BaseDelay:   a.cfg.Retry.BaseDelay,
			MaxDelay:    a.cfg.Retry.MaxDelay,
		},
	)

	return nil
}

// Run executes one pipeline run for the batch derived from runTime.
func (a *App) Run(ctx context.Context, runTime time.Time) (*pipeline.RunContext, error) {
	batchID := types.NewBatchID(runTime)
	return a.pipeline.Run(ctx, batchID)
}

// Close releases the warehouse connections.
func (a *App) Close() error {
	if a.warehouse != nil {
		return a.warehouse.Close()
	}
	return nil
}

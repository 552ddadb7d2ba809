// Package pipeline sequences the ELT stages as a linear dependency chain
// with per-stage retry and explicit metadata handoff.
package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/export"
	"github.com/quakeflow/quakeflow/internal/extract"
	"github.com/quakeflow/quakeflow/internal/load"
	"github.com/quakeflow/quakeflow/internal/transform"
	"github.com/quakeflow/quakeflow/pkg/types"
)

// Stage interfaces. Each stage consumes only the batch identifier and the
// outputs of its immediate predecessor, carried in the RunContext.

type Extractor interface {
	Run(ctx context.Context, batchID types.BatchID) (*extract.Result, error)
}

type Loader interface {
	Run(ctx context.Context, batchID types.BatchID, snapshotPath string) (*load.Result, error)
}

type Validator interface {
	Run(ctx context.Context, batchID types.BatchID, expectedCount int64) error
}

type Transformer interface {
	Run(ctx context.Context, batchID types.BatchID) (*transform.Result, error)
}

type Aggregator interface {
	Run(ctx context.Context) (*types.StatisticsSnapshot, error)
}

type Exporter interface {
	Run(ctx context.Context) (*export.Result, error)
}

// RunContext is the explicit cross-stage metadata carrier: each stage reads
// its inputs from here and records its outputs here. There is no
// side-channel state between stages.
type RunContext struct {
	BatchID types.BatchID

	SnapshotPath     string
	ExpectedRowCount int64
	LoadedRowCount   int64
	EventCount       int64
	Statistics       *types.StatisticsSnapshot
	ExportPath       string
	ExportedRows     int64

	StartedAt  time.Time
	FinishedAt time.Time

	// FailedStage names the stage a failed run halted at.
	FailedStage string
}

// RetryPolicy bounds per-stage retries with exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total attempts per stage, first try included.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
}

// Backoff returns the delay before retry n (0-based), doubling each time
// up to the cap.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Pipeline runs the six stages in order for one batch.
type Pipeline struct {
	extractor   Extractor
	loader      Loader
	validator   Validator
	transformer Transformer
	aggregator  Aggregator
	exporter    Exporter
	retry       RetryPolicy
}

// New assembles a pipeline from its stages.
func New(ex Extractor, ld Loader, va Validator, tr Transformer, ag Aggregator, xp Exporter, retry RetryPolicy) *Pipeline {
	return &Pipeline{
		extractor:   ex,
		loader:      ld,
		validator:   va,
		transformer: tr,
		aggregator:  ag,
		exporter:    xp,
		retry:       retry,
	}
}

// Run executes one full pipeline run for the batch. On failure the run is
// abandoned at the failing stage: no later stage executes, and the
// analytics, statistics, and export layers remain exactly as they were.
func (p *Pipeline) Run(ctx context.Context, batchID types.BatchID) (*RunContext, error) {
	rc := &RunContext{
		BatchID:   batchID,
		StartedAt: time.Now().UTC(),
	}

	log.Printf("[pipeline] batch %s: run starting", batchID)

	if err := p.runStage(ctx, rc, "extract", func(ctx context.Context) error {
		res, err := p.extractor.Run(ctx, batchID)
		if err != nil {
			return err
		}
		rc.SnapshotPath = res.SnapshotPath
		rc.ExpectedRowCount = res.RowCount
		return nil
	}); err != nil {
		return rc, err
	}

	if err := p.runStage(ctx, rc, "load", func(ctx context.Context) error {
		res, err := p.loader.Run(ctx, batchID, rc.SnapshotPath)
		if err != nil {
			return err
		}
		rc.LoadedRowCount = res.LoadedRowCount
		return nil
	}); err != nil {
		return rc, err
	}

	if err := p.runStage(ctx, rc, "validate", func(ctx context.Context) error {
		return p.validator.Run(ctx, batchID, rc.ExpectedRowCount)
	}); err != nil {
		return rc, err
	}

	if err := p.runStage(ctx, rc, "transform", func(ctx context.Context) error {
		res, err := p.transformer.Run(ctx, batchID)
		if err != nil {
			return err
		}
		rc.EventCount = res.EventCount
		return nil
	}); err != nil {
		return rc, err
	}

	if err := p.runStage(ctx, rc, "aggregate", func(ctx context.Context) error {
		snap, err := p.aggregator.Run(ctx)
		if err != nil {
			return err
		}
		rc.Statistics = snap
		return nil
	}); err != nil {
		return rc, err
	}

	if err := p.runStage(ctx, rc, "export", func(ctx context.Context) error {
		res, err := p.exporter.Run(ctx)
		if err != nil {
			return err
		}
		rc.ExportPath = res.ObjectPath
		rc.ExportedRows = res.ExportedRows
		return nil
	}); err != nil {
		return rc, err
	}

	rc.FinishedAt = time.Now().UTC()
	log.Printf("[pipeline] batch %s: run complete in %s (%d events)",
		batchID, rc.FinishedAt.Sub(rc.StartedAt), rc.EventCount)

	return rc, nil
}

// runStage executes one stage with the retry policy. Only errors marked
// retryable are retried; fatal errors abandon the run immediately.
func (p *Pipeline) runStage(ctx context.Context, rc *RunContext, name string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			rc.FailedStage = name
			return errors.NewInternalError("run cancelled", err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !errors.IsRetryable(lastErr) {
			log.Printf("[pipeline] batch %s: stage %s failed (fatal): %v", rc.BatchID, name, lastErr)
			rc.FailedStage = name
			return lastErr
		}

		if attempt < p.retry.MaxAttempts {
			delay := p.retry.Backoff(attempt - 1)
			log.Printf("[pipeline] batch %s: stage %s attempt %d/%d failed, retrying in %s: %v",
				rc.BatchID, name, attempt, p.retry.MaxAttempts, delay, lastErr)
			select {
			case <-ctx.Done():
				rc.FailedStage = name
				return errors.NewInternalError("run cancelled during backoff", ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	log.Printf("[pipeline] batch %s: stage %s exhausted %d attempts: %v",
		rc.BatchID, name, p.retry.MaxAttempts, lastErr)
	rc.FailedStage = name
	return lastErr
}

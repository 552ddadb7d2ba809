// Package errors provides structured error types for the QuakeFlow pipeline.
// All errors include a stage, code, message, and retryable flag so the
// orchestrator can decide between retrying a stage and abandoning the run.
package errors

import (
	"errors"
	"fmt"
)

// Stage classifies errors by pipeline stage.
type Stage string

const (
	StageExtract   Stage = "EXTRACT"
	StageLoad      Stage = "LOAD"
	StageValidate  Stage = "VALIDATE"
	StageTransform Stage = "TRANSFORM"
	StageAggregate Stage = "AGGREGATE"
	StageExport    Stage = "EXPORT"
	StageStorage   Stage = "STORAGE"
	StageInternal  Stage = "INTERNAL"
)

// Error codes for each stage.
const (
	// Extract codes
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeDuplicateBatch    = "DUPLICATE_BATCH"
	CodeSourceMalformed   = "SOURCE_MALFORMED"

	// Load codes
	CodeSnapshotCorrupt = "SNAPSHOT_CORRUPT"
	CodeLoadFailed      = "LOAD_FAILED"

	// Validation codes
	CodeCountMismatch = "COUNT_MISMATCH"

	// Transform / aggregate / export codes
	CodeTransformFailed = "TRANSFORM_FAILED"
	CodeAggregateFailed = "AGGREGATE_FAILED"
	CodeExportFailed    = "EXPORT_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Stage     Stage
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's stage and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Stage == t.Stage && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(stage Stage, code, message string) *PipelineError {
	return &PipelineError{
		Stage:     stage,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(stage Stage, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Stage:     stage,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(code),
	}
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetStage extracts the pipeline stage from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetStage(err error) Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines whether an error code marks a transient condition.
// Fatal conditions (missing source, duplicate batch, count mismatch,
// corrupt snapshot) gain nothing from a retry and must halt the run.
func isRetryable(code string) bool {
	switch code {
	case CodeLoadFailed, CodeTransformFailed, CodeAggregateFailed, CodeExportFailed:
		return true
	case CodeUploadFailed, CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewSourceUnavailable(path string, cause error) *PipelineError {
	return Wrap(StageExtract, CodeSourceUnavailable, fmt.Sprintf("source not available: %s", path), cause)
}

func NewDuplicateBatch(batchID string) *PipelineError {
	return New(StageExtract, CodeDuplicateBatch, fmt.Sprintf("snapshot already exists for batch %s", batchID))
}

func NewCountMismatch(batchID string, expected, loaded int64) *PipelineError {
	return New(StageValidate, CodeCountMismatch,
		fmt.Sprintf("batch %s: expected %d rows, found %d", batchID, expected, loaded))
}

func NewSnapshotCorrupt(path, reason string) *PipelineError {
	return New(StageLoad, CodeSnapshotCorrupt, fmt.Sprintf("snapshot %s: %s", path, reason))
}

func NewStorageError(code, message string, cause error) *PipelineError {
	return Wrap(StageStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(StageInternal, CodeUnexpected, message, cause)
}

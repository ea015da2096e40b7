// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"context"
	"errors"
	"fmt"
)

// The pipeline classifies every failure into one of four kinds. Stage code
// reports classified errors; the executor alone decides retry, abort, or
// escalate. Per prd003-pipeline R6.1-R6.4.

var errEmptyTitle = errors.New("title must not be empty")

// TransientError marks a failure worth retrying: network faults, rate
// limits, capability timeouts. Retried with exponential backoff up to the
// configured attempt limit, then reclassified fatal.
type TransientError struct {
	// Op names the operation that failed (e.g. "generate", "embed").
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that aborts the run: a capability permanently
// unavailable or returning unusable output after retries.
type FatalError struct {
	// Op names the operation that failed.
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IngestionError marks a source document that could not be decoded or
// chunked. The document is skipped and logged; ingestion continues.
type IngestionError struct {
	// Path is the offending source file.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// QualityExhaustedError marks a run whose revision budget ran out without
// an approved draft. Not a crash: the run ends Escalated for human review.
type QualityExhaustedError struct {
	// Iterations is the number of revision loops taken.
	Iterations int

	// Score is the final attempt's quality score.
	Score float64
}

func (e *QualityExhaustedError) Error() string {
	return fmt.Sprintf("quality gate not passed after %d revisions (final score %.2f)", e.Iterations, e.Score)
}

// IsTransient reports whether err is classified transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err is classified fatal.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsIngestion reports whether err is an ingestion error.
func IsIngestion(err error) bool {
	var ie *IngestionError
	return errors.As(err, &ie)
}

// IsQualityExhausted reports whether err marks an exhausted revision budget.
func IsQualityExhausted(err error) bool {
	var qe *QualityExhaustedError
	return errors.As(err, &qe)
}

// classification names for persisted run snapshots.
const (
	ErrClassTransient        = "transient"
	ErrClassFatal            = "fatal"
	ErrClassIngestion        = "ingestion"
	ErrClassQualityExhausted = "quality_exhausted"
	ErrClassCancelled        = "cancelled"
)

// ClassifyError returns the snapshot classification name for err, or ""
// for nil.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return ErrClassCancelled
	case IsQualityExhausted(err):
		return ErrClassQualityExhausted
	case IsTransient(err):
		return ErrClassTransient
	case IsIngestion(err):
		return ErrClassIngestion
	default:
		return ErrClassFatal
	}
}

package models

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step a run was in when it failed. A run moves
// PLANNING -> FETCHING -> FORECASTING -> MERGING -> RATING -> DONE, with
// FAILED reachable from any of them.
type Stage string

const (
	StagePlanning    Stage = "PLANNING"
	StageFetching    Stage = "FETCHING"
	StageForecasting Stage = "FORECASTING"
	StageMerging     Stage = "MERGING"
	StageRating      Stage = "RATING"
	StageDone        Stage = "DONE"
	StageFailed      Stage = "FAILED"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindInvalidCoordinate   ErrorKind = "invalid_coordinate"
	KindUpstreamFetch       ErrorKind = "upstream_fetch"
	KindInsufficientHistory ErrorKind = "insufficient_history"
	KindModelFit            ErrorKind = "model_fit"
	KindHorizon             ErrorKind = "horizon"
	KindSummarizer          ErrorKind = "summarizer"
	KindInternal            ErrorKind = "internal"
)

// PipelineError is the structured failure surfaced to callers. It carries
// the originating stage and kind plus enough request context to reproduce
// the failure.
type PipelineError struct {
	Kind    ErrorKind
	Stage   Stage
	Request ForecastRequest
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s at %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may usefully retry the same request.
// Upstream fetch problems (timeouts, transient HTTP failures) are retryable;
// bad inputs and degenerate data are not.
func (e *PipelineError) Retryable() bool {
	return e.Kind == KindUpstreamFetch
}

// KindOf extracts the error kind from any error in the chain, defaulting to
// KindInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// Errf builds a PipelineError with a formatted cause.
func Errf(kind ErrorKind, stage Stage, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// WrapErr attaches kind and stage to an existing error. A nil cause returns
// nil; an existing PipelineError is returned unchanged so the innermost
// classification wins.
func WrapErr(kind ErrorKind, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

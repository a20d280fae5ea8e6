package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFoundOrProcessed is returned by the processor when the target document
	// does not exist or is excluded by the processed filter. It is not fatal.
	ErrNotFoundOrProcessed = errors.New("document not found or already processed")

	// ErrProcessingFailed is the only failure detail the processor exposes to callers.
	ErrProcessingFailed = errors.New("processing failed")

	// ErrProviderNotConfigured indicates the tenant has no usable provider credential.
	ErrProviderNotConfigured = errors.New("Intercom not configured or enabled for this account") //nolint:stylecheck // user-facing text

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Summarisation and tagging cannot run without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// The embedding backfill is disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrJobFinished indicates a continuation was requested for a terminal job.
	ErrJobFinished = errors.New("import job already finished")

	// ErrQueueClosed indicates the job queue no longer accepts or yields jobs.
	ErrQueueClosed = errors.New("job queue closed")
)

// ConfigurationError means a tenant cannot use the provider. It is fatal to a run
// and never retried.
type ConfigurationError struct {
	AppID  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return ErrProviderNotConfigured.Error()
	}
	return fmt.Sprintf("%s: %s", ErrProviderNotConfigured.Error(), e.Reason)
}

// Unwrap allows errors.Is(err, ErrProviderNotConfigured).
func (e *ConfigurationError) Unwrap() error {
	return ErrProviderNotConfigured
}

// ProviderError is a non-success response (or unusable payload) from the provider.
// A StatusCode of zero means the response failed boundary validation.
type ProviderError struct {
	StatusCode int
	Message    string
	URL        string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("provider: API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TimeoutError means a single upstream call exceeded its deadline.
// It is a per-item failure, not a run-ending fault.
type TimeoutError struct {
	Operation string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.After)
}

// Unwrap allows errors.Is(err, context.DeadlineExceeded).
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// StorageConflictError is a unique-constraint violation. The importer reads it as
// "already imported".
type StorageConflictError struct {
	Entity string
	Key    string
}

func (e *StorageConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.Key, ErrAlreadyExists.Error())
}

// Unwrap allows errors.Is(err, ErrAlreadyExists).
func (e *StorageConflictError) Unwrap() error {
	return ErrAlreadyExists
}

// StageFailure is an enrichment stage error. Its message is deliberately generic;
// the cause is kept for server-side logs.
type StageFailure struct {
	Stage      Stage
	DocumentID int64
	Err        error
}

func (e *StageFailure) Error() string {
	return ErrProcessingFailed.Error()
}

// Unwrap exposes both ErrProcessingFailed and the underlying cause.
func (e *StageFailure) Unwrap() []error {
	return []error{ErrProcessingFailed, e.Err}
}

// Cause describes the failing stage and its error for logs.
func (e *StageFailure) Cause() string {
	return fmt.Sprintf("document %d: %s stage: %v", e.DocumentID, e.Stage, e.Err)
}

// ModelOutputError means a language model response could not be used.
// The stage treats it as "produced nothing this run".
type ModelOutputError struct {
	Stage  Stage
	Reason string
	Err    error
}

func (e *ModelOutputError) Error() string {
	return fmt.Sprintf("unusable model output for %s: %s", e.Stage, e.Reason)
}

func (e *ModelOutputError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsProviderError reports whether err is a ProviderError.
func IsProviderError(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a StorageConflictError or wraps ErrAlreadyExists.
func IsConflict(err error) bool {
	var target *StorageConflictError
	return errors.As(err, &target) || errors.Is(err, ErrAlreadyExists)
}

// IsStageFailure reports whether err is a StageFailure.
func IsStageFailure(err error) bool {
	var target *StageFailure
	return errors.As(err, &target)
}

// IsModelOutputError reports whether err is a ModelOutputError.
func IsModelOutputError(err error) bool {
	var target *ModelOutputError
	return errors.As(err, &target)
}

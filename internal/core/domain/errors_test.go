package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrNotFoundOrProcessed", ErrNotFoundOrProcessed},
		{"ErrProcessingFailed", ErrProcessingFailed},
		{"ErrProviderNotConfigured", ErrProviderNotConfigured},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrJobFinished", ErrJobFinished},
		{"ErrQueueClosed", ErrQueueClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{AppID: "app-1"}

	assert.Equal(t, "Intercom not configured or enabled for this account", err.Error())
	assert.True(t, errors.Is(err, ErrProviderNotConfigured))
	assert.True(t, IsConfigurationError(fmt.Errorf("import: %w", err)))

	withReason := &ConfigurationError{AppID: "app-1", Reason: "disabled"}
	assert.Contains(t, withReason.Error(), "disabled")
}

func TestProviderError(t *testing.T) {
	cause := errors.New("boom")
	err := &ProviderError{StatusCode: 503, Message: "unavailable", URL: "https://x/y", Err: cause}

	assert.Equal(t, "provider: API error 503: unavailable (URL: https://x/y)", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsProviderError(fmt.Errorf("list: %w", err)))
	assert.False(t, IsProviderError(cause))

	noURL := &ProviderError{StatusCode: 0, Message: "invalid payload"}
	assert.Equal(t, "provider: API error 0: invalid payload", noURL.Error())
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Operation: "get conversation c1", After: 10 * time.Second}

	assert.Equal(t, "get conversation c1 timed out after 10s", err.Error())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsTimeout(err))
}

func TestStorageConflictError(t *testing.T) {
	err := &StorageConflictError{Entity: "document", Key: "intercom/c1"}

	assert.True(t, errors.Is(err, ErrAlreadyExists))
	assert.True(t, IsConflict(err))
	assert.True(t, IsConflict(fmt.Errorf("insert: %w", ErrAlreadyExists)))
	assert.False(t, IsConflict(ErrNotFound))
}

func TestStageFailure(t *testing.T) {
	cause := errors.New("llm exploded")
	err := &StageFailure{Stage: StageSummarize, DocumentID: 7, Err: cause}

	assert.Equal(t, "processing failed", err.Error())
	assert.True(t, errors.Is(err, ErrProcessingFailed))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsStageFailure(err))
	assert.Equal(t, "document 7: summarize stage: llm exploded", err.Cause())
}

func TestModelOutputError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &ModelOutputError{Stage: StageTag, Reason: "invalid JSON", Err: cause}

	assert.Equal(t, "unusable model output for tag: invalid JSON", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsModelOutputError(fmt.Errorf("classify: %w", err)))
}

// TestErrors_Uniqueness tests that all errors are distinct
func TestErrors_Uniqueness(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrNotFoundOrProcessed,
		ErrProcessingFailed,
		ErrProviderNotConfigured,
		ErrLLMUnavailable,
		ErrEmbeddingUnavailable,
		ErrRateLimited,
		ErrJobFinished,
		ErrQueueClosed,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j {
				assert.False(t, errors.Is(err1, err2), "%v should not match %v", err1, err2)
			}
		}
	}
}

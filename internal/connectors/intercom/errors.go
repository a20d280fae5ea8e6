package intercom

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// Intercom-specific errors.
var (
	// ErrInvalidPayload indicates a response failed decoding or validation.
	ErrInvalidPayload = errors.New("intercom: invalid payload")

	// ErrUnknownParticipantKind indicates a participant reference of an unsupported kind.
	ErrUnknownParticipantKind = errors.New("intercom: unknown participant kind")
)

// RateLimitError represents a rate limit exceeded error with reset time.
// Err carries the provider error for the 429 response.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
	Err       *domain.ProviderError
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("intercom: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Unwrap allows errors.Is(err, domain.ErrRateLimited) and errors.As to the
// underlying *domain.ProviderError.
func (e *RateLimitError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrRateLimited}
	}
	return []error{domain.ErrRateLimited, e.Err}
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr) || errors.Is(err, domain.ErrRateLimited)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error indicates a forbidden resource.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var apiErr *domain.ProviderError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}

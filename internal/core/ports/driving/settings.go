package driving

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// SettingsService manages tenant provider credentials.
type SettingsService interface {
	// Get returns the settings of a tenant with the API key masked.
	Get(ctx context.Context, appID string) (*domain.ProviderSettings, error)

	// List returns the settings of every tenant with API keys masked.
	List(ctx context.Context) ([]domain.ProviderSettings, error)

	// SetAPIKey stores the provider key of a tenant and enables it.
	SetAPIKey(ctx context.Context, appID, apiKey string) error

	// SetEnabled turns imports for a tenant on or off, keeping the key.
	SetEnabled(ctx context.Context, appID string, enabled bool) error

	// Verify checks the tenant's credential against the provider.
	Verify(ctx context.Context, appID string) error
}

package driven

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// SettingsStore holds tenant provider credentials.
// The pipeline only reads from it; writes come from the settings CLI.
type SettingsStore interface {
	// GetProviderSettings returns the settings for a tenant.
	// Returns domain.ErrNotFound if the tenant has none.
	GetProviderSettings(ctx context.Context, appID string) (*domain.ProviderSettings, error)

	// SaveProviderSettings stores or replaces the settings for a tenant.
	SaveProviderSettings(ctx context.Context, settings domain.ProviderSettings) error

	// ListApps returns the tenants that have settings.
	ListApps(ctx context.Context) ([]string, error)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// SettingsService manages tenant provider settings.
type SettingsService struct {
	store     driven.SettingsStore
	providers driven.ProviderFactory
}

// NewSettingsService creates a settings service. providers is only used by Verify.
func NewSettingsService(store driven.SettingsStore, providers driven.ProviderFactory) *SettingsService {
	return &SettingsService{store: store, providers: providers}
}

// Get returns the settings of a tenant with the API key masked.
func (s *SettingsService) Get(ctx context.Context, appID string) (*domain.ProviderSettings, error) {
	settings, err := s.store.GetProviderSettings(ctx, appID)
	if err != nil {
		return nil, err
	}
	masked := *settings
	masked.APIKey = MaskSecret(settings.APIKey)
	return &masked, nil
}

// List returns every tenant's settings with API keys masked.
func (s *SettingsService) List(ctx context.Context) ([]domain.ProviderSettings, error) {
	apps, err := s.store.ListApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	out := make([]domain.ProviderSettings, 0, len(apps))
	for _, appID := range apps {
		settings, err := s.Get(ctx, appID)
		if err != nil {
			return nil, fmt.Errorf("get settings for %s: %w", appID, err)
		}
		out = append(out, *settings)
	}
	return out, nil
}

// SetAPIKey stores the provider key of a tenant and enables it.
func (s *SettingsService) SetAPIKey(ctx context.Context, appID, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if appID == "" || apiKey == "" {
		return fmt.Errorf("app and API key are required: %w", domain.ErrInvalidInput)
	}
	return s.store.SaveProviderSettings(ctx, domain.ProviderSettings{
		AppID:   appID,
		APIKey:  apiKey,
		Enabled: true,
	})
}

// SetEnabled turns imports for a tenant on or off.
func (s *SettingsService) SetEnabled(ctx context.Context, appID string, enabled bool) error {
	settings, err := s.store.GetProviderSettings(ctx, appID)
	if err != nil {
		return err
	}
	settings.Enabled = enabled
	return s.store.SaveProviderSettings(ctx, *settings)
}

// Verify fetches one conversation page with the tenant's credential.
func (s *SettingsService) Verify(ctx context.Context, appID string) error {
	if s.providers == nil {
		return errors.New("no provider factory configured")
	}
	provider, err := s.providers.ForTenant(ctx, appID)
	if err != nil {
		return err
	}
	if _, err := provider.ListConversations(ctx, driven.ListConversationsRequest{PageSize: 1}); err != nil {
		return fmt.Errorf("verify credential: %w", err)
	}
	return nil
}

// MaskSecret keeps the last four characters of a secret.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

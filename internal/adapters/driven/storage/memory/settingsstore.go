package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// Ensure SettingsStore implements the interface.
var _ driven.SettingsStore = (*SettingsStore)(nil)

// SettingsStore is an in-memory implementation of driven.SettingsStore for testing.
type SettingsStore struct {
	mu       sync.RWMutex
	settings map[string]domain.ProviderSettings
}

// NewSettingsStore creates a new in-memory settings store seeded with the given settings.
func NewSettingsStore(seed ...domain.ProviderSettings) *SettingsStore {
	s := &SettingsStore{settings: make(map[string]domain.ProviderSettings)}
	for _, settings := range seed {
		s.settings[settings.AppID] = settings
	}
	return s
}

// GetProviderSettings returns the settings for a tenant.
func (s *SettingsStore) GetProviderSettings(_ context.Context, appID string) (*domain.ProviderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.settings[appID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &settings, nil
}

// SaveProviderSettings stores or replaces the settings for a tenant.
func (s *SettingsStore) SaveProviderSettings(_ context.Context, settings domain.ProviderSettings) error {
	if settings.AppID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.AppID] = settings
	return nil
}

// ListApps returns the tenants that have settings, sorted.
func (s *SettingsStore) ListApps(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apps := make([]string, 0, len(s.settings))
	for id := range s.settings {
		apps = append(apps, id)
	}
	sort.Strings(apps)
	return apps, nil
}

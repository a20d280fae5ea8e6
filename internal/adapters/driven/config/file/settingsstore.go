package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/logger"
)

// Ensure SettingsStore implements the interface.
var _ driven.SettingsStore = (*SettingsStore)(nil)

// SettingsFile is the default tenant settings file name.
const SettingsFile = "tenants.toml"

// tenantsDocument is the on-disk layout:
//
//	[apps.app_123]
//	api_key = "..."
//	enabled = true
type tenantsDocument struct {
	Apps map[string]tenantEntry `toml:"apps"`
}

type tenantEntry struct {
	APIKey  string `toml:"api_key"`
	Enabled bool   `toml:"enabled"`
}

// SettingsStore is a file-based implementation of driven.SettingsStore using TOML.
// Tenant credentials are kept in memory and written through on every change.
type SettingsStore struct {
	mu       sync.RWMutex
	filePath string
	apps     map[string]tenantEntry
}

// NewSettingsStore creates a new TOML-based settings store.
// If configDir is empty, defaults to ~/.threadline/tenants.toml.
func NewSettingsStore(configDir string) (*SettingsStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".threadline")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &SettingsStore{
		filePath: filepath.Join(configDir, SettingsFile),
		apps:     make(map[string]tenantEntry),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// GetProviderSettings returns the settings for a tenant.
func (s *SettingsStore) GetProviderSettings(_ context.Context, appID string) (*domain.ProviderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.apps[appID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.ProviderSettings{AppID: appID, APIKey: entry.APIKey, Enabled: entry.Enabled}, nil
}

// SaveProviderSettings stores or replaces the settings for a tenant and persists immediately.
func (s *SettingsStore) SaveProviderSettings(_ context.Context, settings domain.ProviderSettings) error {
	if strings.TrimSpace(settings.AppID) == "" {
		return fmt.Errorf("%w: app id is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.apps[settings.AppID]
	s.apps[settings.AppID] = tenantEntry{APIKey: settings.APIKey, Enabled: settings.Enabled}
	if err := s.save(); err != nil {
		if existed {
			s.apps[settings.AppID] = previous
		} else {
			delete(s.apps, settings.AppID)
		}
		return err
	}
	return nil
}

// ListApps returns the tenants that have settings, sorted.
func (s *SettingsStore) ListApps(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]string, 0, len(s.apps))
	for appID := range s.apps {
		apps = append(apps, appID)
	}
	sort.Strings(apps)
	return apps, nil
}

// save writes settings to the TOML file (caller must hold lock).
func (s *SettingsStore) save() error {
	data, err := toml.Marshal(tenantsDocument{Apps: s.apps})
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	// Credentials: owner read/write only.
	return os.WriteFile(s.filePath, data, 0600)
}

// Load reads settings from the TOML file, replacing the in-memory copy.
// A missing file is an empty store.
func (s *SettingsStore) Load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.apps = make(map[string]tenantEntry)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	var doc tenantsDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", s.filePath, err)
	}
	if doc.Apps == nil {
		doc.Apps = make(map[string]tenantEntry)
	}

	s.mu.Lock()
	s.apps = doc.Apps
	s.mu.Unlock()
	return nil
}

// Watch reloads the settings whenever the file changes on disk, until ctx is done.
// A file that fails to parse is logged and the previous settings are kept.
func (s *SettingsStore) Watch(ctx context.Context) error {
	target := filepath.Clean(s.filePath)
	isSettings := func(name string) bool { return filepath.Clean(name) == target }

	return watchPath(ctx, filepath.Dir(s.filePath), isSettings, func() {
		if err := s.Load(); err != nil {
			logger.Warn("keeping previous tenant settings: %v", err)
			return
		}
		logger.Info("tenant settings reloaded from %s", s.filePath)
	})
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.filePath
}

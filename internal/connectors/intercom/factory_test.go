package intercom

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// mockSettingsStore implements driven.SettingsStore for testing.
type mockSettingsStore struct {
	settings map[string]domain.ProviderSettings
	err      error
}

func (m *mockSettingsStore) GetProviderSettings(_ context.Context, appID string) (*domain.ProviderSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.settings[appID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *mockSettingsStore) SaveProviderSettings(_ context.Context, s domain.ProviderSettings) error {
	m.settings[s.AppID] = s
	return nil
}

func (m *mockSettingsStore) ListApps(_ context.Context) ([]string, error) {
	apps := make([]string, 0, len(m.settings))
	for id := range m.settings {
		apps = append(apps, id)
	}
	return apps, nil
}

func TestFactory_ForTenant_ConfigurationErrors(t *testing.T) {
	store := &mockSettingsStore{settings: map[string]domain.ProviderSettings{
		"disabled": {AppID: "disabled", APIKey: "k", Enabled: false},
		"no-key":   {AppID: "no-key", Enabled: true},
	}}
	f := NewFactory(store)

	for _, appID := range []string{"missing", "disabled", "no-key"} {
		t.Run(appID, func(t *testing.T) {
			_, err := f.ForTenant(context.Background(), appID)
			require.Error(t, err)
			assert.True(t, domain.IsConfigurationError(err))
			assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)

			var cerr *domain.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, appID, cerr.AppID)
		})
	}
}

func TestFactory_ForTenant_StoreFailure(t *testing.T) {
	storeErr := errors.New("disk gone")
	f := NewFactory(&mockSettingsStore{err: storeErr})

	_, err := f.ForTenant(context.Background(), "app")
	assert.ErrorIs(t, err, storeErr)
	assert.False(t, domain.IsConfigurationError(err))
}

func TestFactory_ForTenant_UsesTenantKey(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(t, w, http.StatusOK, map[string]any{"id": "c1", "created_at": 1})
	}))
	defer srv.Close()

	store := &mockSettingsStore{settings: map[string]domain.ProviderSettings{
		"app-1": {AppID: "app-1", APIKey: "key-1", Enabled: true},
	}}
	f := NewFactory(store, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRateLimiter(NewRateLimiter(0, 1)))

	provider, err := f.ForTenant(context.Background(), "app-1")
	require.NoError(t, err)

	_, err = provider.GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer key-1", auth)
}

func TestFactory_ForTenant_SharesLimiterPerTenant(t *testing.T) {
	store := &mockSettingsStore{settings: map[string]domain.ProviderSettings{
		"app-1": {AppID: "app-1", APIKey: "key-1", Enabled: true},
		"app-2": {AppID: "app-2", APIKey: "key-2", Enabled: true},
	}}
	f := NewFactory(store, WithRequestsPerSecond(5, 2))
	ctx := context.Background()

	first, err := f.ForTenant(ctx, "app-1")
	require.NoError(t, err)
	second, err := f.ForTenant(ctx, "app-1")
	require.NoError(t, err)
	other, err := f.ForTenant(ctx, "app-2")
	require.NoError(t, err)

	limiter := first.(*Client).RateLimiter()
	assert.NotSame(t, first, second)
	assert.Same(t, limiter, second.(*Client).RateLimiter())
	assert.NotSame(t, limiter, other.(*Client).RateLimiter())
}

func TestSettingsTokenProvider_NilStore(t *testing.T) {
	_, err := (&SettingsTokenProvider{AppID: "a"}).GetToken(context.Background())
	assert.True(t, domain.IsConfigurationError(err))
}

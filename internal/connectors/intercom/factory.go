package intercom

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.ProviderFactory = (*Factory)(nil)

// Factory builds tenant-scoped clients from stored provider settings.
// Settings are read on every ForTenant call, so a disabled or rotated key
// takes effect on the next operation. Clients of one tenant share a rate
// limiter, since Intercom quotas are per app.
type Factory struct {
	settings driven.SettingsStore
	opts     []Option

	mu       sync.Mutex
	limiters map[string]*RateLimiter
}

// NewFactory creates a factory. Options are applied to every client.
func NewFactory(settings driven.SettingsStore, opts ...Option) *Factory {
	return &Factory{
		settings: settings,
		opts:     opts,
		limiters: make(map[string]*RateLimiter),
	}
}

// ForTenant returns a client for appID, or *domain.ConfigurationError when
// the tenant has no enabled key.
func (f *Factory) ForTenant(ctx context.Context, appID string) (driven.ConversationProvider, error) {
	tp := &SettingsTokenProvider{Store: f.settings, AppID: appID}
	if _, err := tp.GetToken(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if rl, ok := f.limiters[appID]; ok {
		return NewClient(tp, append(f.opts[:len(f.opts):len(f.opts)], WithRateLimiter(rl))...), nil
	}
	client := NewClient(tp, f.opts...)
	f.limiters[appID] = client.RateLimiter()
	return client, nil
}

// Ensure SettingsTokenProvider implements the interface.
var _ driven.TokenProvider = (*SettingsTokenProvider)(nil)

// SettingsTokenProvider reads a tenant's API key from the settings store.
type SettingsTokenProvider struct {
	Store driven.SettingsStore
	AppID string
}

// GetToken returns the tenant's API key.
func (p *SettingsTokenProvider) GetToken(ctx context.Context) (string, error) {
	if p.Store == nil {
		return "", &domain.ConfigurationError{AppID: p.AppID, Reason: "no settings store"}
	}

	settings, err := p.Store.GetProviderSettings(ctx, p.AppID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", &domain.ConfigurationError{AppID: p.AppID}
	}
	if err != nil {
		return "", fmt.Errorf("load provider settings: %w", err)
	}
	if !settings.IsUsable() {
		return "", &domain.ConfigurationError{AppID: p.AppID}
	}

	return settings.APIKey, nil
}

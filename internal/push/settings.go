package push

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/repository"
)

const settingsCacheKey = "push_settings"

// SettingsProvider resolves provider credentials per operation. Results are
// cached briefly so the settings row is not hit on every recipient.
type SettingsProvider struct {
	repo  repository.SettingsRepository
	cache *gocache.Cache
}

func NewSettingsProvider(repo repository.SettingsRepository, ttl time.Duration) *SettingsProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SettingsProvider{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (p *SettingsProvider) Get(ctx context.Context) (*model.PushSettings, error) {
	if cached, ok := p.cache.Get(settingsCacheKey); ok {
		return cached.(*model.PushSettings), nil
	}

	settings, err := p.repo.GetPushSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve push settings: %w", err)
	}

	p.cache.SetDefault(settingsCacheKey, settings)
	return settings, nil
}

// Invalidate drops the cached settings so the next Get re-reads the row.
func (p *SettingsProvider) Invalidate() {
	p.cache.Delete(settingsCacheKey)
}

package push

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushmint/notify-api/internal/model"
)

type countingSettingsRepo struct {
	calls    int
	settings *model.PushSettings
	err      error
}

func (r *countingSettingsRepo) GetPushSettings(ctx context.Context) (*model.PushSettings, error) {
	r.calls++
	return r.settings, r.err
}

func TestSettingsProviderCachesLookups(t *testing.T) {
	repo := &countingSettingsRepo{settings: &model.PushSettings{ServerKey: "k1"}}
	provider := NewSettingsProvider(repo, time.Minute)

	for i := 0; i < 5; i++ {
		settings, err := provider.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "k1", settings.ServerKey)
	}

	assert.Equal(t, 1, repo.calls)
}

func TestSettingsProviderInvalidate(t *testing.T) {
	repo := &countingSettingsRepo{settings: &model.PushSettings{ServerKey: "k1"}}
	provider := NewSettingsProvider(repo, time.Minute)

	_, err := provider.Get(context.Background())
	require.NoError(t, err)

	repo.settings = &model.PushSettings{ServerKey: "k2"}
	provider.Invalidate()

	settings, err := provider.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k2", settings.ServerKey)
	assert.Equal(t, 2, repo.calls)
}

func TestSettingsProviderErrorNotCached(t *testing.T) {
	repo := &countingSettingsRepo{err: assert.AnError}
	provider := NewSettingsProvider(repo, time.Minute)

	_, err := provider.Get(context.Background())
	require.Error(t, err)

	repo.err = nil
	repo.settings = &model.PushSettings{ServerKey: "k1"}

	settings, err := provider.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k1", settings.ServerKey)
	assert.Equal(t, 2, repo.calls)
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/repository"
	"github.com/pushmint/notify-api/pkg/errors"
)

type settingsRepository struct {
	BaseRepository
}

func NewSettingsRepository(base BaseRepository) repository.SettingsRepository {
	return &settingsRepository{base}
}

func (r *settingsRepository) GetPushSettings(ctx context.Context) (*model.PushSettings, error) {
	// Credentials live in a single settings row; the earliest one wins.
	query := `
		SELECT server_key, endpoint, updated_at
		FROM push_settings
		ORDER BY created_at ASC
		LIMIT 1
	`

	var settings model.PushSettings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("push settings", err)
		}
		return nil, fmt.Errorf("failed to get push settings: %w", err)
	}

	return &settings, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/repository"
	"github.com/pushmint/notify-api/pkg/errors"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT * FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) GroupExists(ctx context.Context, groupID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_groups
			WHERE id = $1 AND deleted_at IS NULL
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, groupID); err != nil {
		return false, fmt.Errorf("failed to check group existence: %w", err)
	}

	return exists, nil
}

func (r *userRepository) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]*model.User, error) {
	query := `
		SELECT u.id, u.name, u.email, u.device_token, u.is_admin,
		       u.created_at, u.updated_at
		FROM users u
		JOIN user_group_members m ON u.id = m.user_id
		WHERE m.group_id = $1 AND u.deleted_at IS NULL
		ORDER BY u.created_at
	`

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, groupID); err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}

	return users, nil
}

func (r *userRepository) ListAll(ctx context.Context, excludeAdmins bool) ([]*model.User, error) {
	query := `
		SELECT * FROM users
		WHERE deleted_at IS NULL
	`
	var args []interface{}

	if excludeAdmins {
		args = append(args, false)
		query += fmt.Sprintf(" AND is_admin = $%d", len(args))
	}

	query += " ORDER BY created_at"

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

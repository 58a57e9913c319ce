package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/repository"
	"github.com/pushmint/notify-api/pkg/errors"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, req *model.NotificationRequest) error {
	query := `
		INSERT INTO notification_requests (
			id, title, body, extra_data, target_type, target_id,
			exclude_admins, schedule_type, scheduled_at, status,
			success_count, fail_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.Title,
		req.Body,
		req.ExtraData,
		req.TargetType,
		req.TargetID,
		req.ExcludeAdmins,
		req.ScheduleType,
		req.ScheduledAt,
		req.Status,
		req.SuccessCount,
		req.FailCount,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.NotificationRequest, error) {
	query := `
		SELECT * FROM notification_requests
		WHERE id = $1
	`

	var req model.NotificationRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("notification request", err)
		}
		return nil, fmt.Errorf("failed to get notification request: %w", err)
	}

	return &req, nil
}

func (r *notificationRepository) UpdateContent(ctx context.Context, req *model.NotificationRequest) error {
	query := `
		UPDATE notification_requests SET
			title = $1,
			body = $2,
			scheduled_at = $3,
			updated_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		req.Title,
		req.Body,
		req.ScheduledAt,
		time.Now(),
		req.ID,
		model.NotificationStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.InvalidStateTransition("notification request is no longer pending")
	}

	return nil
}

func (r *notificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus, errorMessage string) error {
	query := `
		UPDATE notification_requests SET
			status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		status,
		errorMessage,
		time.Now(),
		id,
		model.NotificationStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.InvalidStateTransition("notification request is no longer pending")
	}

	return nil
}

func (r *notificationRepository) MarkDispatched(ctx context.Context, id uuid.UUID, successCount, failCount int, sentAt time.Time) error {
	query := `
		UPDATE notification_requests SET
			status = $1,
			success_count = $2,
			fail_count = $3,
			sent_at = $4,
			updated_at = $5
		WHERE id = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		model.NotificationStatusSent,
		successCount,
		failCount,
		sentAt,
		time.Now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification dispatched: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("notification request", nil)
	}

	return nil
}

func (r *notificationRepository) FindDueScheduled(ctx context.Context, now time.Time) ([]*model.NotificationRequest, error) {
	// SKIP LOCKED keeps two worker replicas from claiming the same batch.
	query := `
		SELECT * FROM notification_requests
		WHERE schedule_type = $1
		  AND status = $2
		  AND scheduled_at <= $3
		ORDER BY scheduled_at ASC
		FOR UPDATE SKIP LOCKED
	`

	var due []*model.NotificationRequest
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &due, query,
			model.ScheduleTypeScheduled,
			model.NotificationStatusPending,
			now,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find due scheduled notifications: %w", err)
	}

	return due, nil
}

func (r *notificationRepository) List(ctx context.Context, filters *model.NotificationFilters) ([]*model.NotificationRequest, int, error) {
	baseQuery := `FROM notification_requests WHERE 1=1`
	var args []interface{}

	if filters.Status != "" {
		args = append(args, filters.Status)
		baseQuery += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if filters.TargetType != "" {
		args = append(args, filters.TargetType)
		baseQuery += fmt.Sprintf(" AND target_type = $%d", len(args))
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count notification requests: %w", err)
	}

	args = append(args, filters.Limit(), filters.Offset())
	query := "SELECT * " + baseQuery +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var reqs []*model.NotificationRequest
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list notification requests: %w", err)
	}

	return reqs, total, nil
}

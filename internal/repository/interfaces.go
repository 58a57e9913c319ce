package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pushmint/notify-api/internal/model"
)

// All repository interfaces in one file
type (
	// NotificationRepository persists notification requests and their
	// lifecycle transitions.
	NotificationRepository interface {
		Create(ctx context.Context, req *model.NotificationRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.NotificationRequest, error)
		// UpdateContent edits title/body/scheduled_at of a still-pending
		// request. Returns no rows error if the request has left pending.
		UpdateContent(ctx context.Context, req *model.NotificationRequest) error
		// UpdateStatus moves a pending request to a terminal state.
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus, errorMessage string) error
		// MarkDispatched writes the dispatch outcome (counts, sent_at,
		// status=sent) in a single statement.
		MarkDispatched(ctx context.Context, id uuid.UUID, successCount, failCount int, sentAt time.Time) error
		// FindDueScheduled returns pending scheduled requests whose
		// scheduled_at has passed, claimed so concurrent workers skip them.
		FindDueScheduled(ctx context.Context, now time.Time) ([]*model.NotificationRequest, error)
		List(ctx context.Context, filters *model.NotificationFilters) ([]*model.NotificationRequest, int, error)
	}

	// UserRepository resolves notification audiences.
	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GroupExists(ctx context.Context, groupID uuid.UUID) (bool, error)
		ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]*model.User, error)
		ListAll(ctx context.Context, excludeAdmins bool) ([]*model.User, error)
	}

	// SettingsRepository reads the push provider credentials row.
	SettingsRepository interface {
		GetPushSettings(ctx context.Context) (*model.PushSettings, error)
	}
)

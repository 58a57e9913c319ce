package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/repository"
	"github.com/pushmint/notify-api/internal/service/dispatch"
	"github.com/pushmint/notify-api/pkg/errors"
	"github.com/pushmint/notify-api/pkg/logger"
)

// SendResult is the caller-facing outcome of the send-or-schedule operation.
// Immediate sends carry the dispatch summary; scheduled sends are
// acknowledged with the pending record only.
type SendResult struct {
	Scheduled    bool                       `json:"scheduled"`
	Notification *model.NotificationRequest `json:"notification"`
	Summary      *model.DispatchSummary     `json:"summary,omitempty"`
}

type Service interface {
	Send(ctx context.Context, req *model.CreateNotificationRequest) (*SendResult, error)
	Edit(ctx context.Context, id uuid.UUID, patch *model.UpdateNotificationRequest) (*model.NotificationRequest, error)
	Cancel(ctx context.Context, id uuid.UUID) (*model.NotificationRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*model.NotificationRequest, error)
	List(ctx context.Context, filters *model.NotificationFilters) ([]*model.NotificationRequest, int, error)
}

type service struct {
	repo       repository.NotificationRepository
	dispatcher dispatch.Dispatcher
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(repo repository.NotificationRepository, dispatcher dispatch.Dispatcher, logger *logger.Logger) Service {
	return &service{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *service) Send(ctx context.Context, req *model.CreateNotificationRequest) (*SendResult, error) {
	notification, err := s.buildRequest(req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification request: %w", err)
	}

	if notification.ScheduleType == model.ScheduleTypeScheduled {
		s.logger.Info("notification scheduled",
			"notification_id", notification.ID.String(),
			"scheduled_at", notification.ScheduledAt)
		return &SendResult{Scheduled: true, Notification: notification}, nil
	}

	// Immediate sends dispatch synchronously within the request.
	summary, err := s.dispatcher.Dispatch(ctx, notification)
	if err != nil {
		s.failRequest(ctx, notification, err)
		return nil, err
	}

	notification.Status = model.NotificationStatusSent
	notification.SuccessCount = summary.Successful
	notification.FailCount = summary.Failed

	return &SendResult{Notification: notification, Summary: summary}, nil
}

func (s *service) Edit(ctx context.Context, id uuid.UUID, patch *model.UpdateNotificationRequest) (*model.NotificationRequest, error) {
	notification, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if notification.Status != model.NotificationStatusPending {
		return nil, errors.InvalidStateTransition(
			fmt.Sprintf("cannot edit a %s notification request", notification.Status))
	}

	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, errors.Validation("title must not be empty")
		}
		notification.Title = *patch.Title
	}
	if patch.Body != nil {
		if *patch.Body == "" {
			return nil, errors.Validation("body must not be empty")
		}
		notification.Body = *patch.Body
	}
	if patch.ScheduledAt != nil {
		if notification.ScheduleType != model.ScheduleTypeScheduled {
			return nil, errors.Validation("scheduled_at only applies to scheduled requests")
		}
		if !patch.ScheduledAt.After(s.now()) {
			return nil, errors.Validation("scheduled_at must be in the future")
		}
		notification.ScheduledAt = patch.ScheduledAt
	}

	if err := s.repo.UpdateContent(ctx, notification); err != nil {
		return nil, err
	}

	return notification, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*model.NotificationRequest, error) {
	notification, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if notification.Status != model.NotificationStatusPending {
		return nil, errors.InvalidStateTransition(
			fmt.Sprintf("cannot cancel a %s notification request", notification.Status))
	}
	if notification.ScheduleType == model.ScheduleTypeScheduled &&
		notification.ScheduledAt != nil && !notification.ScheduledAt.After(s.now()) {
		return nil, errors.InvalidStateTransition("scheduled time has already passed")
	}

	if err := s.repo.UpdateStatus(ctx, id, model.NotificationStatusCancelled, ""); err != nil {
		return nil, err
	}

	notification.Status = model.NotificationStatusCancelled
	s.logger.Info("notification cancelled", "notification_id", id.String())

	return notification, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.NotificationRequest, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, filters *model.NotificationFilters) ([]*model.NotificationRequest, int, error) {
	return s.repo.List(ctx, filters)
}

// buildRequest validates input and assembles the pending record. Nothing is
// persisted or mutated when validation fails.
func (s *service) buildRequest(req *model.CreateNotificationRequest) (*model.NotificationRequest, error) {
	if req.Title == "" {
		return nil, errors.Validation("title is required")
	}
	if req.Body == "" {
		return nil, errors.Validation("body is required")
	}

	scheduleType := req.ScheduleType
	if scheduleType == "" {
		scheduleType = model.ScheduleTypeImmediate
	}

	notification := &model.NotificationRequest{
		ID:            uuid.New(),
		Title:         req.Title,
		Body:          req.Body,
		ExtraData:     req.ExtraData,
		TargetType:    req.TargetType,
		TargetID:      req.TargetID,
		ExcludeAdmins: req.ExcludeAdmins,
		ScheduleType:  scheduleType,
		Status:        model.NotificationStatusPending,
		CreatedAt:     s.now(),
		UpdatedAt:     s.now(),
	}
	if notification.ExtraData == nil {
		notification.ExtraData = model.JSONMap{}
	}

	switch scheduleType {
	case model.ScheduleTypeScheduled:
		if req.ScheduledAt == nil {
			return nil, errors.Validation("scheduled_at is required for scheduled requests")
		}
		if !req.ScheduledAt.After(s.now()) {
			return nil, errors.Validation("scheduled_at must be in the future")
		}
		notification.ScheduledAt = req.ScheduledAt
	case model.ScheduleTypeImmediate:
		// scheduled_at is ignored for immediate requests.
		notification.ScheduledAt = nil
	default:
		return nil, errors.Validation("unknown schedule type: " + string(scheduleType))
	}

	if _, err := model.TargetFromRequest(notification); err != nil {
		return nil, err
	}

	return notification, nil
}

func (s *service) failRequest(ctx context.Context, notification *model.NotificationRequest, cause error) {
	if err := s.repo.UpdateStatus(ctx, notification.ID, model.NotificationStatusFailed, cause.Error()); err != nil {
		s.logger.Error(err, "failed to mark notification failed",
			"notification_id", notification.ID.String())
		return
	}
	notification.Status = model.NotificationStatusFailed
	notification.ErrorMessage = cause.Error()
}

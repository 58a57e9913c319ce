package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusFailed    NotificationStatus = "failed"
	NotificationStatusCancelled NotificationStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s NotificationStatus) Terminal() bool {
	return s == NotificationStatusSent || s == NotificationStatusFailed || s == NotificationStatusCancelled
}

type ScheduleType string

const (
	ScheduleTypeImmediate ScheduleType = "immediate"
	ScheduleTypeScheduled ScheduleType = "scheduled"
)

type TargetType string

const (
	TargetTypeSingleUser TargetType = "single_user"
	TargetTypeUserGroup  TargetType = "user_group"
	TargetTypeAllUsers   TargetType = "all_users"
)

// NotificationRequest is the persisted description of a push notification to
// send, including target and schedule. Status transitions are one-directional:
// pending -> sent | failed | cancelled.
type NotificationRequest struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	Title         string             `json:"title" db:"title"`
	Body          string             `json:"body" db:"body"`
	ExtraData     JSONMap            `json:"extra_data" db:"extra_data"`
	TargetType    TargetType         `json:"target_type" db:"target_type"`
	TargetID      *uuid.UUID         `json:"target_id,omitempty" db:"target_id"`
	ExcludeAdmins bool               `json:"exclude_admins" db:"exclude_admins"`
	ScheduleType  ScheduleType       `json:"schedule_type" db:"schedule_type"`
	ScheduledAt   *time.Time         `json:"scheduled_at,omitempty" db:"scheduled_at"`
	Status        NotificationStatus `json:"status" db:"status"`
	SuccessCount  int                `json:"success_count" db:"success_count"`
	FailCount     int                `json:"fail_count" db:"fail_count"`
	ErrorMessage  string             `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
	SentAt        *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
}

// RecipientResult records one recipient's delivery outcome.
type RecipientResult struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Success     bool      `json:"success"`
	Skipped     bool      `json:"skipped"`
	Message     string    `json:"message,omitempty"`
}

// DispatchSummary is the aggregate result of one dispatch attempt.
//
// Total counts every resolved recipient, including those without a device
// token. Tokenless recipients are counted under Skipped and never produce a
// delivery attempt, so Successful+Failed+Skipped == Total.
type DispatchSummary struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Results    []RecipientResult `json:"per_recipient_results"`
}

// NotificationFilters narrows history queries.
type NotificationFilters struct {
	Status     NotificationStatus `json:"status" form:"status"`
	TargetType TargetType         `json:"target_type" form:"target_type"`
	Pagination
}

// CreateNotificationRequest is the payload for the send-or-schedule operation.
type CreateNotificationRequest struct {
	Title         string       `json:"title" binding:"required"`
	Body          string       `json:"body" binding:"required"`
	ExtraData     JSONMap      `json:"extra_data"`
	TargetType    TargetType   `json:"target_type" binding:"required,targettype"`
	TargetID      *uuid.UUID   `json:"target_id"`
	ExcludeAdmins bool         `json:"exclude_admins"`
	ScheduleType  ScheduleType `json:"schedule_type" binding:"omitempty,scheduletype"`
	ScheduledAt   *time.Time   `json:"scheduled_at"`
}

// UpdateNotificationRequest edits a still-pending request. Nil fields are
// left unchanged.
type UpdateNotificationRequest struct {
	Title       *string    `json:"title"`
	Body        *string    `json:"body"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

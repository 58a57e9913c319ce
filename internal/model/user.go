package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a recipient candidate. A user without a device token is excluded
// from delivery attempts but still counted in dispatch totals.
type User struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Email       string     `json:"email" db:"email"`
	DeviceToken string     `json:"device_token,omitempty" db:"device_token"`
	IsAdmin     bool       `json:"is_admin" db:"is_admin"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// HasDeviceToken reports whether the user can receive a push.
func (u *User) HasDeviceToken() bool {
	return u.DeviceToken != ""
}

// Group is a named set of users addressable as a notification target.
type Group struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

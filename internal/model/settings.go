package model

import "time"

// PushSettings holds the push provider credentials stored in the settings
// table. Resolved once per operation and passed into the gateway, never held
// as process-wide mutable state.
type PushSettings struct {
	ServerKey string    `json:"-" db:"server_key"`
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

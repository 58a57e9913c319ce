package push

import (
	"context"
)

// Notification is the visible part of a push payload.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Payload is the provider wire payload: the visible notification plus opaque
// app data forwarded verbatim.
type Payload struct {
	Notification Notification           `json:"notification"`
	Data         map[string]interface{} `json:"data"`
}

// Result is one delivery outcome. Provider-level rejections (invalid or
// expired tokens included) are reported here, never as an error.
type Result struct {
	Success bool
	Message string
}

// Gateway sends one push to one device token.
type Gateway interface {
	Send(ctx context.Context, deviceToken string, payload *Payload) *Result
}

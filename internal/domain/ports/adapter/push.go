package adapter

import (
	"context"
	"errors"
)

// ErrTokenInvalid marks a permanent transport rejection: the token will
// never work again. The dispatcher prunes the device and must not retry.
// Anything else is treated as transient.
var ErrTokenInvalid = errors.New("push token permanently invalid")

// PushPayload is the wire-agnostic notification body.
type PushPayload struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushSender delivers to one channel's endpoint.
type PushSender interface {
	Send(ctx context.Context, token string, payload PushPayload) error
}

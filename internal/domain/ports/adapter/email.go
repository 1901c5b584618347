package adapter

import "context"

type EmailSender interface {
	// Send delivers an HTML email and returns the provider message id.
	Send(ctx context.Context, to, subject, html string) (string, error)
}

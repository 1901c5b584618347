package repository

import (
	"context"
	"time"

	"stillpoint/internal/domain/model"
)

type PushDeviceRepository interface {
	// Save upserts a device keyed by (user, channel).
	Save(ctx context.Context, tx Tx, dev *model.PushDevice) error
	// ListByUser returns devices newest-registered first.
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.PushDevice, error)
	// Delete prunes a device whose token the transport reported as
	// permanently invalid.
	Delete(ctx context.Context, tx Tx, id string) error
}

type NotificationHistoryRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.NotificationRecord) error
	// CountSince counts delivered rows of a type for a user after the
	// cutoff; feeds the cooldown gate. Failed attempts don't count, so a
	// retry can never rate-limit itself.
	CountSince(ctx context.Context, tx Tx, userID, notifType string, since time.Time) (int, error)
}

type PushRetryRepository interface {
	Enqueue(ctx context.Context, tx Tx, retry *model.PushRetry) error
	// ClaimDue atomically removes and returns retries whose next_attempt_at
	// has passed. Removal-on-claim keeps concurrent sweeps from double
	// sending; failures are re-enqueued with bumped attempts.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.PushRetry, error)
}

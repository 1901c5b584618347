package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
)

var _ repository.NotificationHistoryRepository = (*notificationHistoryRepo)(nil)

type notificationHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationHistoryRepo(pool *pgxpool.Pool) *notificationHistoryRepo {
	return &notificationHistoryRepo{pool: pool}
}

func (r *notificationHistoryRepo) Save(ctx context.Context, tx repository.Tx, rec *model.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	const q = `
INSERT INTO notification_history (id, user_id, type, channel, delivered, error, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.UserID, rec.Type, rec.Channel, rec.Delivered, rec.Error, rec.SentAt)
	return err
}

func (r *notificationHistoryRepo) CountSince(ctx context.Context, tx repository.Tx, userID, notifType string, since time.Time) (int, error) {
	const q = `
SELECT count(*) FROM notification_history
WHERE user_id = $1 AND type = $2 AND delivered AND sent_at >= $3`
	row, err := pickRow(ctx, r.pool, tx, q, userID, notifType, since)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
)

var _ repository.PushRetryRepository = (*pushRetryRepo)(nil)

type pushRetryRepo struct {
	pool *pgxpool.Pool
}

func NewPushRetryRepo(pool *pgxpool.Pool) *pushRetryRepo {
	return &pushRetryRepo{pool: pool}
}

func (r *pushRetryRepo) Enqueue(ctx context.Context, tx repository.Tx, retry *model.PushRetry) error {
	if retry.ID == "" {
		retry.ID = uuid.NewString()
	}
	if retry.CreatedAt.IsZero() {
		retry.CreatedAt = time.Now()
	}
	data, err := json.Marshal(retry.Data)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO push_retries (id, user_id, type, title, body, data, attempts, next_attempt_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = execSQL(ctx, r.pool, tx, q,
		retry.ID, retry.UserID, retry.Type, retry.Title, retry.Body, data,
		retry.Attempts, retry.NextAttemptAt, retry.CreatedAt)
	return err
}

// ClaimDue deletes due rows and returns them in one statement. A retry that
// fails again is re-enqueued by the caller with a bumped attempt count, so
// delete-on-claim cannot lose work without also losing the process.
func (r *pushRetryRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.PushRetry, error) {
	const q = `
DELETE FROM push_retries
WHERE id IN (
    SELECT id FROM push_retries
    WHERE next_attempt_at <= $1
    ORDER BY next_attempt_at
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING id, user_id, type, title, body, data, attempts, next_attempt_at, created_at`

	rows, err := pickRows(ctx, r.pool, nil, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PushRetry
	for rows.Next() {
		var p model.PushRetry
		var data []byte
		err := rows.Scan(&p.ID, &p.UserID, &p.Type, &p.Title, &p.Body, &data,
			&p.Attempts, &p.NextAttemptAt, &p.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &p.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

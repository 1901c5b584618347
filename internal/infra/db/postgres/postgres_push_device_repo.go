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

var _ repository.PushDeviceRepository = (*pushDeviceRepo)(nil)

type pushDeviceRepo struct {
	pool *pgxpool.Pool
}

func NewPushDeviceRepo(pool *pgxpool.Pool) *pushDeviceRepo {
	return &pushDeviceRepo{pool: pool}
}

func (r *pushDeviceRepo) Save(ctx context.Context, tx repository.Tx, dev *model.PushDevice) error {
	if dev.ID == "" {
		dev.ID = uuid.NewString()
	}
	if dev.RegisteredAt.IsZero() {
		dev.RegisteredAt = time.Now()
	}
	// One device per (user, channel); re-registration refreshes the token.
	const q = `
INSERT INTO push_devices (id, user_id, channel, token, platform, registered_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, channel) DO UPDATE SET
  token = EXCLUDED.token,
  platform = EXCLUDED.platform,
  registered_at = EXCLUDED.registered_at;`
	_, err := execSQL(ctx, r.pool, tx, q,
		dev.ID, dev.UserID, dev.Channel, dev.Token, dev.Platform, dev.RegisteredAt)
	return err
}

func (r *pushDeviceRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PushDevice, error) {
	const q = `
SELECT id, user_id, channel, token, platform, registered_at
FROM push_devices WHERE user_id = $1
ORDER BY registered_at DESC`
	rows, err := pickRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PushDevice
	for rows.Next() {
		var d model.PushDevice
		var channel string
		if err := rows.Scan(&d.ID, &d.UserID, &channel, &d.Token, &d.Platform, &d.RegisteredAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		d.Channel = model.Channel(channel)
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *pushDeviceRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM push_devices WHERE id = $1`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	return err
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

// userRepo reads the product's users table; this service never writes it.
type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, timezone, notifications_enabled, disabled_types, channel_preference, last_active_at, registered_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var channel string
	var disabledTypes []byte
	err := row.Scan(&u.ID, &u.Email, &u.Timezone, &u.Prefs.Enabled, &disabledTypes,
		&channel, &u.LastActiveAt, &u.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	u.Prefs.Channel = model.ChannelPreference(channel)
	if len(disabledTypes) > 0 {
		if err := json.Unmarshal(disabledTypes, &u.Prefs.DisabledTypes); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &u, nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) ListActiveSince(ctx context.Context, tx repository.Tx, since time.Time, offset, limit int) ([]*model.User, error) {
	const q = `
SELECT ` + userColumns + ` FROM users
WHERE last_active_at >= $1
ORDER BY id
OFFSET $2 LIMIT $3`
	rows, err := pickRows(ctx, r.pool, tx, q, since, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
)

var _ repository.TagSyncRepository = (*tagSyncRepo)(nil)

type tagSyncRepo struct {
	pool *pgxpool.Pool
}

func NewTagSyncRepo(pool *pgxpool.Pool) *tagSyncRepo {
	return &tagSyncRepo{pool: pool}
}

func (r *tagSyncRepo) Find(ctx context.Context, tx repository.Tx, userID string) (*model.TagSyncState, error) {
	const q = `SELECT user_id, week_key, hash, synced_at FROM tag_sync_state WHERE user_id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	var s model.TagSyncState
	if err := row.Scan(&s.UserID, &s.WeekKey, &s.Hash, &s.SyncedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func (r *tagSyncRepo) Save(ctx context.Context, tx repository.Tx, state *model.TagSyncState) error {
	if state.SyncedAt.IsZero() {
		state.SyncedAt = time.Now()
	}
	const q = `
INSERT INTO tag_sync_state (user_id, week_key, hash, synced_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
  week_key = EXCLUDED.week_key,
  hash = EXCLUDED.hash,
  synced_at = EXCLUDED.synced_at;`
	_, err := execSQL(ctx, r.pool, tx, q, state.UserID, state.WeekKey, state.Hash, state.SyncedAt)
	return err
}

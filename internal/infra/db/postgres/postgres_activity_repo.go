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

var _ repository.ActivityRepository = (*activityRepo)(nil)

// activityRepo reads journal entries and meditation sessions owned by the
// surrounding product.
type activityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *activityRepo {
	return &activityRepo{pool: pool}
}

func (r *activityRepo) FindEntries(ctx context.Context, tx repository.Tx, ids []string) ([]*model.JournalEntry, error) {
	const q = `
SELECT id, user_id, title, body, created_at FROM journal_entries
WHERE id = ANY($1)
ORDER BY created_at`
	rows, err := pickRows(ctx, r.pool, tx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *activityRepo) ListEntriesBetween(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) ([]*model.JournalEntry, error) {
	const q = `
SELECT id, user_id, title, body, created_at FROM journal_entries
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at`
	rows, err := pickRows(ctx, r.pool, tx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *activityRepo) CountEntriesBetween(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) (int, error) {
	const q = `
SELECT count(*) FROM journal_entries
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`
	return r.countRange(ctx, tx, q, userID, from, to)
}

func (r *activityRepo) CountSessionsBetween(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) (int, error) {
	const q = `
SELECT count(*) FROM meditation_sessions
WHERE user_id = $1 AND completed_at >= $2 AND completed_at < $3`
	return r.countRange(ctx, tx, q, userID, from, to)
}

func (r *activityRepo) countRange(ctx context.Context, tx repository.Tx, q, userID string, from, to time.Time) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, q, userID, from, to)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func collectEntries(rows pgx.Rows) ([]*model.JournalEntry, error) {
	var out []*model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Body, &e.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

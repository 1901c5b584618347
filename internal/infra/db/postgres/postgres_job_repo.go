package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, user_id, entry_ids, duration_sec, voice, status, attempts, claimed_at, audio_key, last_error, created_at, updated_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status string
	err := row.Scan(
		&j.ID, &j.UserID, &j.EntryIDs, &j.DurationSec, &j.Voice, &status,
		&j.Attempts, &j.ClaimedAt, &j.AudioKey, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

func (r *jobRepo) Enqueue(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		// ULIDs sort by creation time, so the claim scan's ORDER BY id is FIFO.
		job.ID = ulid.Make().String()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.Status = model.JobStatusPending

	const q = `
INSERT INTO jobs (id, user_id, entry_ids, duration_sec, voice, status, attempts, last_error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.UserID, job.EntryIDs, job.DurationSec, job.Voice,
		job.Status, job.Attempts, job.LastError, job.CreatedAt, job.UpdatedAt)
	return err
}

// ClaimNext is the exclusivity primitive: one conditional update that flips a
// pending row to processing and returns only the row this call changed.
// SKIP LOCKED keeps concurrent pollers from blocking on each other.
func (r *jobRepo) ClaimNext(ctx context.Context) (*model.Job, error) {
	const q = `
UPDATE jobs SET status = 'processing', claimed_at = now(), updated_at = now()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending'
    ORDER BY id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns

	row, err := pickRow(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id, audioKey string) error {
	const q = `
UPDATE jobs SET status = 'completed', audio_key = $2, updated_at = now()
WHERE id = $1 AND status = 'processing'`
	tag, err := execSQL(ctx, r.pool, nil, q, id, audioKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	const q = `
UPDATE jobs SET status = 'failed', last_error = $2, updated_at = now()
WHERE id = $1 AND status = 'processing'`
	tag, err := execSQL(ctx, r.pool, nil, q, id, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReclaimStale flips processing rows claimed before the cutoff to failed and
// returns them so the sweeper can re-queue survivors.
func (r *jobRepo) ReclaimStale(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error) {
	const q = `
UPDATE jobs SET status = 'failed', last_error = 'reclaimed: stuck in processing', updated_at = now()
WHERE id IN (
    SELECT id FROM jobs
    WHERE status = 'processing' AND claimed_at < $1
    ORDER BY claimed_at
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns

	rows, err := pickRows(ctx, r.pool, nil, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

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

var _ repository.WeeklyProgressRepository = (*weeklyProgressRepo)(nil)

type weeklyProgressRepo struct {
	pool *pgxpool.Pool
}

func NewWeeklyProgressRepo(pool *pgxpool.Pool) *weeklyProgressRepo {
	return &weeklyProgressRepo{pool: pool}
}

// weekDate renders a week start as a plain date string. week_start is a DATE
// column; sending text sidesteps the server-timezone cast a timestamptz
// parameter would go through.
func weekDate(t time.Time) string {
	return t.Format("2006-01-02")
}

const progressColumns = `user_id, week_start, timezone, journal_count, meditation_count,
journal_remaining, meditation_remaining, unlocked, report_ready, eligible,
report_sent_at, next_report_at, claimed_at, retry_attempts,
reminder_attempted_at, reminder_sent_at, updated_at`

func scanProgress(row pgx.Row) (*model.WeeklyProgress, error) {
	var p model.WeeklyProgress
	err := row.Scan(
		&p.UserID, &p.WeekStart, &p.Timezone, &p.JournalCount, &p.MeditationCount,
		&p.JournalRemaining, &p.MeditationRemaining, &p.Unlocked, &p.ReportReady, &p.Eligible,
		&p.ReportSentAt, &p.NextReportAt, &p.ClaimedAt, &p.RetryAttempts,
		&p.ReminderAttemptedAt, &p.ReminderSentAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}

// Upsert rewrites the evaluator-owned columns. The scheduler's bookkeeping
// (sent/claim/retry/reminder stamps) is deliberately not in the SET list so a
// recompute can never resurrect a sent report.
func (r *weeklyProgressRepo) Upsert(ctx context.Context, tx repository.Tx, row *model.WeeklyProgress) error {
	row.UpdatedAt = time.Now()
	const q = `
INSERT INTO weekly_progress (user_id, week_start, timezone, journal_count, meditation_count,
    journal_remaining, meditation_remaining, unlocked, report_ready, eligible, next_report_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (user_id, week_start) DO UPDATE SET
  timezone = EXCLUDED.timezone,
  journal_count = EXCLUDED.journal_count,
  meditation_count = EXCLUDED.meditation_count,
  journal_remaining = EXCLUDED.journal_remaining,
  meditation_remaining = EXCLUDED.meditation_remaining,
  unlocked = EXCLUDED.unlocked,
  report_ready = EXCLUDED.report_ready,
  eligible = weekly_progress.report_sent_at IS NULL AND EXCLUDED.eligible,
  next_report_at = EXCLUDED.next_report_at,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		row.UserID, weekDate(row.WeekStart), row.Timezone, row.JournalCount, row.MeditationCount,
		row.JournalRemaining, row.MeditationRemaining, row.Unlocked, row.ReportReady,
		row.Eligible, row.NextReportAt, row.UpdatedAt)
	return err
}

func (r *weeklyProgressRepo) Find(ctx context.Context, tx repository.Tx, userID string, weekStart time.Time) (*model.WeeklyProgress, error) {
	const q = `SELECT ` + progressColumns + ` FROM weekly_progress WHERE user_id = $1 AND week_start = $2`
	row, err := pickRow(ctx, r.pool, tx, q, userID, weekDate(weekStart))
	if err != nil {
		return nil, err
	}
	return scanProgress(row)
}

// ClaimDueReports uses the same update-then-return pattern as the job claim:
// rows another sweep already holds (live claim) or already sent are filtered
// by the predicate, so only this call's rows come back.
func (r *weeklyProgressRepo) ClaimDueReports(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.WeeklyProgress, error) {
	const q = `
UPDATE weekly_progress SET claimed_at = $1
WHERE (user_id, week_start) IN (
    SELECT user_id, week_start FROM weekly_progress
    WHERE eligible AND report_sent_at IS NULL AND next_report_at <= $1
      AND (claimed_at IS NULL OR claimed_at < $2)
    ORDER BY next_report_at
    LIMIT $3
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + progressColumns

	rows, err := pickRows(ctx, r.pool, nil, q, now, now.Add(-lease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProgress(rows)
}

func (r *weeklyProgressRepo) MarkReportSent(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error {
	// eligible flips false permanently for the week once the report is out.
	const q = `
UPDATE weekly_progress
SET report_sent_at = $3, eligible = FALSE, claimed_at = NULL, updated_at = now()
WHERE user_id = $1 AND week_start = $2 AND report_sent_at IS NULL`
	tag, err := execSQL(ctx, r.pool, nil, q, userID, weekDate(weekStart), sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *weeklyProgressRepo) ReleaseForRetry(ctx context.Context, userID string, weekStart time.Time, nextAt time.Time) error {
	const q = `
UPDATE weekly_progress
SET claimed_at = NULL, retry_attempts = retry_attempts + 1, next_report_at = $3, updated_at = now()
WHERE user_id = $1 AND week_start = $2`
	_, err := execSQL(ctx, r.pool, nil, q, userID, weekDate(weekStart), nextAt)
	return err
}

func (r *weeklyProgressRepo) ListReminderCandidates(ctx context.Context, now, attemptCutoff time.Time, limit int) ([]*model.WeeklyProgress, error) {
	const q = `
SELECT ` + progressColumns + ` FROM weekly_progress
WHERE week_start > $1 - interval '7 days'
  AND report_ready = FALSE
  AND reminder_sent_at IS NULL
  AND (reminder_attempted_at IS NULL OR reminder_attempted_at < $2)
ORDER BY week_start
LIMIT $3`
	rows, err := pickRows(ctx, r.pool, nil, q, now, attemptCutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProgress(rows)
}

func (r *weeklyProgressRepo) TryMarkReminderAttempted(ctx context.Context, userID string, weekStart time.Time, now, attemptCutoff time.Time) (bool, error) {
	const q = `
UPDATE weekly_progress SET reminder_attempted_at = $3, updated_at = now()
WHERE user_id = $1 AND week_start = $2
  AND reminder_sent_at IS NULL
  AND (reminder_attempted_at IS NULL OR reminder_attempted_at < $4)`
	tag, err := execSQL(ctx, r.pool, nil, q, userID, weekDate(weekStart), now, attemptCutoff)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *weeklyProgressRepo) MarkReminderSent(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error {
	const q = `
UPDATE weekly_progress SET reminder_sent_at = $3, updated_at = now()
WHERE user_id = $1 AND week_start = $2`
	_, err := execSQL(ctx, r.pool, nil, q, userID, weekDate(weekStart), sentAt)
	return err
}

// ListStaleForTagSync picks each user's latest week when the sync state is
// missing, stale, or pinned to an older week.
func (r *weeklyProgressRepo) ListStaleForTagSync(ctx context.Context, cutoff time.Time, limit int) ([]*model.WeeklyProgress, error) {
	const q = `
SELECT ` + progressColumns + ` FROM weekly_progress p
WHERE p.week_start = (SELECT max(week_start) FROM weekly_progress WHERE user_id = p.user_id)
  AND NOT EXISTS (
      SELECT 1 FROM tag_sync_state s
      WHERE s.user_id = p.user_id
        AND s.synced_at >= $1
        AND s.week_key = to_char(p.week_start, 'YYYY-MM-DD')
  )
LIMIT $2`
	rows, err := pickRows(ctx, r.pool, nil, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProgress(rows)
}

func collectProgress(rows pgx.Rows) ([]*model.WeeklyProgress, error) {
	var out []*model.WeeklyProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

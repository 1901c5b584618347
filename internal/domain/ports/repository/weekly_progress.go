package repository

import (
	"context"
	"time"

	"stillpoint/internal/domain/model"
)

type WeeklyProgressRepository interface {
	// Upsert writes counters/flags for (user, week start), preserving the
	// scheduler's bookkeeping columns (sent/claim/retry/reminder).
	Upsert(ctx context.Context, tx Tx, row *model.WeeklyProgress) error
	Find(ctx context.Context, tx Tx, userID string, weekStart time.Time) (*model.WeeklyProgress, error)

	// ClaimDueReports atomically claims rows that are eligible, unsent, and
	// due (next_report_at <= now), skipping rows with a live claim. Only rows
	// this call actually claimed are returned, so concurrent sweeps never
	// double-send.
	ClaimDueReports(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.WeeklyProgress, error)
	// MarkReportSent records the send and retires the row's eligibility.
	MarkReportSent(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error
	// ReleaseForRetry drops the claim, bumps retry_attempts, and pushes
	// next_report_at forward. The row stays eligible.
	ReleaseForRetry(ctx context.Context, userID string, weekStart time.Time, nextAt time.Time) error

	// ListReminderCandidates returns current-week rows whose reminder has
	// neither been sent nor attempted since the cutoff.
	ListReminderCandidates(ctx context.Context, now, attemptCutoff time.Time, limit int) ([]*model.WeeklyProgress, error)
	// TryMarkReminderAttempted stamps reminder_attempted_at conditionally and
	// reports whether this call won the stamp. Losing callers skip the send,
	// which makes the reminder idempotent per day even across instances.
	TryMarkReminderAttempted(ctx context.Context, userID string, weekStart time.Time, now, attemptCutoff time.Time) (bool, error)
	MarkReminderSent(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error

	// ListStaleForTagSync returns rows whose tag sync is older than the
	// cutoff or whose week key has advanced since the last sync.
	ListStaleForTagSync(ctx context.Context, cutoff time.Time, limit int) ([]*model.WeeklyProgress, error)
}

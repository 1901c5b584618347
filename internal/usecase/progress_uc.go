package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"stillpoint/internal/config"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/infra/metrics"
	"stillpoint/internal/timeutil"
)

// ProgressEvaluator recomputes weekly progress rows from raw activity.
type ProgressEvaluator interface {
	Recompute(ctx context.Context, userID string, now time.Time) (*model.WeeklyProgress, error)
	RecomputeActive(ctx context.Context, now time.Time) (int, error)
}

var _ ProgressEvaluator = (*progressUC)(nil)

type progressUC struct {
	users    repository.UserRepository
	activity repository.ActivityRepository
	progress repository.WeeklyProgressRepository
	txm      repository.TransactionManager
	cfg      config.ProgressConfig
	log      *zerolog.Logger
}

func NewProgressEvaluator(
	users repository.UserRepository,
	activity repository.ActivityRepository,
	progress repository.WeeklyProgressRepository,
	txm repository.TransactionManager,
	cfg config.ProgressConfig,
	logger *zerolog.Logger,
) *progressUC {
	compLog := logger.With().Str("component", "ProgressEvaluator").Logger()
	return &progressUC{
		users:    users,
		activity: activity,
		progress: progress,
		txm:      txm,
		cfg:      cfg,
		log:      &compLog,
	}
}

// Recompute rebuilds the current-week row for one user from counts alone.
// It is idempotent: the same activity always yields the same row, and the
// repository preserves the scheduler's bookkeeping columns on upsert.
func (u *progressUC) Recompute(ctx context.Context, userID string, now time.Time) (*model.WeeklyProgress, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	loc := timeutil.LoadLocation(user.Timezone, u.cfg.DefaultTimezone)
	weekStart := timeutil.WeekStart(now, loc)
	from, to := timeutil.WeekBounds(now, loc)

	// Both counts and the upsert run in one transaction so the stored row
	// reflects a single snapshot of the week's activity.
	var row *model.WeeklyProgress
	err = u.txm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(ctx context.Context, tx repository.Tx) error {
		journal, err := u.activity.CountEntriesBetween(ctx, tx, userID, from, to)
		if err != nil {
			return err
		}
		meditation, err := u.activity.CountSessionsBetween(ctx, tx, userID, from, to)
		if err != nil {
			return err
		}

		row = &model.WeeklyProgress{
			UserID:              userID,
			WeekStart:           weekStart,
			Timezone:            loc.String(),
			JournalCount:        journal,
			MeditationCount:     meditation,
			JournalRemaining:    remaining(u.cfg.ReportJournal, journal),
			MeditationRemaining: remaining(u.cfg.ReportMeditation, meditation),
			Unlocked:            journal >= u.cfg.UnlockJournal,
			ReportReady:         journal >= u.cfg.ReportJournal && meditation >= u.cfg.ReportMeditation,
			NextReportAt:        timeutil.NextWeekStart(now, loc),
		}
		// Eligibility follows readiness; the repository refuses to resurrect
		// a row whose report already went out.
		row.Eligible = row.ReportReady

		return u.progress.Upsert(ctx, tx, row)
	})
	if err != nil {
		return nil, err
	}
	metrics.IncProgressRecomputed()
	return row, nil
}

// RecomputeActive sweeps recently active users and recomputes each one.
// Per-user failures are logged and skipped so one bad row cannot stall the
// whole sweep.
func (u *progressUC) RecomputeActive(ctx context.Context, now time.Time) (int, error) {
	const pageSize = 200
	cutoff := now.Add(-u.cfg.ActiveWindow)
	recomputed := 0
	for offset := 0; ; offset += pageSize {
		users, err := u.users.ListActiveSince(ctx, repository.NoTX, cutoff, offset, pageSize)
		if err != nil {
			return recomputed, err
		}
		for _, user := range users {
			if ctx.Err() != nil {
				return recomputed, ctx.Err()
			}
			if _, err := u.Recompute(ctx, user.ID, now); err != nil {
				u.log.Error().Err(err).Str("user_id", user.ID).Msg("progress recompute failed")
				continue
			}
			recomputed++
		}
		if len(users) < pageSize {
			return recomputed, nil
		}
	}
}

func remaining(threshold, have int) int {
	if have >= threshold {
		return 0
	}
	return threshold - have
}

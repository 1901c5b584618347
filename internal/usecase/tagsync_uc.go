package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stillpoint/internal/config"
	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/adapter"
	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/infra/metrics"
)

// TagSyncUseCase mirrors weekly progress into the audience service as tags.
type TagSyncUseCase interface {
	Run(ctx context.Context, now time.Time) (int, error)
}

var _ TagSyncUseCase = (*tagSyncUC)(nil)

type tagSyncUC struct {
	progress repository.WeeklyProgressRepository
	state    repository.TagSyncRepository
	audience adapter.AudienceClient
	cfg      config.TagSyncConfig
	log      *zerolog.Logger
}

func NewTagSyncUseCase(
	progress repository.WeeklyProgressRepository,
	state repository.TagSyncRepository,
	audience adapter.AudienceClient,
	cfg config.TagSyncConfig,
	logger *zerolog.Logger,
) *tagSyncUC {
	compLog := logger.With().Str("component", "TagSync").Logger()
	return &tagSyncUC{
		progress: progress,
		state:    state,
		audience: audience,
		cfg:      cfg,
		log:      &compLog,
	}
}

// Run pushes tags for users whose sync state is missing, stale, or pinned to
// an older week. Returns the number of users actually pushed. The hash check
// makes reruns free: identical snapshots never leave the process.
func (u *tagSyncUC) Run(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-u.cfg.StaleAfter)
	rows, err := u.progress.ListStaleForTagSync(ctx, cutoff, u.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list tag sync candidates: %w", err)
	}

	pushed := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return pushed, ctx.Err()
		}
		ok, err := u.syncOne(ctx, row, now)
		if err != nil {
			metrics.IncTagSync("failed")
			u.log.Error().Err(err).Str("user_id", row.UserID).Msg("tag sync failed")
			continue
		}
		if ok {
			pushed++
		}
	}
	return pushed, nil
}

func (u *tagSyncUC) syncOne(ctx context.Context, row *model.WeeklyProgress, now time.Time) (bool, error) {
	tags := model.TagSnapshot(row)
	hash := model.HashTags(tags)

	prev, err := u.state.Find(ctx, repository.NoTX, row.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if prev != nil && prev.Hash == hash {
		// Same snapshot, just refresh the stamp so the row leaves the
		// candidate set until it actually changes.
		metrics.IncTagSync("skipped_hash")
		prev.WeekKey = row.WeekKey()
		prev.SyncedAt = now
		return false, u.state.Save(ctx, repository.NoTX, prev)
	}

	if err := u.audience.UpsertTags(ctx, row.UserID, tags); err != nil {
		return false, err
	}
	metrics.IncTagSync("pushed")
	return true, u.state.Save(ctx, repository.NoTX, &model.TagSyncState{
		UserID:   row.UserID,
		WeekKey:  row.WeekKey(),
		Hash:     hash,
		SyncedAt: now,
	})
}

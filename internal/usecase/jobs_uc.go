package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"stillpoint/internal/config"
	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
)

// JobsUseCase is the thin API-facing surface over the job queue: clients
// create jobs and poll them; the worker pool does everything else.
type JobsUseCase interface {
	Enqueue(ctx context.Context, userID string, entryIDs []string, durationSec int, voice string) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
}

var _ JobsUseCase = (*jobsUC)(nil)

type jobsUC struct {
	jobs  repository.JobRepository
	aiCfg config.AIConfig
	log   *zerolog.Logger
}

func NewJobsUseCase(jobs repository.JobRepository, aiCfg config.AIConfig, logger *zerolog.Logger) *jobsUC {
	compLog := logger.With().Str("component", "Jobs").Logger()
	return &jobsUC{jobs: jobs, aiCfg: aiCfg, log: &compLog}
}

func (u *jobsUC) Enqueue(ctx context.Context, userID string, entryIDs []string, durationSec int, voice string) (*model.Job, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id empty", domain.ErrInvalidArgument)
	}
	if len(entryIDs) == 0 {
		return nil, domain.ErrJobWithNoInput
	}
	if durationSec <= 0 {
		durationSec = 60
	}
	if voice == "" {
		voice = u.aiCfg.DefaultVoice
	}
	job := &model.Job{
		UserID:      userID,
		EntryIDs:    entryIDs,
		DurationSec: durationSec,
		Voice:       voice,
		Status:      model.JobStatusPending,
	}
	if err := u.jobs.Enqueue(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}
	u.log.Info().Str("job_id", job.ID).Str("user_id", userID).Int("entries", len(entryIDs)).Msg("job enqueued")
	return job, nil
}

func (u *jobsUC) Get(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: job id empty", domain.ErrInvalidArgument)
	}
	return u.jobs.FindByID(ctx, repository.NoTX, id)
}

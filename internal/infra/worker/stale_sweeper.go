package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stillpoint/internal/config"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/infra/metrics"
	"stillpoint/internal/usecase"
)

// StaleSweeper re-queues jobs a crashed worker left stuck in processing.
// Reclaimed rows are marked failed and retried as fresh pending rows, same as
// any other failure.
type StaleSweeper struct {
	jobs       repository.JobRepository
	dispatcher usecase.Dispatcher
	cfg        config.WorkersConfig
	log        *zerolog.Logger
}

func NewStaleSweeper(
	jobs repository.JobRepository,
	dispatcher usecase.Dispatcher,
	cfg config.WorkersConfig,
	logger *zerolog.Logger,
) *StaleSweeper {
	compLog := logger.With().Str("component", "StaleSweeper").Logger()
	return &StaleSweeper{jobs: jobs, dispatcher: dispatcher, cfg: cfg, log: &compLog}
}

// Start runs the sweep loop. This should be run in a goroutine.
func (s *StaleSweeper) Start(ctx context.Context) {
	s.log.Info().Msg("stale sweeper started")
	ticker := time.NewTicker(s.cfg.StaleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("stale sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *StaleSweeper) sweep(ctx context.Context) {
	const batch = 100
	cutoff := time.Now().Add(-s.cfg.StaleAfter)
	reclaimed, err := s.jobs.ReclaimStale(ctx, cutoff, batch)
	if err != nil {
		s.log.Error().Err(err).Msg("stale reclaim failed")
		return
	}
	if len(reclaimed) == 0 {
		return
	}
	metrics.IncJobsReclaimed(len(reclaimed))

	for _, job := range reclaimed {
		retry := job.RetryJob()
		if retry.Attempts < s.cfg.MaxAttempts {
			if err := s.jobs.Enqueue(ctx, repository.NoTX, retry); err != nil {
				s.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to re-enqueue reclaimed job")
				continue
			}
			s.log.Warn().Str("job_id", job.ID).Str("retry_id", retry.ID).Msg("stale job re-enqueued")
			continue
		}
		s.log.Warn().Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("stale job exhausted retries")
		res := s.dispatcher.Send(ctx, job.UserID, model.Notification{
			Type:  model.NotifTypeJobFailed,
			Title: "We couldn't create your reflection",
			Body:  "Something went wrong while creating your audio reflection. Please try again.",
			Data:  map[string]string{"job_id": job.ID},
		})
		if res.Err != nil {
			s.log.Warn().Err(res.Err).Str("job_id", job.ID).Msg("stale job notification failed")
		}
	}
}

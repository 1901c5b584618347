package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stillpoint/internal/usecase"
)

// ProgressWorker periodically recomputes weekly progress for recently active
// users so rows exist before the report and tag sweeps look for them.
type ProgressWorker struct {
	interval time.Duration
	progress usecase.ProgressEvaluator
	log      *zerolog.Logger
}

func NewProgressWorker(interval time.Duration, progress usecase.ProgressEvaluator, logger *zerolog.Logger) *ProgressWorker {
	progLog := logger.With().Str("component", "ProgressWorker").Logger()
	return &ProgressWorker{
		interval: interval,
		progress: progress,
		log:      &progLog,
	}
}

func (w *ProgressWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting progress worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping progress worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.progress.RecomputeActive(ctx, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("progress sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("weekly progress recomputed")
			}
		}
	}
}

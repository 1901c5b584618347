package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stillpoint/internal/usecase"
)

// TagSyncWorker periodically mirrors weekly progress into the audience
// service via the use case.
type TagSyncWorker struct {
	interval time.Duration
	tagSync  usecase.TagSyncUseCase
	log      *zerolog.Logger
}

func NewTagSyncWorker(interval time.Duration, tagSync usecase.TagSyncUseCase, logger *zerolog.Logger) *TagSyncWorker {
	syncLog := logger.With().Str("component", "TagSyncWorker").Logger()
	return &TagSyncWorker{
		interval: interval,
		tagSync:  tagSync,
		log:      &syncLog,
	}
}

func (w *TagSyncWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting tag sync worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping tag sync worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.tagSync.Run(ctx, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("tag sync sweep error")
			}
			if n > 0 {
				w.log.Info().Int("pushed", n).Msg("audience tags pushed")
			}
		}
	}
}

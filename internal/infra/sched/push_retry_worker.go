package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/usecase"
)

// PushRetryWorker drains due push retries back through the dispatcher. Claims
// are removal-on-read, so a retry that fails again is re-enqueued by the
// dispatcher with a bumped attempt count.
type PushRetryWorker struct {
	interval   time.Duration
	retries    repository.PushRetryRepository
	dispatcher usecase.Dispatcher
	log        *zerolog.Logger
}

func NewPushRetryWorker(interval time.Duration, retries repository.PushRetryRepository, dispatcher usecase.Dispatcher, logger *zerolog.Logger) *PushRetryWorker {
	retryLog := logger.With().Str("component", "PushRetryWorker").Logger()
	return &PushRetryWorker{
		interval:   interval,
		retries:    retries,
		dispatcher: dispatcher,
		log:        &retryLog,
	}
}

func (w *PushRetryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting push retry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping push retry worker")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *PushRetryWorker) drain(ctx context.Context) {
	const batch = 50
	due, err := w.retries.ClaimDue(ctx, time.Now(), batch)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to claim due push retries")
		return
	}
	for _, r := range due {
		if ctx.Err() != nil {
			return
		}
		res := w.dispatcher.Redeliver(ctx, r)
		if res.Err != nil {
			w.log.Warn().Err(res.Err).Str("user_id", r.UserID).Int("attempts", r.Attempts).Msg("push redelivery failed")
		}
	}
}

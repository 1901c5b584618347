package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stillpoint/internal/usecase"
)

// ReminderWorker periodically nudges users whose weekly thresholds are still
// unmet. The attempt stamp keeps concurrent instances to one nudge per day.
type ReminderWorker struct {
	interval time.Duration
	reports  usecase.ReportUseCase
	log      *zerolog.Logger
}

func NewReminderWorker(interval time.Duration, reports usecase.ReportUseCase, logger *zerolog.Logger) *ReminderWorker {
	remLog := logger.With().Str("component", "ReminderWorker").Logger()
	return &ReminderWorker{
		interval: interval,
		reports:  reports,
		log:      &remLog,
	}
}

func (w *ReminderWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting reminder worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reminder worker")
			return ctx.Err()
		case <-ticker.C:
			sent, err := w.reports.RunReminders(ctx, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("reminder sweep error")
			}
			if sent > 0 {
				w.log.Info().Int("sent", sent).Msg("weekly reminders sent")
			}
		}
	}
}

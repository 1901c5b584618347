package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stillpoint/internal/usecase"
)

// ReportScheduler periodically claims and sends due weekly reports via the
// use case. Safe to run on every instance; the claim lease arbitrates.
type ReportScheduler struct {
	interval time.Duration
	reports  usecase.ReportUseCase
	log      *zerolog.Logger
}

func NewReportScheduler(interval time.Duration, reports usecase.ReportUseCase, logger *zerolog.Logger) *ReportScheduler {
	schedLog := logger.With().Str("component", "ReportScheduler").Logger()
	return &ReportScheduler{
		interval: interval,
		reports:  reports,
		log:      &schedLog,
	}
}

func (w *ReportScheduler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting report scheduler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping report scheduler")
			return ctx.Err()
		case <-ticker.C:
			processed, sent, err := w.reports.RunReports(ctx, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("report sweep error")
			}
			if processed > 0 {
				w.log.Info().Int("processed", processed).Int("sent", sent).Msg("report sweep done")
			}
		}
	}
}

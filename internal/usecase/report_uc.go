package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"stillpoint/internal/config"
	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/adapter"
	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/infra/metrics"
	"stillpoint/internal/timeutil"
)

// ReportUseCase owns the weekly report and reminder sweeps. Both are driven
// by tickers and must be safe to run concurrently on multiple instances.
type ReportUseCase interface {
	// RunReports claims due rows, renders and emails their summaries, and
	// returns (rows claimed, reports sent).
	RunReports(ctx context.Context, now time.Time) (int, int, error)
	// RunReminders nudges users whose week thresholds are still unmet.
	RunReminders(ctx context.Context, now time.Time) (int, error)
}

var _ ReportUseCase = (*reportUC)(nil)

type reportUC struct {
	progress   repository.WeeklyProgressRepository
	users      repository.UserRepository
	activity   repository.ActivityRepository
	ai         adapter.AIServiceAdapter
	email      adapter.EmailSender
	dispatcher Dispatcher
	cfg        config.ReportsConfig
	aiCfg      config.AIConfig
	backoff    model.BackoffPolicy
	log        *zerolog.Logger
}

func NewReportUseCase(
	progress repository.WeeklyProgressRepository,
	users repository.UserRepository,
	activity repository.ActivityRepository,
	ai adapter.AIServiceAdapter,
	email adapter.EmailSender,
	dispatcher Dispatcher,
	cfg config.ReportsConfig,
	aiCfg config.AIConfig,
	logger *zerolog.Logger,
) *reportUC {
	compLog := logger.With().Str("component", "ReportUseCase").Logger()
	return &reportUC{
		progress:   progress,
		users:      users,
		activity:   activity,
		ai:         ai,
		email:      email,
		dispatcher: dispatcher,
		cfg:        cfg,
		aiCfg:      aiCfg,
		backoff: model.BackoffPolicy{
			Base:        cfg.RetryBackoff.Base,
			Cap:         cfg.RetryBackoff.Cap,
			MaxAttempts: cfg.RetryBackoff.MaxAttempts,
		},
		log: &compLog,
	}
}

func (u *reportUC) RunReports(ctx context.Context, now time.Time) (int, int, error) {
	rows, err := u.progress.ClaimDueReports(ctx, now, u.cfg.ClaimLease, u.cfg.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("claim due reports: %w", err)
	}
	sent := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			// Drop the claims we won't get to; the lease would release them
			// anyway, this just shortens the gap.
			u.release(context.Background(), row, row.NextReportAt)
			continue
		}
		if u.sendReport(ctx, row, now) {
			sent++
		}
	}
	return len(rows), sent, nil
}

// sendReport handles one claimed row end to end. Whatever happens, the row is
// never left claimed: success retires it, every other path releases it with a
// future next_report_at.
func (u *reportUC) sendReport(ctx context.Context, row *model.WeeklyProgress, now time.Time) bool {
	log := u.log.With().Str("user_id", row.UserID).Str("week", row.WeekKey()).Logger()
	loc := timeutil.LoadLocation(row.Timezone, "UTC")

	// Re-check the local trigger moment with the current zone rules. The
	// stored next_report_at can be early when the user's timezone moved west
	// after the evaluator computed it.
	weekEnd := row.WeekStart.AddDate(0, 0, 7)
	if !timeutil.HasReachedLocalMoment(now, weekEnd, 0, 0, loc) {
		metrics.IncReport("skipped_window")
		u.release(ctx, row, timeutil.At(weekEnd, 0, 0, loc).UTC())
		return false
	}

	user, err := u.users.FindByID(ctx, repository.NoTX, row.UserID)
	if err == nil && user.Email == "" {
		err = domain.ErrMissingRecipientEmail
	}
	if err != nil {
		log.Warn().Err(err).Msg("report recipient unavailable, retrying later")
		u.retryLater(ctx, row, now, "retried")
		return false
	}

	html, err := u.render(ctx, row, loc)
	if err != nil {
		log.Error().Err(err).Msg("report render failed")
		u.retryLater(ctx, row, now, "retried")
		return false
	}

	subject := fmt.Sprintf("Your week in review (%s)", row.WeekKey())
	msgID, err := u.email.Send(ctx, user.Email, subject, html)
	if err != nil {
		log.Error().Err(err).Msg("report email failed")
		u.retryLater(ctx, row, now, "retried")
		return false
	}

	if err := u.progress.MarkReportSent(ctx, row.UserID, row.WeekStart, now); err != nil {
		// The email went out but the stamp failed. Log loudly; the lease will
		// let another sweep retry, and the user may get a duplicate.
		log.Error().Err(err).Str("message_id", msgID).Msg("report sent but stamp failed")
		return false
	}
	metrics.IncReport("sent")
	log.Info().Str("message_id", msgID).Msg("weekly report sent")
	return true
}

func (u *reportUC) retryLater(ctx context.Context, row *model.WeeklyProgress, now time.Time, outcome string) {
	metrics.IncReport(outcome)
	u.release(ctx, row, now.Add(u.backoff.Delay(row.RetryAttempts)))
}

func (u *reportUC) release(ctx context.Context, row *model.WeeklyProgress, nextAt time.Time) {
	if err := u.progress.ReleaseForRetry(ctx, row.UserID, row.WeekStart, nextAt); err != nil {
		u.log.Error().Err(err).Str("user_id", row.UserID).Msg("failed to release report claim")
	}
}

var reportTmpl = template.Must(template.New("report").Parse(`<html><body>
<h2>Your week of {{.WeekKey}}</h2>
<p>{{.Summary}}</p>
<p>You wrote {{.JournalCount}} journal {{if eq .JournalCount 1}}entry{{else}}entries{{end}}
and completed {{.MeditationCount}} meditation {{if eq .MeditationCount 1}}session{{else}}sessions{{end}}.</p>
</body></html>`))

func (u *reportUC) render(ctx context.Context, row *model.WeeklyProgress, loc *time.Location) (string, error) {
	from := timeutil.At(row.WeekStart, 0, 0, loc).UTC()
	to := timeutil.At(row.WeekStart.AddDate(0, 0, 7), 0, 0, loc).UTC()
	entries, err := u.activity.ListEntriesBetween(ctx, repository.NoTX, row.UserID, from, to)
	if err != nil {
		return "", fmt.Errorf("load entries: %w", err)
	}

	aiCtx, cancel := context.WithTimeout(ctx, u.aiCfg.CallTimeout)
	defer cancel()
	summary, err := u.ai.GenerateText(aiCtx, u.buildPrompt(entries), adapter.TextParams{
		Model:     u.aiCfg.TextModel,
		MaxTokens: 600,
	})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	var buf bytes.Buffer
	err = reportTmpl.Execute(&buf, struct {
		WeekKey         string
		Summary         string
		JournalCount    int
		MeditationCount int
	}{row.WeekKey(), summary, row.JournalCount, row.MeditationCount})
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// buildPrompt packs the week's entries into the prompt newest-text-last,
// trimming to reports.prompt_budget tokens so a prolific week cannot blow the
// model's context window.
func (u *reportUC) buildPrompt(entries []*model.JournalEntry) string {
	var b strings.Builder
	b.WriteString("Write a short, warm weekly reflection summary (3-5 sentences) " +
		"of the journal entries below. Address the writer directly.\n\n")

	enc, err := tiktoken.EncodingForModel(u.aiCfg.TextModel)
	if err != nil {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	}
	budget := u.cfg.PromptBudget
	for _, e := range entries {
		text := e.Title + "\n" + e.Body + "\n\n"
		if enc != nil {
			n := len(enc.Encode(text, nil, nil))
			if n > budget {
				break
			}
			budget -= n
		}
		b.WriteString(text)
	}
	return b.String()
}

func (u *reportUC) RunReminders(ctx context.Context, now time.Time) (int, error) {
	// Coarse SQL cutoff: anything attempted in the last 24h is out. The exact
	// per-day rule is re-checked below in the row's own timezone.
	attemptCutoff := now.Add(-24 * time.Hour)
	rows, err := u.progress.ListReminderCandidates(ctx, now, attemptCutoff, u.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list reminder candidates: %w", err)
	}

	sent := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if u.sendReminder(ctx, row, now, attemptCutoff) {
			sent++
		}
	}
	return sent, nil
}

func (u *reportUC) sendReminder(ctx context.Context, row *model.WeeklyProgress, now, attemptCutoff time.Time) bool {
	loc := timeutil.LoadLocation(row.Timezone, "UTC")

	// Only nudge about the week the user is still living in. Keys, not
	// instants: week_start round-trips through a DATE column.
	if timeutil.WeekKey(now, loc) != row.WeekKey() {
		return false
	}
	local := now.In(loc)
	if local.Weekday() != u.cfg.ReminderWeekday {
		return false
	}
	if !timeutil.HasReachedLocalMoment(now, local, u.cfg.ReminderHour, 0, loc) {
		return false
	}
	if !row.ReminderDueToday(timeutil.DayStart(now, loc)) {
		return false
	}

	// The conditional stamp is the race arbiter: exactly one instance wins
	// the attempt for today, everyone else walks away.
	won, err := u.progress.TryMarkReminderAttempted(ctx, row.UserID, row.WeekStart, now, attemptCutoff)
	if err != nil {
		u.log.Error().Err(err).Str("user_id", row.UserID).Msg("reminder stamp failed")
		return false
	}
	if !won {
		return false
	}

	res := u.dispatcher.Send(ctx, row.UserID, model.Notification{
		Type:  model.NotifTypeWeeklyReminder,
		Title: "Keep your week going",
		Body:  reminderBody(row),
		Data:  map[string]string{"week": row.WeekKey()},
	})
	if !res.Delivered {
		metrics.IncReminder("skipped")
		if res.Err != nil {
			u.log.Warn().Err(res.Err).Str("user_id", row.UserID).Msg("reminder send failed")
		}
		return false
	}
	if err := u.progress.MarkReminderSent(ctx, row.UserID, row.WeekStart, now); err != nil {
		u.log.Error().Err(err).Str("user_id", row.UserID).Msg("reminder sent but stamp failed")
	}
	metrics.IncReminder("sent")
	return true
}

func reminderBody(row *model.WeeklyProgress) string {
	var parts []string
	if row.JournalRemaining > 0 {
		parts = append(parts, fmt.Sprintf("%d journal %s", row.JournalRemaining, plural(row.JournalRemaining, "entry", "entries")))
	}
	if row.MeditationRemaining > 0 {
		parts = append(parts, fmt.Sprintf("%d meditation %s", row.MeditationRemaining, plural(row.MeditationRemaining, "session", "sessions")))
	}
	if len(parts) == 0 {
		return "You're all set for this week's report."
	}
	return fmt.Sprintf("%s to go for this week's report.", strings.Join(parts, " and "))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

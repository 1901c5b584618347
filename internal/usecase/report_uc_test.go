//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"stillpoint/internal/config"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/usecase"
)

func reportsConfig() config.ReportsConfig {
	return config.ReportsConfig{
		ClaimLease:      10 * time.Minute,
		BatchSize:       10,
		ReminderWeekday: time.Thursday,
		ReminderHour:    18,
		RetryBackoff:    config.BackoffConfig{Base: time.Minute, Cap: time.Hour, MaxAttempts: 5},
		PromptBudget:    1000,
	}
}

func reportAIConfig() config.AIConfig {
	return config.AIConfig{TextModel: "gpt-4o-mini", CallTimeout: time.Minute}
}

func claimedRow(weekStart time.Time) *model.WeeklyProgress {
	return &model.WeeklyProgress{
		UserID:          "user-1",
		WeekStart:       weekStart,
		Timezone:        "UTC",
		JournalCount:    3,
		MeditationCount: 2,
		ReportReady:     true,
		Eligible:        true,
		NextReportAt:    weekStart.AddDate(0, 0, 7),
	}
}

func TestReportUseCase_RunReports(t *testing.T) {
	ctx := context.Background()
	testLogger := newTestLogger()
	// Thursday evening UTC; the week of 2026-08-10 closed long ago.
	now := time.Date(2026, 8, 27, 20, 0, 0, 0, time.UTC)
	closedWeek := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	currentWeek := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	type fixture struct {
		progress *MockProgressRepo
		users    *MockUserRepo
		email    *MockEmail
		uc       usecase.ReportUseCase
	}
	newFixture := func(rows ...*model.WeeklyProgress) *fixture {
		f := &fixture{
			progress: NewMockProgressRepo(),
			users:    NewMockUserRepo(),
			email:    &MockEmail{},
		}
		f.progress.ClaimDueReportsFunc = func(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.WeeklyProgress, error) {
			return rows, nil
		}
		f.users.FindByIDFunc = func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "user@example.com"}, nil
		}
		activity := NewMockActivityRepo()
		activity.ListEntriesBetweenFunc = func(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) ([]*model.JournalEntry, error) {
			return []*model.JournalEntry{{ID: "e1", UserID: userID, Title: "Monday", Body: "A calm start."}}, nil
		}
		f.uc = usecase.NewReportUseCase(f.progress, f.users, activity, &MockAI{}, f.email,
			&MockDispatcher{}, reportsConfig(), reportAIConfig(), testLogger)
		return f
	}

	t.Run("should render, email and stamp a due report", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(claimedRow(closedWeek))
		var stampedWeek time.Time
		f.progress.MarkReportSentFunc = func(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error {
			stampedWeek = weekStart
			return nil
		}

		// --- Act ---
		claimed, sent, err := f.uc.RunReports(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if claimed != 1 || sent != 1 {
			t.Fatalf("expected 1 claimed / 1 sent, got %d/%d", claimed, sent)
		}
		if len(f.email.Sent) != 1 || f.email.Sent[0] != "user@example.com" {
			t.Errorf("expected one email to the user, got %v", f.email.Sent)
		}
		if !stampedWeek.Equal(closedWeek) {
			t.Errorf("expected week %v stamped, got %v", closedWeek, stampedWeek)
		}
	})

	t.Run("should release the claim with backoff when the email fails", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(claimedRow(closedWeek))
		f.email.SendFunc = func(ctx context.Context, to, subject, html string) (string, error) {
			return "", errors.New("smtp refused")
		}
		stamped := false
		f.progress.MarkReportSentFunc = func(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error {
			stamped = true
			return nil
		}
		var releasedAt time.Time
		f.progress.ReleaseForRetryFunc = func(ctx context.Context, userID string, weekStart time.Time, nextAt time.Time) error {
			releasedAt = nextAt
			return nil
		}

		// --- Act ---
		claimed, sent, err := f.uc.RunReports(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if claimed != 1 || sent != 0 {
			t.Fatalf("expected 1 claimed / 0 sent, got %d/%d", claimed, sent)
		}
		if stamped {
			t.Error("a failed send must not stamp the row")
		}
		if !releasedAt.After(now) {
			t.Errorf("expected release into the future, got %v", releasedAt)
		}
	})

	t.Run("should reschedule without sending when the local window has not opened", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(claimedRow(currentWeek))
		var releasedAt time.Time
		f.progress.ReleaseForRetryFunc = func(ctx context.Context, userID string, weekStart time.Time, nextAt time.Time) error {
			releasedAt = nextAt
			return nil
		}

		// --- Act ---
		_, sent, err := f.uc.RunReports(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 0 || len(f.email.Sent) != 0 {
			t.Fatal("the current week's report must wait for the week to close")
		}
		weekEnd := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
		if !releasedAt.Equal(weekEnd) {
			t.Errorf("expected reschedule at %v, got %v", weekEnd, releasedAt)
		}
	})

	t.Run("should retry later when the recipient has no email", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(claimedRow(closedWeek))
		f.users.FindByIDFunc = func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		}
		released := false
		f.progress.ReleaseForRetryFunc = func(ctx context.Context, userID string, weekStart time.Time, nextAt time.Time) error {
			released = true
			return nil
		}

		// --- Act ---
		_, sent, err := f.uc.RunReports(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 0 || len(f.email.Sent) != 0 {
			t.Fatal("no recipient address means no send")
		}
		if !released {
			t.Error("the claim must be released for a later retry")
		}
	})
}

func TestReportUseCase_RunReminders(t *testing.T) {
	ctx := context.Background()
	testLogger := newTestLogger()
	currentWeek := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	reminderRow := func() *model.WeeklyProgress {
		return &model.WeeklyProgress{
			UserID:           "user-1",
			WeekStart:        currentWeek,
			Timezone:         "UTC",
			JournalCount:     1,
			JournalRemaining: 2,
			ReportReady:      false,
		}
	}

	newReminderFixture := func(rows ...*model.WeeklyProgress) (*MockProgressRepo, *MockDispatcher, usecase.ReportUseCase) {
		progress := NewMockProgressRepo()
		progress.ListReminderCandidatesFunc = func(ctx context.Context, now, attemptCutoff time.Time, limit int) ([]*model.WeeklyProgress, error) {
			return rows, nil
		}
		dispatcher := &MockDispatcher{}
		users := NewMockUserRepo()
		uc := usecase.NewReportUseCase(progress, users, NewMockActivityRepo(), &MockAI{}, &MockEmail{},
			dispatcher, reportsConfig(), reportAIConfig(), testLogger)
		return progress, dispatcher, uc
	}

	t.Run("should nudge a user on reminder evening with the remaining counts", func(t *testing.T) {
		// --- Arrange ---
		now := time.Date(2026, 8, 27, 20, 0, 0, 0, time.UTC) // Thursday 20:00
		progress, dispatcher, uc := newReminderFixture(reminderRow())
		stamped := false
		progress.MarkReminderSentFunc = func(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error {
			stamped = true
			return nil
		}

		// --- Act ---
		sent, err := uc.RunReminders(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 1 {
			t.Fatalf("expected 1 reminder, got %d", sent)
		}
		if len(dispatcher.Sent) != 1 {
			t.Fatalf("expected one dispatch, got %d", len(dispatcher.Sent))
		}
		n := dispatcher.Sent[0]
		if n.Type != model.NotifTypeWeeklyReminder {
			t.Errorf("unexpected type %s", n.Type)
		}
		if !strings.Contains(n.Body, "2 journal entries") {
			t.Errorf("expected remaining counts in the body, got %q", n.Body)
		}
		if !stamped {
			t.Error("a delivered reminder must be stamped sent")
		}
	})

	t.Run("should walk away when another instance wins the attempt stamp", func(t *testing.T) {
		// --- Arrange ---
		now := time.Date(2026, 8, 27, 20, 0, 0, 0, time.UTC)
		progress, dispatcher, uc := newReminderFixture(reminderRow())
		progress.TryMarkReminderAttemptedFunc = func(ctx context.Context, userID string, weekStart time.Time, now, attemptCutoff time.Time) (bool, error) {
			return false, nil
		}

		// --- Act ---
		sent, err := uc.RunReminders(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 0 || len(dispatcher.Sent) != 0 {
			t.Fatal("a lost stamp race must not dispatch")
		}
	})

	t.Run("should stay quiet outside the reminder weekday", func(t *testing.T) {
		// --- Arrange ---
		now := time.Date(2026, 8, 28, 20, 0, 0, 0, time.UTC) // Friday
		_, dispatcher, uc := newReminderFixture(reminderRow())

		// --- Act ---
		sent, err := uc.RunReminders(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 0 || len(dispatcher.Sent) != 0 {
			t.Fatal("reminders fire only on the configured weekday")
		}
	})

	t.Run("should wait for the local evening hour", func(t *testing.T) {
		// --- Arrange ---
		now := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC) // Thursday morning
		_, dispatcher, uc := newReminderFixture(reminderRow())

		// --- Act ---
		sent, err := uc.RunReminders(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 0 || len(dispatcher.Sent) != 0 {
			t.Fatal("reminders must not fire before the configured hour")
		}
	})

	t.Run("should not stamp sent when the dispatcher skips the user", func(t *testing.T) {
		// --- Arrange ---
		now := time.Date(2026, 8, 27, 20, 0, 0, 0, time.UTC)
		progress, dispatcher, uc := newReminderFixture(reminderRow())
		dispatcher.SendFunc = func(ctx context.Context, userID string, n model.Notification) model.SendResult {
			return model.SendResult{Reason: model.ReasonRateLimited}
		}
		stamped := false
		progress.MarkReminderSentFunc = func(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error {
			stamped = true
			return nil
		}

		// --- Act ---
		sent, err := uc.RunReminders(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 0 || stamped {
			t.Fatal("an undelivered reminder must stay unsent")
		}
	})

	t.Run("should skip a stale row from a previous week", func(t *testing.T) {
		// --- Arrange ---
		now := time.Date(2026, 8, 27, 20, 0, 0, 0, time.UTC)
		stale := reminderRow()
		stale.WeekStart = currentWeek.AddDate(0, 0, -7)
		_, dispatcher, uc := newReminderFixture(stale)

		// --- Act ---
		sent, err := uc.RunReminders(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 0 || len(dispatcher.Sent) != 0 {
			t.Fatal("last week's row must never trigger a reminder")
		}
	})
}

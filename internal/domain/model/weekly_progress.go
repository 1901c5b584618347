package model

import "time"

// WeeklyProgress is one row per (user, ISO week). Counters and flags are
// recomputed by the progress evaluator; claim/sent/retry bookkeeping belongs
// to the report scheduler.
type WeeklyProgress struct {
	UserID              string
	WeekStart           time.Time // local Monday, stored as a date
	Timezone            string    // IANA zone snapshot at compute time
	JournalCount        int
	MeditationCount     int
	JournalRemaining    int
	MeditationRemaining int
	Unlocked            bool
	ReportReady         bool
	Eligible            bool
	ReportSentAt        *time.Time
	NextReportAt        time.Time // absolute UTC instant
	ClaimedAt           *time.Time
	RetryAttempts       int
	ReminderAttemptedAt *time.Time
	ReminderSentAt      *time.Time
	UpdatedAt           time.Time
}

// WeekKey is the canonical YYYY-MM-DD key of the row's week.
func (p *WeeklyProgress) WeekKey() string {
	return p.WeekStart.Format("2006-01-02")
}

// ReminderDueToday reports whether a reminder may still fire for the given
// local day: at most one attempt per day, and never after a successful send
// in the same week.
func (p *WeeklyProgress) ReminderDueToday(localDay time.Time) bool {
	if p.ReminderSentAt != nil {
		return false
	}
	if p.ReminderAttemptedAt == nil {
		return true
	}
	y1, m1, d1 := p.ReminderAttemptedAt.Date()
	y2, m2, d2 := localDay.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

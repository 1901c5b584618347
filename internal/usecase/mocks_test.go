//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/adapter"
	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/usecase"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	FindByIDFunc        func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	ListActiveSinceFunc func(ctx context.Context, tx repository.Tx, since time.Time, offset, limit int) ([]*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo { return &MockUserRepo{} }

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) ListActiveSince(ctx context.Context, tx repository.Tx, since time.Time, offset, limit int) ([]*model.User, error) {
	if m.ListActiveSinceFunc != nil {
		return m.ListActiveSinceFunc(ctx, tx, since, offset, limit)
	}
	return nil, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx runs the function immediately with NoTX unless a custom
// WithTxFunc is assigned.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock PushDeviceRepository ----

type MockDeviceRepo struct {
	mu      sync.Mutex
	Deleted []string

	SaveFunc       func(ctx context.Context, tx repository.Tx, dev *model.PushDevice) error
	ListByUserFunc func(ctx context.Context, tx repository.Tx, userID string) ([]*model.PushDevice, error)
	DeleteFunc     func(ctx context.Context, tx repository.Tx, id string) error
}

var _ repository.PushDeviceRepository = (*MockDeviceRepo)(nil)

func NewMockDeviceRepo() *MockDeviceRepo { return &MockDeviceRepo{} }

func (m *MockDeviceRepo) Save(ctx context.Context, tx repository.Tx, dev *model.PushDevice) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, dev)
	}
	return nil
}

func (m *MockDeviceRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PushDevice, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, tx, userID)
	}
	return nil, nil
}

func (m *MockDeviceRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, id)
	return nil
}

// ---- Mock NotificationHistoryRepository ----

type MockHistoryRepo struct {
	mu    sync.Mutex
	Saved []*model.NotificationRecord

	SaveFunc       func(ctx context.Context, tx repository.Tx, rec *model.NotificationRecord) error
	CountSinceFunc func(ctx context.Context, tx repository.Tx, userID, notifType string, since time.Time) (int, error)
}

var _ repository.NotificationHistoryRepository = (*MockHistoryRepo)(nil)

func NewMockHistoryRepo() *MockHistoryRepo { return &MockHistoryRepo{} }

func (m *MockHistoryRepo) Save(ctx context.Context, tx repository.Tx, rec *model.NotificationRecord) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.Saved = append(m.Saved, &cp)
	return nil
}

func (m *MockHistoryRepo) CountSince(ctx context.Context, tx repository.Tx, userID, notifType string, since time.Time) (int, error) {
	if m.CountSinceFunc != nil {
		return m.CountSinceFunc(ctx, tx, userID, notifType, since)
	}
	return 0, nil
}

// ---- Mock PushRetryRepository ----

type MockRetryRepo struct {
	mu       sync.Mutex
	Enqueued []*model.PushRetry

	EnqueueFunc  func(ctx context.Context, tx repository.Tx, retry *model.PushRetry) error
	ClaimDueFunc func(ctx context.Context, now time.Time, limit int) ([]*model.PushRetry, error)
}

var _ repository.PushRetryRepository = (*MockRetryRepo)(nil)

func NewMockRetryRepo() *MockRetryRepo { return &MockRetryRepo{} }

func (m *MockRetryRepo) Enqueue(ctx context.Context, tx repository.Tx, retry *model.PushRetry) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, tx, retry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *retry
	m.Enqueued = append(m.Enqueued, &cp)
	return nil
}

func (m *MockRetryRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.PushRetry, error) {
	if m.ClaimDueFunc != nil {
		return m.ClaimDueFunc(ctx, now, limit)
	}
	return nil, nil
}

// ---- Mock PushSender ----

type MockPushSender struct {
	mu   sync.Mutex
	Sent []adapter.PushPayload

	SendFunc func(ctx context.Context, token string, payload adapter.PushPayload) error
}

var _ adapter.PushSender = (*MockPushSender)(nil)

func (m *MockPushSender) Send(ctx context.Context, token string, payload adapter.PushPayload) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, token, payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, payload)
	return nil
}

func (m *MockPushSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ usecase.RateLimiter = (*MockRateLimiter)(nil)

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}

// ---- Mock WeeklyProgressRepository ----

type MockProgressRepo struct {
	mu       sync.Mutex
	Upserted []*model.WeeklyProgress

	UpsertFunc                   func(ctx context.Context, tx repository.Tx, row *model.WeeklyProgress) error
	FindFunc                     func(ctx context.Context, tx repository.Tx, userID string, weekStart time.Time) (*model.WeeklyProgress, error)
	ClaimDueReportsFunc          func(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.WeeklyProgress, error)
	MarkReportSentFunc           func(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error
	ReleaseForRetryFunc          func(ctx context.Context, userID string, weekStart time.Time, nextAt time.Time) error
	ListReminderCandidatesFunc   func(ctx context.Context, now, attemptCutoff time.Time, limit int) ([]*model.WeeklyProgress, error)
	TryMarkReminderAttemptedFunc func(ctx context.Context, userID string, weekStart time.Time, now, attemptCutoff time.Time) (bool, error)
	MarkReminderSentFunc         func(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error
	ListStaleForTagSyncFunc      func(ctx context.Context, cutoff time.Time, limit int) ([]*model.WeeklyProgress, error)
}

var _ repository.WeeklyProgressRepository = (*MockProgressRepo)(nil)

func NewMockProgressRepo() *MockProgressRepo { return &MockProgressRepo{} }

func (m *MockProgressRepo) Upsert(ctx context.Context, tx repository.Tx, row *model.WeeklyProgress) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, row)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *row
	m.Upserted = append(m.Upserted, &cp)
	return nil
}

func (m *MockProgressRepo) Find(ctx context.Context, tx repository.Tx, userID string, weekStart time.Time) (*model.WeeklyProgress, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, tx, userID, weekStart)
	}
	return nil, domain.ErrNotFound
}

func (m *MockProgressRepo) ClaimDueReports(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.WeeklyProgress, error) {
	if m.ClaimDueReportsFunc != nil {
		return m.ClaimDueReportsFunc(ctx, now, lease, limit)
	}
	return nil, nil
}

func (m *MockProgressRepo) MarkReportSent(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error {
	if m.MarkReportSentFunc != nil {
		return m.MarkReportSentFunc(ctx, userID, weekStart, sentAt)
	}
	return nil
}

func (m *MockProgressRepo) ReleaseForRetry(ctx context.Context, userID string, weekStart time.Time, nextAt time.Time) error {
	if m.ReleaseForRetryFunc != nil {
		return m.ReleaseForRetryFunc(ctx, userID, weekStart, nextAt)
	}
	return nil
}

func (m *MockProgressRepo) ListReminderCandidates(ctx context.Context, now, attemptCutoff time.Time, limit int) ([]*model.WeeklyProgress, error) {
	if m.ListReminderCandidatesFunc != nil {
		return m.ListReminderCandidatesFunc(ctx, now, attemptCutoff, limit)
	}
	return nil, nil
}

func (m *MockProgressRepo) TryMarkReminderAttempted(ctx context.Context, userID string, weekStart time.Time, now, attemptCutoff time.Time) (bool, error) {
	if m.TryMarkReminderAttemptedFunc != nil {
		return m.TryMarkReminderAttemptedFunc(ctx, userID, weekStart, now, attemptCutoff)
	}
	return true, nil
}

func (m *MockProgressRepo) MarkReminderSent(ctx context.Context, userID string, weekStart time.Time, sentAt time.Time) error {
	if m.MarkReminderSentFunc != nil {
		return m.MarkReminderSentFunc(ctx, userID, weekStart, sentAt)
	}
	return nil
}

func (m *MockProgressRepo) ListStaleForTagSync(ctx context.Context, cutoff time.Time, limit int) ([]*model.WeeklyProgress, error) {
	if m.ListStaleForTagSyncFunc != nil {
		return m.ListStaleForTagSyncFunc(ctx, cutoff, limit)
	}
	return nil, nil
}

// ---- Mock JobRepository ----

type MockJobRepo struct {
	mu       sync.Mutex
	Enqueued []*model.Job

	EnqueueFunc       func(ctx context.Context, tx repository.Tx, job *model.Job) error
	ClaimNextFunc     func(ctx context.Context) (*model.Job, error)
	MarkCompletedFunc func(ctx context.Context, id, audioKey string) error
	MarkFailedFunc    func(ctx context.Context, id, errMsg string) error
	ReclaimStaleFunc  func(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error)
	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error)
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo { return &MockJobRepo{} }

func (m *MockJobRepo) Enqueue(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.Enqueued = append(m.Enqueued, &cp)
	return nil
}

func (m *MockJobRepo) ClaimNext(ctx context.Context) (*model.Job, error) {
	if m.ClaimNextFunc != nil {
		return m.ClaimNextFunc(ctx)
	}
	return nil, domain.ErrNotFound
}

func (m *MockJobRepo) MarkCompleted(ctx context.Context, id, audioKey string) error {
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, id, audioKey)
	}
	return nil
}

func (m *MockJobRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, errMsg)
	}
	return nil
}

func (m *MockJobRepo) ReclaimStale(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error) {
	if m.ReclaimStaleFunc != nil {
		return m.ReclaimStaleFunc(ctx, cutoff, limit)
	}
	return nil, nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	return nil, domain.ErrNotFound
}

// ---- Mock ActivityRepository ----

type MockActivityRepo struct {
	FindEntriesFunc          func(ctx context.Context, tx repository.Tx, ids []string) ([]*model.JournalEntry, error)
	ListEntriesBetweenFunc   func(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) ([]*model.JournalEntry, error)
	CountEntriesBetweenFunc  func(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) (int, error)
	CountSessionsBetweenFunc func(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) (int, error)
}

var _ repository.ActivityRepository = (*MockActivityRepo)(nil)

func NewMockActivityRepo() *MockActivityRepo { return &MockActivityRepo{} }

func (m *MockActivityRepo) FindEntries(ctx context.Context, tx repository.Tx, ids []string) ([]*model.JournalEntry, error) {
	if m.FindEntriesFunc != nil {
		return m.FindEntriesFunc(ctx, tx, ids)
	}
	return nil, nil
}

func (m *MockActivityRepo) ListEntriesBetween(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) ([]*model.JournalEntry, error) {
	if m.ListEntriesBetweenFunc != nil {
		return m.ListEntriesBetweenFunc(ctx, tx, userID, from, to)
	}
	return nil, nil
}

func (m *MockActivityRepo) CountEntriesBetween(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) (int, error) {
	if m.CountEntriesBetweenFunc != nil {
		return m.CountEntriesBetweenFunc(ctx, tx, userID, from, to)
	}
	return 0, nil
}

func (m *MockActivityRepo) CountSessionsBetween(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) (int, error) {
	if m.CountSessionsBetweenFunc != nil {
		return m.CountSessionsBetweenFunc(ctx, tx, userID, from, to)
	}
	return 0, nil
}

// ---- Mock TagSyncRepository ----

type MockTagSyncRepo struct {
	mu    sync.Mutex
	Saved []*model.TagSyncState

	FindFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.TagSyncState, error)
	SaveFunc func(ctx context.Context, tx repository.Tx, state *model.TagSyncState) error
}

var _ repository.TagSyncRepository = (*MockTagSyncRepo)(nil)

func NewMockTagSyncRepo() *MockTagSyncRepo { return &MockTagSyncRepo{} }

func (m *MockTagSyncRepo) Find(ctx context.Context, tx repository.Tx, userID string) (*model.TagSyncState, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, tx, userID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockTagSyncRepo) Save(ctx context.Context, tx repository.Tx, state *model.TagSyncState) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.Saved = append(m.Saved, &cp)
	return nil
}

// ---- Mock AIServiceAdapter ----

type MockAI struct {
	GenerateTextFunc   func(ctx context.Context, prompt string, params adapter.TextParams) (string, error)
	GenerateSpeechFunc func(ctx context.Context, text, voice string) ([]byte, string, error)
}

var _ adapter.AIServiceAdapter = (*MockAI)(nil)

func (m *MockAI) GenerateText(ctx context.Context, prompt string, params adapter.TextParams) (string, error) {
	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, prompt, params)
	}
	return "a gentle summary", nil
}

func (m *MockAI) GenerateSpeech(ctx context.Context, text, voice string) ([]byte, string, error) {
	if m.GenerateSpeechFunc != nil {
		return m.GenerateSpeechFunc(ctx, text, voice)
	}
	return []byte("audio"), "audio/mpeg", nil
}

// ---- Mock EmailSender ----

type MockEmail struct {
	mu   sync.Mutex
	Sent []string // recipients

	SendFunc func(ctx context.Context, to, subject, html string) (string, error)
}

var _ adapter.EmailSender = (*MockEmail)(nil)

func (m *MockEmail) Send(ctx context.Context, to, subject, html string) (string, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, html)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, to)
	return "<msg-id>", nil
}

// ---- Mock AudienceClient ----

type MockAudience struct {
	mu      sync.Mutex
	Upserts map[string]map[string]string

	UpsertTagsFunc func(ctx context.Context, userID string, tags map[string]string) error
}

var _ adapter.AudienceClient = (*MockAudience)(nil)

func NewMockAudience() *MockAudience {
	return &MockAudience{Upserts: make(map[string]map[string]string)}
}

func (m *MockAudience) UpsertTags(ctx context.Context, userID string, tags map[string]string) error {
	if m.UpsertTagsFunc != nil {
		return m.UpsertTagsFunc(ctx, userID, tags)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts[userID] = tags
	return nil
}

// ---- Mock Dispatcher ----

type MockDispatcher struct {
	mu   sync.Mutex
	Sent []model.Notification

	SendFunc func(ctx context.Context, userID string, n model.Notification) model.SendResult
}

var _ usecase.Dispatcher = (*MockDispatcher)(nil)

func (m *MockDispatcher) Send(ctx context.Context, userID string, n model.Notification) model.SendResult {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, userID, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return model.SendResult{Delivered: true, Channel: model.ChannelFCM}
}

func (m *MockDispatcher) Redeliver(ctx context.Context, r *model.PushRetry) model.SendResult {
	return m.Send(ctx, r.UserID, model.Notification{Type: r.Type, Title: r.Title, Body: r.Body, Data: r.Data})
}

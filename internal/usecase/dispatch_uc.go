package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"stillpoint/internal/config"
	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/adapter"
	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/infra/metrics"
	red "stillpoint/internal/infra/redis"
)

// Compile-time check
var _ Dispatcher = (*dispatcherUC)(nil)

// Dispatcher routes one logical notification to the user's push channel.
// Callers invoke it once per event; history rows are the audit trail.
type Dispatcher interface {
	Send(ctx context.Context, userID string, n model.Notification) model.SendResult
	// Redeliver runs a deferred retry record through the same pipeline,
	// carrying its attempt count forward.
	Redeliver(ctx context.Context, r *model.PushRetry) model.SendResult
}

// RateLimiter is the slice of the redis limiter the dispatcher needs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type dispatcherUC struct {
	users   repository.UserRepository
	devices repository.PushDeviceRepository
	history repository.NotificationHistoryRepository
	retries repository.PushRetryRepository
	senders map[model.Channel]adapter.PushSender
	limiter RateLimiter
	cfg     config.NotificationsConfig
	backoff model.BackoffPolicy
	log     *zerolog.Logger
}

func NewDispatcher(
	users repository.UserRepository,
	devices repository.PushDeviceRepository,
	history repository.NotificationHistoryRepository,
	retries repository.PushRetryRepository,
	senders map[model.Channel]adapter.PushSender,
	limiter RateLimiter,
	cfg config.NotificationsConfig,
	logger *zerolog.Logger,
) *dispatcherUC {
	compLog := logger.With().Str("component", "Dispatcher").Logger()
	return &dispatcherUC{
		users:   users,
		devices: devices,
		history: history,
		retries: retries,
		senders: senders,
		limiter: limiter,
		cfg:     cfg,
		backoff: model.BackoffPolicy{
			Base:        cfg.RetryBackoff.Base,
			Cap:         cfg.RetryBackoff.Cap,
			MaxAttempts: cfg.RetryBackoff.MaxAttempts,
		},
		log: &compLog,
	}
}

func (d *dispatcherUC) Send(ctx context.Context, userID string, n model.Notification) model.SendResult {
	return d.send(ctx, userID, n, 0)
}

func (d *dispatcherUC) Redeliver(ctx context.Context, r *model.PushRetry) model.SendResult {
	n := model.Notification{Type: r.Type, Title: r.Title, Body: r.Body, Data: r.Data}
	return d.send(ctx, r.UserID, n, r.Attempts)
}

func (d *dispatcherUC) send(ctx context.Context, userID string, n model.Notification, attempt int) model.SendResult {
	user, err := d.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return model.SendResult{Err: err}
	}

	// 1. Preference gate: no channel contact, no history.
	if !user.Prefs.TypeEnabled(n.Type) {
		metrics.IncNotificationSkipped(n.Type, model.ReasonDisabled)
		return model.SendResult{Reason: model.ReasonDisabled}
	}

	// 2. Rate gate.
	if !d.cfg.RateLimitDisabled {
		skipped, err := d.rateLimited(ctx, userID, n.Type)
		if err != nil {
			// Fail open: a limiter hiccup should not swallow notifications.
			d.log.Warn().Err(err).Str("user_id", userID).Msg("rate gate check failed")
		} else if skipped {
			metrics.IncNotificationSkipped(n.Type, model.ReasonRateLimited)
			return model.SendResult{Reason: model.ReasonRateLimited}
		}
	}

	// 3. Channel resolution.
	devs, err := d.devices.ListByUser(ctx, repository.NoTX, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return model.SendResult{Err: err}
	}
	channel, dev := ResolveChannel(user.Prefs, devs)
	if dev == nil {
		metrics.IncNotificationSkipped(n.Type, model.ReasonNoDevice)
		return model.SendResult{Channel: channel, Reason: model.ReasonNoDevice}
	}
	sender, ok := d.senders[channel]
	if !ok {
		return model.SendResult{Channel: channel, Err: domain.ErrNoDeviceRegistered}
	}

	// 4. Send, with short in-call retries on transient errors.
	sendErr := d.trySend(ctx, sender, dev.Token, n)

	// 5. Outcome: one history row no matter what.
	rec := &model.NotificationRecord{
		UserID:    userID,
		Type:      n.Type,
		Channel:   channel,
		Delivered: sendErr == nil,
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := d.history.Save(ctx, repository.NoTX, rec); err != nil {
		d.log.Error().Err(err).Str("user_id", userID).Msg("failed to write notification history")
	}
	metrics.IncNotificationSent(n.Type, string(channel), sendErr == nil)

	if sendErr == nil {
		return model.SendResult{Delivered: true, Channel: channel}
	}

	if errors.Is(sendErr, adapter.ErrTokenInvalid) {
		// Dead token: prune, never retry.
		if err := d.devices.Delete(ctx, repository.NoTX, dev.ID); err != nil {
			d.log.Error().Err(err).Str("device_id", dev.ID).Msg("failed to prune invalid device")
		} else {
			metrics.IncDevicePruned(string(channel))
			d.log.Info().Str("user_id", userID).Str("channel", string(channel)).Msg("pruned invalid push device")
		}
		return model.SendResult{Channel: channel, Err: sendErr}
	}

	d.deferRetry(ctx, userID, n, attempt, sendErr)
	return model.SendResult{Channel: channel, Err: sendErr}
}

func (d *dispatcherUC) rateLimited(ctx context.Context, userID, notifType string) (bool, error) {
	count, err := d.history.CountSince(ctx, repository.NoTX, userID, notifType, time.Now().Add(-d.cfg.Cooldown))
	if err != nil {
		return false, err
	}
	if count >= d.cfg.CooldownMax {
		return true, nil
	}
	if d.limiter != nil {
		ok, err := d.limiter.Allow(ctx, red.UserDayKey(userID, time.Now()), d.cfg.DailyCap, 24*time.Hour)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return false, nil
}

func (d *dispatcherUC) trySend(ctx context.Context, sender adapter.PushSender, token string, n model.Notification) error {
	payload := adapter.PushPayload{Title: n.Title, Body: n.Body, Data: n.Data}
	var lastErr error
	for i := 0; i < d.cfg.SendAttempts; i++ {
		lastErr = sender.Send(ctx, token, payload)
		if lastErr == nil || errors.Is(lastErr, adapter.ErrTokenInvalid) || ctx.Err() != nil {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
		}
	}
	return lastErr
}

func (d *dispatcherUC) deferRetry(ctx context.Context, userID string, n model.Notification, attempt int, cause error) {
	next := attempt + 1
	if d.backoff.Exhausted(next) {
		metrics.IncPushRetry("abandoned")
		d.log.Warn().Err(cause).Str("user_id", userID).Str("type", n.Type).
			Int("attempts", next).Msg("push abandoned after max attempts")
		return
	}
	retry := &model.PushRetry{
		UserID:        userID,
		Type:          n.Type,
		Title:         n.Title,
		Body:          n.Body,
		Data:          n.Data,
		Attempts:      next,
		NextAttemptAt: time.Now().Add(d.backoff.Delay(attempt)),
	}
	if err := d.retries.Enqueue(ctx, repository.NoTX, retry); err != nil {
		d.log.Error().Err(err).Str("user_id", userID).Msg("failed to enqueue push retry")
		return
	}
	metrics.IncPushRetry("enqueued")
}

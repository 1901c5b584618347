package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stillpoint/internal/config"
	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/adapter"
	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/infra/metrics"
	"stillpoint/internal/usecase"
)

// JobProcessor drains the reflection job queue: claim, generate script,
// synthesize speech, store the audio, notify. One job per task submission.
type JobProcessor struct {
	jobs       repository.JobRepository
	activity   repository.ActivityRepository
	ai         adapter.AIServiceAdapter
	store      adapter.ArtifactStore
	dispatcher usecase.Dispatcher
	cfg        config.WorkersConfig
	aiCfg      config.AIConfig
	log        *zerolog.Logger
}

func NewJobProcessor(
	jobs repository.JobRepository,
	activity repository.ActivityRepository,
	ai adapter.AIServiceAdapter,
	store adapter.ArtifactStore,
	dispatcher usecase.Dispatcher,
	cfg config.WorkersConfig,
	aiCfg config.AIConfig,
	logger *zerolog.Logger,
) *JobProcessor {
	compLog := logger.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		jobs:       jobs,
		activity:   activity,
		ai:         ai,
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		aiCfg:      aiCfg,
		log:        &compLog,
	}
}

// Start runs the poll loop. This should be run in a goroutine.
func (p *JobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("job processor started")
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			})
		}
	}
}

func (p *JobProcessor) processOne(ctx context.Context) {
	job, err := p.jobs.ClaimNext(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to claim job")
		}
		return
	}

	p.log.Info().Str("job_id", job.ID).Str("user_id", job.UserID).Msg("processing job")
	start := time.Now()

	audioKey, err := p.handleJob(ctx, job)
	elapsed := time.Since(start)

	// Final updates run on a background context so a shutdown mid-job still
	// records the outcome durably before any notification goes out.
	if err == nil {
		if err := p.jobs.MarkCompleted(context.Background(), job.ID, audioKey); err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job completed")
			return
		}
		metrics.IncJob(string(model.JobStatusCompleted))
		metrics.ObserveJobDuration(elapsed.Seconds())
		p.log.Info().Str("job_id", job.ID).Dur("duration_ms", elapsed).Msg("job completed")
		p.notify(job, model.NotifTypeJobReady, "Your reflection is ready",
			"Your audio reflection has finished. Tap to listen.", audioKey)
		return
	}

	p.log.Error().Err(err).Str("job_id", job.ID).Msg("job failed")
	if markErr := p.jobs.MarkFailed(context.Background(), job.ID, err.Error()); markErr != nil {
		p.log.Error().Err(markErr).Str("job_id", job.ID).Msg("failed to mark job failed")
	}
	metrics.IncJob(string(model.JobStatusFailed))

	// Retries are fresh pending rows; the failed row stays queryable.
	retry := job.RetryJob()
	if retry.Attempts < p.cfg.MaxAttempts {
		if err := p.jobs.Enqueue(context.Background(), repository.NoTX, retry); err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to re-enqueue job")
		} else {
			p.log.Info().Str("job_id", job.ID).Str("retry_id", retry.ID).Int("attempts", retry.Attempts).Msg("job re-enqueued")
		}
		return
	}
	p.notify(job, model.NotifTypeJobFailed, "We couldn't create your reflection",
		"Something went wrong while creating your audio reflection. Please try again.", "")
}

// notify sends through the dispatcher; delivery failures never touch job
// state, the durable record already exists.
func (p *JobProcessor) notify(job *model.Job, notifType, title, body, audioKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	data := map[string]string{"job_id": job.ID}
	if audioKey != "" {
		data["audio_key"] = audioKey
	}
	res := p.dispatcher.Send(ctx, job.UserID, model.Notification{
		Type:  notifType,
		Title: title,
		Body:  body,
		Data:  data,
	})
	if res.Err != nil {
		p.log.Warn().Err(res.Err).Str("job_id", job.ID).Msg("job notification failed")
	}
}

func (p *JobProcessor) handleJob(ctx context.Context, job *model.Job) (string, error) {
	entries, err := p.activity.FindEntries(ctx, repository.NoTX, job.EntryIDs)
	if err != nil {
		return "", fmt.Errorf("load entries: %w", err)
	}
	if len(entries) == 0 {
		return "", domain.ErrJobWithNoInput
	}

	aiCtx, cancel := context.WithTimeout(ctx, p.aiCfg.CallTimeout)
	defer cancel()

	script, err := p.ai.GenerateText(aiCtx, buildScriptPrompt(entries, job.DurationSec), adapter.TextParams{
		Model: p.aiCfg.TextModel,
	})
	if err != nil {
		return "", fmt.Errorf("generate script: %w", err)
	}

	audio, contentType, err := p.ai.GenerateSpeech(aiCtx, script, job.Voice)
	if err != nil {
		return "", fmt.Errorf("generate speech: %w", err)
	}

	key := fmt.Sprintf("reflections/%s/%s.mp3", job.UserID, job.ID)
	if err := p.store.Put(ctx, key, contentType, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("store audio: %w", err)
	}
	return key, nil
}

func buildScriptPrompt(entries []*model.JournalEntry, durationSec int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a calm, spoken-word reflection of roughly %d seconds "+
		"based on the journal entries below. Second person, present tense, no headings.\n\n", durationSec)
	for _, e := range entries {
		b.WriteString(e.Title)
		b.WriteString("\n")
		b.WriteString(e.Body)
		b.WriteString("\n\n")
	}
	return b.String()
}

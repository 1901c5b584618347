// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stillpoint/internal/config"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/adapter"
	aiAdapters "stillpoint/internal/infra/adapters/ai"
	"stillpoint/internal/infra/adapters/audience"
	"stillpoint/internal/infra/adapters/email"
	pushAdapters "stillpoint/internal/infra/adapters/push"
	"stillpoint/internal/infra/api"
	pg "stillpoint/internal/infra/db/postgres"
	"stillpoint/internal/infra/logging"
	"stillpoint/internal/infra/metrics"
	red "stillpoint/internal/infra/redis"
	"stillpoint/internal/infra/sched"
	"stillpoint/internal/infra/storage"
	"stillpoint/internal/infra/worker"
	"stillpoint/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool)
	activityRepo := pg.NewActivityRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	progressRepo := pg.NewWeeklyProgressRepo(pool)
	deviceRepo := pg.NewPushDeviceRepo(pool)
	historyRepo := pg.NewNotificationHistoryRepo(pool)
	retryRepo := pg.NewPushRetryRepo(pool)
	tagSyncRepo := pg.NewTagSyncRepo(pool)

	// ---- AI adapter (OpenAI -> Gemini -> noop in dev) ----
	var ai adapter.AIServiceAdapter
	switch {
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.TextModel, cfg.AI.SpeechModel)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.TextModel).Msg("AI adapter: OpenAI")
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.TextModel)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.TextModel).Msg("AI adapter: Gemini (text only)")
	default:
		ai = aiAdapters.NewNoopAdapter()
		logger.Warn().Msg("AI adapter: noop")
	}

	// ---- External adapters ----
	store, err := storage.NewS3Store(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	emailSender, err := email.NewSMTPSender(&cfg.Email)
	if err != nil {
		log.Fatalf("email: %v", err)
	}

	senders := map[model.Channel]adapter.PushSender{}
	if cfg.Push.FCM.ProjectID != "" {
		fcm, err := pushAdapters.NewFCMAdapter(&cfg.Push)
		if err != nil {
			log.Fatalf("fcm adapter: %v", err)
		}
		senders[model.ChannelFCM] = fcm
	}
	if cfg.Push.APNs.TeamID != "" {
		apns, err := pushAdapters.NewAPNsAdapter(&cfg.Push)
		if err != nil {
			log.Fatalf("apns adapter: %v", err)
		}
		senders[model.ChannelWebPush] = apns
	}
	if len(senders) == 0 {
		logger.Warn().Msg("no push transport configured; notifications will not deliver")
	}

	// ---- Use cases ----
	dispatcher := usecase.NewDispatcher(userRepo, deviceRepo, historyRepo, retryRepo,
		senders, rateLimiter, cfg.Notifications, logger)
	progressUC := usecase.NewProgressEvaluator(userRepo, activityRepo, progressRepo, txManager, cfg.Progress, logger)
	reportUC := usecase.NewReportUseCase(progressRepo, userRepo, activityRepo,
		ai, emailSender, dispatcher, cfg.Reports, cfg.AI, logger)
	jobsUC := usecase.NewJobsUseCase(jobRepo, cfg.AI, logger)

	// ---- Workers ----
	workerPool := worker.NewPool(cfg.Workers.PoolSize, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	processor := worker.NewJobProcessor(jobRepo, activityRepo, ai, store, dispatcher,
		cfg.Workers, cfg.AI, logger)
	sweeper := worker.NewStaleSweeper(jobRepo, dispatcher, cfg.Workers, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { processor.Start(ctx, workerPool); return nil })
	g.Go(func() error { sweeper.Start(ctx); return nil })

	// ---- Scheduled sweeps ----
	progressWorker := sched.NewProgressWorker(cfg.Progress.SweepInterval, progressUC, logger)
	reportScheduler := sched.NewReportScheduler(cfg.Reports.SweepInterval, reportUC, logger)
	reminderWorker := sched.NewReminderWorker(cfg.Reports.SweepInterval, reportUC, logger)
	pushRetryWorker := sched.NewPushRetryWorker(cfg.Notifications.RetryInterval, retryRepo, dispatcher, logger)
	g.Go(func() error { return progressWorker.Run(ctx) })
	g.Go(func() error { return reportScheduler.Run(ctx) })
	g.Go(func() error { return reminderWorker.Run(ctx) })
	g.Go(func() error { return pushRetryWorker.Run(ctx) })

	if cfg.Audience.BaseURL != "" {
		audienceClient, err := audience.NewHTTPClient(&cfg.Audience)
		if err != nil {
			log.Fatalf("audience: %v", err)
		}
		tagSyncUC := usecase.NewTagSyncUseCase(progressRepo, tagSyncRepo, audienceClient, cfg.TagSync, logger)
		tagSyncWorker := sched.NewTagSyncWorker(cfg.TagSync.SweepInterval, tagSyncUC, logger)
		g.Go(func() error { return tagSyncWorker.Run(ctx) })
	} else {
		logger.Warn().Msg("audience.base_url not set; tag sync disabled")
	}

	// ---- HTTP API ----
	srv := api.NewServer(jobsUC, deviceRepo, cfg.API, logger)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("shutdown with error")
	}
	logger.Info().Msg("shutdown complete")
}

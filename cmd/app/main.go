// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentinelzap/internal/config"
	"sentinelzap/internal/domain/ports/adapter"
	"sentinelzap/internal/infra/api"
	pg "sentinelzap/internal/infra/db/postgres"
	"sentinelzap/internal/infra/logging"
	"sentinelzap/internal/infra/metrics"
	"sentinelzap/internal/infra/notify"
	red "sentinelzap/internal/infra/redis"
	"sentinelzap/internal/infra/sched"
	"sentinelzap/internal/infra/session"
	"sentinelzap/internal/infra/webhook"
	"sentinelzap/internal/infra/whatsapp"
	"sentinelzap/internal/infra/worker"
	"sentinelzap/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop transport, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)
	registry := red.NewSessionRegistry(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	chipRepo := pg.NewChipRepo(pool)
	settingsRepo := pg.NewWarmupSettingsRepo(pool)
	warmupHistRepo := pg.NewWarmupHistoryRepo(pool)
	messageHistRepo := pg.NewMessageHistoryRepo(pool)

	// ---- Transport adapter ----
	// The real WhatsApp bridge plugs in here; the noop adapter keeps the
	// whole pipeline runnable without one.
	wa := whatsapp.NewNoopAdapter(logger)

	// ---- Notifications & events ----
	var notifier adapter.Notifier
	if cfg.Notify.Telegram.Token != "" && !cfg.Runtime.Dev {
		notifier, err = notify.NewTelegramNotifier(&cfg.Notify, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier")
		}
	} else {
		notifier = notify.NewNoopNotifier(logger)
	}

	taskPool := worker.NewPool(4, logger)
	taskPool.Start(ctx)
	defer taskPool.Stop()
	events := webhook.NewDispatcher(&cfg.Webhook, taskPool, logger)

	// ---- Use cases ----
	rotUC := usecase.NewRotationUseCase(chipRepo, settingsRepo, messageHistRepo, wa, notifier, events, tm, logger)
	warmupUC := usecase.NewWarmupUseCase(chipRepo, settingsRepo, warmupHistRepo, wa, locker, logger)
	sessionUC := usecase.NewSessionUseCase(chipRepo, registry, wa, logger)

	// ---- Session queue ----
	queue := session.NewQueue(sessionUC.InitializeSession, cfg.Session.InitTimeout, cfg.Session.QueueDelay, logger)
	sessionUC.AttachQueue(queue)
	go queue.Run(ctx)

	// ---- Scheduler ----
	scheduler := sched.NewScheduler(cfg.Scheduler, rotUC, warmupUC, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
	defer scheduler.Stop()

	// ---- HTTP API ----
	apiServer := api.NewServer(cfg.API, rotUC, warmupUC, sessionUC, rateLimiter, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: apiServer.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
}

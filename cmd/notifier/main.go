package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/api"
	"github.com/notifyhub/deadman-switch/internal/config"
	"github.com/notifyhub/deadman-switch/internal/db"
	"github.com/notifyhub/deadman-switch/internal/delivery"
	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/metrics"
	"github.com/notifyhub/deadman-switch/internal/queue"
	"github.com/notifyhub/deadman-switch/internal/ratelimiter"
	"github.com/notifyhub/deadman-switch/internal/repository"
	"github.com/notifyhub/deadman-switch/internal/service"
	"github.com/notifyhub/deadman-switch/internal/worker"
)

func main() {
	// ---- configuration ----
	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	sub, err := domain.NewSubscription(cfg.TopicARN, cfg.SubscriptionURL)
	if err != nil {
		logger.Fatal("invalid subscription", zap.Error(err))
	}
	subs := []domain.Subscription{sub}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	version, err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath)
	if err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied", zap.Uint("schema_version", version))

	// ---- core dependencies ----
	q := queue.New(cfg.QueueSize)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, q.Depths)
	repo := repository.NewPgMessageRepository(pool)
	prov := delivery.NewHTTPSProvider(cfg.DeliveryTimeout)
	limiter := ratelimiter.New(cfg.RateLimit)
	svc := service.NewFanoutService(repo, q, service.Options{
		TopicARN:      cfg.TopicARN,
		Subscriptions: subs,
		MaxRetries:    cfg.MaxRetries,
		OnPublished:   m.PublishHook(),
	}, logger)

	recoveryW := worker.NewRecoveryWorker(repo, q,
		cfg.RecoveryInterval, cfg.RecoveryAge, cfg.RecoveryStuckAge, logger)
	if err := recoveryW.ReclaimOrphans(ctx); err != nil {
		logger.Fatal("failed to reclaim orphaned deliveries", zap.Error(err))
	}

	// ---- worker pool ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onDelivered, onFailed, onRetry := m.WorkerHooks()
	workers := worker.NewPool(
		worker.PoolConfig{Workers: cfg.Workers, RetryBackoff: cfg.RetryBackoff},
		subs, q, repo, prov, limiter, logger,
		worker.MetricHooks{
			OnDelivered: onDelivered,
			OnFailed:    onFailed,
			OnRetry:     onRetry,
		},
	)
	workers.Start(workerCtx)

	retryW := worker.NewRetryWorker(repo, q, cfg.RetryInterval, logger)
	go retryW.Run(workerCtx)

	go recoveryW.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, q, reg, pool, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("notifier starting",
			zap.String("addr", srv.Addr),
			zap.String("topic_arn", cfg.TopicARN),
			zap.String("subscription_id", sub.ID),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new publishes.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all workers to stop taking new queue items.
	cancelWorkers()

	// 3. Wait for in-flight deliveries to finish.
	workers.Wait()

	logger.Info("notifier stopped cleanly")
}

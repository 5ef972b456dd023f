// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github-sync-service/internal/api"
	"github-sync-service/internal/config"
	"github-sync-service/internal/github"
	"github-sync-service/internal/jobs"
	"github-sync-service/internal/model"
	"github-sync-service/internal/progress"
	"github-sync-service/internal/ratelimit"
	"github-sync-service/internal/retention"
	"github-sync-service/internal/store"
	"github-sync-service/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize Redis-backed components
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Redis connection established")

	st := store.New(dbpool)
	tracker := ratelimit.NewTracker(rdb, logger)
	reporter := progress.NewReporter(rdb, logger)

	// 6. Build the sync orchestrator. Every GitHub response's quota headers
	// flow into the tracker and onto the integration row.
	factory := func(integrationID, token string) syncer.Client {
		return github.NewClient(token, logger, github.WithRateLimitRecorder(func(rl model.RateLimit) {
			rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer rcancel()
			if err := tracker.Record(rctx, integrationID, rl); err != nil {
				logger.Warn("Failed to record rate limit snapshot", "integration_id", integrationID, "error", err)
			}
			if err := st.SaveRateLimit(rctx, integrationID, rl); err != nil {
				logger.Warn("Failed to persist rate limit snapshot", "integration_id", integrationID, "error", err)
			}
		}))
	}
	appSyncer := syncer.NewSyncer(st, reporter, tracker, factory, logger, syncer.Options{
		CommitWindow:    cfg.CommitSyncWindow,
		UserConcurrency: cfg.UserConcurrency,
	})

	// 7. Start the queue worker
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asynqClient.Close()
	enqueuer := jobs.NewEnqueuer(asynqClient, logger)

	mux := asynq.NewServeMux()
	jobs.NewHandler(appSyncer, logger).Register(mux)
	worker := jobs.NewServer(cfg.RedisAddr, cfg.WorkerConcurrency, logger)
	go func() {
		if err := worker.Run(mux); err != nil {
			logger.Error("Queue worker stopped", "error", err)
			cancel()
		}
	}()

	// 8. Start the retention sweeper
	sweeper := retention.NewSweeper(st, retention.DefaultWindows(), logger)
	go sweeper.Start(ctx, cfg.RetentionInterval)

	// 9. Start the HTTP server
	router := api.NewRouter(st, appSyncer, enqueuer, sweeper, logger)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped", "error", err)
			cancel()
		}
	}()

	// 10. Wait for shutdown signal
	logger.Info("Application started. Waiting for shutdown signal...")
	<-ctx.Done()
	logger.Info("Shutdown signal received. Exiting.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	worker.Shutdown()

	return nil
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}

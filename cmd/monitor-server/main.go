// cmd/monitor-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"policy-monitor/internal/catalog"
	"policy-monitor/internal/common/config"
	"policy-monitor/internal/common/database"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/common/mail"
	"policy-monitor/internal/common/observability"
	"policy-monitor/internal/common/storage"
	"policy-monitor/internal/document"
	"policy-monitor/internal/notify"
	"policy-monitor/internal/serial"
	"policy-monitor/internal/server"
	"policy-monitor/internal/submission"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting monitor server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init object storage ---
	docStore, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		zapLog.Fatal("object storage init failed", zap.Error(err))
	}
	zapLog.Info("Object storage initialized", zap.String("bucket", cfg.Storage.Bucket))

	// --- Init mailer ---
	var mailer mail.Mailer
	switch cfg.Notifications.Provider {
	case "ses":
		mailer, err = mail.NewSESMailer(ctx, cfg.Notifications.SES.Region)
		if err != nil {
			zapLog.Fatal("ses mailer init failed", zap.Error(err))
		}
	default:
		mailer = mail.NewSMTPMailer(cfg.Notifications)
	}

	// --- Wire the domain ---
	registry := serial.NewRegistry(pg.DB, cfg.Serials, log)
	resolver := catalog.NewResolver(pg.DB, log)
	pipeline := document.NewPipeline(docStore, cfg.Uploads, log)
	notifier := notify.NewNotifier(mailer, rdb.Client, docStore, document.NewPDFSummary(), cfg.Notifications, log)
	store := submission.NewStore(pg.DB)
	service := submission.NewService(store, registry, resolver, pipeline, notifier, log)

	handlers := server.NewHandlers(service, registry, cfg.Uploads, pg, rdb, log)
	srv := server.New(cfg.Server, server.NewRouter(handlers, obs, log), log)

	// --- Background retry worker ---
	workerCtx, stopWorker := context.WithCancel(ctx)
	go notifier.RunRetryWorker(workerCtx)

	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(ctx,
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown did not complete cleanly", zap.Error(err))
	}
	zapLog.Info("Monitor server stopped")
}

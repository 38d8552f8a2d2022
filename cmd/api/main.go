package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/device-issue-service/internal/api/http"
	"github.com/spec-kit/device-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/device-issue-service/internal/auth"
	"github.com/spec-kit/device-issue-service/internal/config"
	"github.com/spec-kit/device-issue-service/internal/events"
	"github.com/spec-kit/device-issue-service/internal/notify"
	"github.com/spec-kit/device-issue-service/internal/observability"
	"github.com/spec-kit/device-issue-service/internal/persistence"
	"github.com/spec-kit/device-issue-service/internal/repository"
	"github.com/spec-kit/device-issue-service/internal/service"
	"github.com/spec-kit/device-issue-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	issueRepo, approvalRepo := buildRepositories(pg)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	queue := notify.NewRedisQueue(redis.Client, cfg.Notification.QueueKey)
	service.NewNotificationService(dispatcher, queue, metrics, logger, cfg.Notification).RegisterHandlers()

	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.Notification.SMTPEnabled() {
		sender = notify.NewSMTPMailer(cfg.Notification)
	}
	workerDone := worker.StartNotificationWorker(ctx,
		worker.NewNotificationWorker(queue, sender, metrics, logger, cfg.Notification.PollInterval()))

	validate := validator.New()
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:  issueRepo,
		Dispatcher: dispatcher,
		Validator:  validate,
		Logger:     logger,
	})
	approvalService := service.NewApprovalService(service.ApprovalDependencies{
		IssueRepo:    issueRepo,
		ApprovalRepo: approvalRepo,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Issues:         handlers.NewIssuesHandler(issueService),
		Approvals:      handlers.NewApprovalsHandler(approvalService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-workerDone
}

// buildRepositories picks Postgres when a DSN was configured, else the memory store.
func buildRepositories(pg *persistence.Postgres) (repository.IssueRepository, repository.ApprovalRepository) {
	if pg.Enabled() {
		return repository.NewIssueRepository(pg.DB), repository.NewApprovalRepository(pg.DB)
	}
	store := repository.NewMemoryStore()
	return store, store
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

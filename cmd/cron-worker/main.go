package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/barthig/Biblioteka-sub002/internal/cron"
	"github.com/barthig/Biblioteka-sub002/internal/fines"
	"github.com/barthig/Biblioteka-sub002/internal/inventory"
	"github.com/barthig/Biblioteka-sub002/internal/loans"
	"github.com/barthig/Biblioteka-sub002/internal/notifications"
	"github.com/barthig/Biblioteka-sub002/internal/reservations"
	"github.com/barthig/Biblioteka-sub002/internal/users"
	"github.com/barthig/Biblioteka-sub002/pkg/config"
	"github.com/barthig/Biblioteka-sub002/pkg/db"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
	"github.com/barthig/Biblioteka-sub002/pkg/metrics"
	"github.com/barthig/Biblioteka-sub002/pkg/migrate"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/redis"
)

const lockKeyFormat = "bib:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)
	circMetrics := metrics.NewCirculationMetrics(prometheus.DefaultRegisterer)

	usersRepo := users.NewRepository(dbClient.DB())
	inventoryRepo := inventory.NewRepository(dbClient.DB())
	loansRepo := loans.NewRepository(dbClient.DB())
	reservationsRepo := reservations.NewRepository(dbClient.DB())
	finesRepo := fines.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	copyGateway := inventory.NewCopyGateway(inventoryRepo)
	queueGateway := reservations.NewQueueGateway(reservationsRepo, outboxSvc, cfg.Circulation)
	userDirectory := users.NewDirectory(usersRepo)
	fineAssessor := fines.NewAssessor(finesRepo, outboxSvc, cfg.Circulation)

	loansService, err := loans.NewService(
		loansRepo,
		dbClient,
		outboxSvc,
		copyGateway,
		queueGateway,
		userDirectory,
		fineAssessor,
		circMetrics,
		cfg.Circulation,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create loans service", err)
		os.Exit(1)
	}

	reservationsService, err := reservations.NewService(reservationsRepo, dbClient, outboxSvc, copyGateway, userDirectory, cfg.Circulation)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservations service", err)
		os.Exit(1)
	}

	finesService, err := fines.NewService(finesRepo, dbClient, outboxSvc, fineAssessor, loansService, circMetrics, cfg.Circulation)
	if err != nil {
		logg.Error(context.Background(), "failed to create fines service", err)
		os.Exit(1)
	}

	reservationExpiryJob, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:       logg,
		Reservations: reservationsService,
		Metrics:      circMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation expiry job", err)
		os.Exit(1)
	}

	overdueFinesJob, err := cron.NewOverdueFinesJob(cron.OverdueFinesJobParams{
		Logger: logg,
		Fines:  finesService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create overdue fines job", err)
		os.Exit(1)
	}

	dueReminderJob, err := cron.NewDueReminderJob(cron.DueReminderJobParams{
		Logger: logg,
		DB:     dbClient,
		Loans:  loansService,
		Outbox: outboxSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create due reminder job", err)
		os.Exit(1)
	}

	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	notificationCleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notificationsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(
		reservationExpiryJob,
		overdueFinesJob,
		dueReminderJob,
		outboxRetentionJob,
		notificationCleanupJob,
	)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/barthig/Biblioteka-sub002/api/routes"
	"github.com/barthig/Biblioteka-sub002/internal/auth"
	"github.com/barthig/Biblioteka-sub002/internal/fines"
	"github.com/barthig/Biblioteka-sub002/internal/inventory"
	"github.com/barthig/Biblioteka-sub002/internal/loans"
	"github.com/barthig/Biblioteka-sub002/internal/notifications"
	"github.com/barthig/Biblioteka-sub002/internal/reservations"
	"github.com/barthig/Biblioteka-sub002/internal/users"
	"github.com/barthig/Biblioteka-sub002/pkg/auth/session"
	"github.com/barthig/Biblioteka-sub002/pkg/config"
	"github.com/barthig/Biblioteka-sub002/pkg/db"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
	"github.com/barthig/Biblioteka-sub002/pkg/metrics"
	"github.com/barthig/Biblioteka-sub002/pkg/migrate"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
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

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(usersRepo, dbClient, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventoryRepo, dbClient, outboxSvc, cfg.Circulation)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

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

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			SessionChecker: sessionManager,
			Auth:           authService,
			Users:          usersService,
			Inventory:      inventoryService,
			Loans:          loansService,
			Reservations:   reservationsService,
			Fines:          finesService,
			Notifications:  notificationsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

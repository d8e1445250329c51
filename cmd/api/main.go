package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-dispatch/internal/api/http"
	"github.com/spec-kit/helpdesk-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-dispatch/internal/audit"
	"github.com/spec-kit/helpdesk-dispatch/internal/auth"
	"github.com/spec-kit/helpdesk-dispatch/internal/broadcast"
	"github.com/spec-kit/helpdesk-dispatch/internal/cache"
	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/config"
	"github.com/spec-kit/helpdesk-dispatch/internal/events"
	"github.com/spec-kit/helpdesk-dispatch/internal/notify"
	"github.com/spec-kit/helpdesk-dispatch/internal/observability"
	"github.com/spec-kit/helpdesk-dispatch/internal/persistence"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/service"
	"github.com/spec-kit/helpdesk-dispatch/internal/settings"
	"github.com/spec-kit/helpdesk-dispatch/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
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

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	clk := clock.Real()
	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	var source settings.Source = settings.StoreSource{Store: settingsRepo}
	if cfg.Settings.File != "" {
		source = settings.FileSource{Path: cfg.Settings.File}
	}
	settingsCache := cache.NewTiered(
		cache.NewRedisStore(rdb.Client, cfg.Redis.KeyPrefix+"cache:"),
		cache.NewLocalStore(clk),
		logger,
	)
	provider := settings.NewProvider(source, settingsCache, cfg.Settings.CacheTTL(), logger)
	if err := provider.Refresh(ctx); err != nil {
		logger.Warn("initial settings load failed; using defaults", zap.Error(err))
	}

	recorder := audit.NewRecorder(auditRepo, logger, clk)
	dispatcher := events.NewAsyncDispatcher(logger)
	metrics := observability.NewMetrics()
	metrics.CountEvents(dispatcher)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:       userRepo,
		Tokens:         tokens,
		Auditor:        recorder,
		BcryptCost:     cfg.Auth.BcryptCost,
		BootstrapToken: cfg.Bootstrap.Token,
		Clock:          clk,
		Logger:         logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:              ticketRepo,
		UserRepo:                userRepo,
		TechnicianPoolCompanyID: cfg.Tenancy.TechnicianPoolCompanyID,
		Auditor:                 recorder,
		Dispatcher:              dispatcher,
		Clock:                   clk,
		Logger:                  logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Assigner:   assignmentService,
		Settings:   provider,
		Auditor:    recorder,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	broadcaster := broadcast.NewRedisBroadcaster(rdb.Client, cfg.Redis.KeyPrefix+"rt:")
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		Broadcaster:      broadcaster,
		Notifier:         notify.NewLogNotifier(logger, cfg.Notification.EmailFrom, cfg.Notification.SMSFrom),
		Pager:            notify.NewSlackPager(cfg.Notification.WebhookURL),
		Settings:         provider,
		Auditor:          recorder,
		Dispatcher:       dispatcher,
		Clock:            clk,
		Retention:        cfg.Notification.Retention(),
		Logger:           logger,
	})
	notificationService.RegisterHandlers(dispatcher)
	settingsService := service.NewSettingsService(provider, recorder)
	auditService := service.NewAuditService(auditRepo)
	dashboardService := service.NewDashboardService(ticketRepo, clk)

	scheduler := worker.NewScheduler(logger, time.Minute)
	if err := scheduler.Register("settings-refresh", cfg.Settings.RefreshSchedule, provider.Refresh); err != nil {
		logger.Fatal("invalid settings refresh schedule", zap.Error(err))
	}
	if err := scheduler.Register("notification-purge", cfg.Notification.PurgeSchedule, func(ctx context.Context) error {
		_, err := notificationService.PurgeExpired(ctx)
		return err
	}); err != nil {
		logger.Fatal("invalid notification purge schedule", zap.Error(err))
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    rdb,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService, broadcaster, logger),
		Admin:          handlers.NewAdminHandler(auditService, dashboardService, settingsService, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo).Handle,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	dispatcher.Wait()
	recorder.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

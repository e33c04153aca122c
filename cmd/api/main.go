package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/blockhaven/ticketd/internal/access"
	httptransport "github.com/blockhaven/ticketd/internal/api/http"
	"github.com/blockhaven/ticketd/internal/api/http/handlers"
	"github.com/blockhaven/ticketd/internal/auth"
	"github.com/blockhaven/ticketd/internal/config"
	"github.com/blockhaven/ticketd/internal/directory"
	"github.com/blockhaven/ticketd/internal/events"
	"github.com/blockhaven/ticketd/internal/observability"
	"github.com/blockhaven/ticketd/internal/persistence"
	"github.com/blockhaven/ticketd/internal/repository"
	"github.com/blockhaven/ticketd/internal/service"
	"github.com/blockhaven/ticketd/internal/stats"
	"github.com/blockhaven/ticketd/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		ticketRepo repository.TicketRepository
		dir        directory.Directory
		sink       directory.Sink
		buffered   directory.BufferedSink
	)
	healthDeps := map[string]handlers.Pinger{}

	switch cfg.Mode {
	case config.ModeDedicated:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, "", logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}

		rd := persistence.NewRedis(cfg.Redis, logger)
		defer rd.Close()

		ticketRepo = repository.NewTicketRepository(pg.Pool)
		redisDir := directory.NewRedisDirectory(rd.Client, cfg.Permissions.Operators)
		dir = redisDir
		sink = redisDir
		healthDeps["postgres"] = pg
		healthDeps["redis"] = rd

	case config.ModeStandalone:
		sq, err := persistence.NewSQLite(cfg.SQLite, logger)
		if err != nil {
			logger.Fatal("failed to open sqlite", zap.Error(err))
		}
		defer sq.Close()

		repo, err := repository.NewSQLiteTicketRepository(sq.DB)
		if err != nil {
			logger.Fatal("failed to init sqlite schema", zap.Error(err))
		}
		ticketRepo = repo

		memDir := directory.NewMemoryDirectory(cfg.Permissions.Operators)
		dir = memDir
		sink = memDir
		buffered = memDir
		healthDeps["sqlite"] = sq
	}

	var provider access.PermissionProvider
	if cfg.Mode == config.ModeDedicated && cfg.Permissions.Strict {
		casbinProvider, err := access.NewCasbinProvider(cfg.Permissions.CasbinModelPath, cfg.Permissions.CasbinPolicyPath)
		if err != nil {
			logger.Fatal("failed to load permission policy", zap.Error(err))
		}
		provider = casbinProvider
	}

	policy := access.NewPolicy(cfg.Mode, cfg.Permissions, provider, dir, logger)
	aggregator := stats.NewAggregator(cfg.Stats.ActiveWindow)
	dispatcher := events.NewInMemoryDispatcher(logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Policy:     policy,
		Aggregator: aggregator,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authService := service.NewAuthService(*cfg)
	notificationService := service.NewNotificationService(dispatcher, dir, sink, policy, logger)

	var bridge *service.EventBridge
	mqttClient, err := persistence.ConnectMQTT(cfg.Notify, logger)
	switch {
	case err == nil:
		bridge = service.NewEventBridge(dispatcher, mqttClient, logger)
		defer mqttClient.Disconnect(250)
	case errors.Is(err, persistence.ErrNoBroker):
		// bridge disabled
	default:
		logger.Warn("mqtt connect failed, continuing without event bridge", zap.Error(err))
	}

	worker.StartNotificationWorker(notificationService, bridge)

	authMiddleware := auth.NewMiddleware(authService.TokenManager())
	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Session:        handlers.NewSessionHandler(authService, dir),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Notices:        handlers.NewNoticesHandler(buffered),
		AuthMiddleware: authMiddleware,
	})

	logger.Info("starting server",
		zap.String("mode", string(cfg.Mode)),
		zap.String("addr", cfg.App.Addr()))

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

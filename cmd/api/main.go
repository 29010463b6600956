package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/opsmind/ticket-service/internal/api/http"
	"github.com/opsmind/ticket-service/internal/api/http/handlers"
	"github.com/opsmind/ticket-service/internal/broker"
	"github.com/opsmind/ticket-service/internal/config"
	"github.com/opsmind/ticket-service/internal/events"
	"github.com/opsmind/ticket-service/internal/observability"
	"github.com/opsmind/ticket-service/internal/persistence"
	"github.com/opsmind/ticket-service/internal/repository"
	"github.com/opsmind/ticket-service/internal/service"
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

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	brokerManager := broker.NewConnectionManager(cfg.Rabbit, logger, metrics)
	defer brokerManager.Close()
	if err := brokerManager.Connect(); err != nil {
		// The manager retries in the background; mutations succeed meanwhile
		// and only event delivery is degraded.
		logger.Warn("rabbitmq not available at startup, will retry", zap.Error(err))
	}

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	cache := repository.NewTicketCache(redis, cfg.Redis.TicketTTL(), logger)
	publisher := events.NewAMQPPublisher(brokerManager, brokerManager.Exchange(), metrics)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		EscalationRepo: escalationRepo,
		Cache:          cache,
		Publisher:      publisher,
		Logger:         logger,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, brokerManager),
		Tickets:     handlers.NewTicketsHandler(ticketService),
		Metrics:     metrics,
	})

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

// Package main запускает HTTP-сервер движка расчётов по заказам доставки.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/delivery-settlement/internal/config"
	"github.com/mmeshcher/delivery-settlement/internal/events"
	"github.com/mmeshcher/delivery-settlement/internal/geo"
	"github.com/mmeshcher/delivery-settlement/internal/handler"
	applogger "github.com/mmeshcher/delivery-settlement/internal/logger"
	"github.com/mmeshcher/delivery-settlement/internal/middleware"
	"github.com/mmeshcher/delivery-settlement/internal/repository"
	"github.com/mmeshcher/delivery-settlement/internal/service"
)

type storage interface {
	service.OrderRepository
	repository.ZoneStore
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.New(cfg.LogLevel, cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	settings, err := cfg.Settings()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var (
		repo        storage
		healthCheck func(context.Context) error
	)
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI, settings.Location)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo, healthCheck = pg, pg.Ping
	} else {
		sugar.Warn("DATABASE_URI is empty, using in-memory storage")
		repo = repository.NewMemoryRepository()
	}

	var zones service.ZoneRepository = repo
	if cfg.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			sugar.Warnw("redis is unreachable, zone reads fall back to storage", "error", err.Error())
		}
		cancel()

		zones = repository.NewCachedZoneRepository(repo, redisClient, cfg.ZoneCacheTTL)
	}

	opts := []service.Option{service.WithLogger(logger)}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer, err := events.NewProducer(brokers, cfg.KafkaTopic, logger)
		if err != nil {
			sugar.Fatalw("kafka producer initialization error", "error", err.Error())
		}
		defer producer.Close()
		opts = append(opts, service.WithPublisher(producer))
	}

	if cfg.DistanceServiceAddress != "" {
		opts = append(opts, service.WithDistanceClient(geo.NewClient(cfg.DistanceServiceAddress)))
	}

	svc := service.NewService(repo, zones, settings, opts...)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	handlerOpts := []handler.Option{
		handler.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		handler.WithHealthCheck(healthCheck),
	}
	if cfg.AdminSecret != "" {
		handlerOpts = append(handlerOpts, handler.WithAdminAuth(middleware.NewAuthMiddleware(cfg.AdminSecret)))
	} else {
		sugar.Warn("ADMIN_SECRET is empty, admin routes are disabled")
	}
	h := handler.NewHandler(svc, logger, authMiddleware, handlerOpts...)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Периодический перевод просроченных платежей графика
	g.Go(func() error {
		svc.StartOverdueSweep(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting settlement server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

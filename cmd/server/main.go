package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/studio-pos/internal/app"
	"github.com/iliyamo/studio-pos/internal/config"
	"github.com/iliyamo/studio-pos/internal/database"
	"github.com/iliyamo/studio-pos/internal/handler"
	"github.com/iliyamo/studio-pos/internal/middleware"
	"github.com/iliyamo/studio-pos/internal/queue"
	"github.com/iliyamo/studio-pos/internal/router"
)

func main() {
	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Printf("database: close: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DBAutoMigrate {
		if err := database.RunMigrations(ctx, db, logger); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
	}

	// Redis is optional: without it rate limiting, caching and the
	// finalization lock are disabled.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Printf("redis: unavailable, running without rate limit, cache and finalize lock")
	} else {
		defer closeRedis(rdb, logger)
	}

	svc, err := app.Build(cfg, db, rdb, logger)
	if err != nil {
		logger.Fatalf("wiring: %v", err)
	}

	if cfg.RabbitURL != "" {
		consumer := queue.NewConsumer(cfg.RabbitURL, app.ResignHandler(svc.Finalizer, logger), logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("tse-consumer: stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterWebhooks(e, handler.NewWebhookHandler(svc.Reconciler, logger))
	router.RegisterStaff(e, router.StaffHandlers{
		Checkins:     handler.NewCheckinHandler(svc.CheckinSvc, logger),
		Transactions: handler.NewTransactionHandler(svc.Transactions, svc.Finalizer, logger),
		Payments:     handler.NewPaymentHandler(svc.Settings, logger),
		TSE:          handler.NewTSEHandler(svc.Signer, logger),
	}, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Printf("server: %v", err)
	case <-ctx.Done():
		logger.Printf("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Printf("server: shutdown: %v", err)
	}
}

func closeRedis(rdb *redis.Client, logger *log.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Printf("redis: close: %v", err)
	}
}

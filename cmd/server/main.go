package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/app"
	"github.com/iliyamo/venture-platform/internal/config"
	"github.com/iliyamo/venture-platform/internal/handler"
	"github.com/iliyamo/venture-platform/internal/logging"
	"github.com/iliyamo/venture-platform/internal/router"
	"github.com/iliyamo/venture-platform/internal/telemetry"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	if a.Consumer != nil {
		go func() {
			if err := a.Consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}
	if cfg.Retention.Interval > 0 {
		go a.Sweeper.Run(ctx, cfg.Retention.Interval)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.Telemetry.ServiceName))
	e.Use(echomw.BodyLimit("1M"))

	router.Register(e, router.Handlers{
		Health:        &handler.HealthHandler{Docs: a.Docs, Redis: a.Redis},
		Auth:          handler.NewAuthHandler(cfg, a.Docs, a.Claims),
		Roles:         &handler.RoleHandler{Authority: a.Authority, Docs: a.Docs},
		Platform:      &handler.PlatformHandler{Service: a.Platform},
		Records:       &handler.RecordHandler{Intake: a.Intake},
		Notifications: &handler.NotificationHandler{Docs: a.Docs},
	}, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Docs:      a.Docs,
		Redis:     a.Redis,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Log:       logger,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if err := shutdownTracing(sctx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

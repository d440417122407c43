package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockroom/api/controllers"
	"github.com/angelmondragon/stockroom/api/routes"
	"github.com/angelmondragon/stockroom/internal/bootstrap"
	"github.com/angelmondragon/stockroom/pkg/config"
	"github.com/angelmondragon/stockroom/pkg/env"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

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
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap services", err)
		os.Exit(1)
	}

	var redisPinger controllers.Pinger
	if app.Redis != nil {
		redisPinger = app.Redis
	}

	addr := ":" + env.First(cfg.App.Port, "PORT")
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	if cfg.Automation.AutoStart {
		app.Scheduler.Start(ctx)
		logg.Info(ctx, "automation scheduler started")
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			BaseContext: ctx,
			DB:          app.DB,
			Redis:       redisPinger,
			Gatherer:    app.Registry,
			HTTPMetrics: app.HTTP,
			Inventory:   app.Inventory,
			Automation:  app.Automation,
			Profiles:    app.Profiles,
			Scheduler:   app.Scheduler,
			Jobs:        app.Jobs,
			Webhooks:    app.Webhooks,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	app.Scheduler.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "api server shutdown failed", err)
	}
	if err := app.Scheduler.Wait(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "scheduler tasks still running at shutdown", err)
	}
	if err := app.Close(); err != nil {
		logg.Error(shutdownCtx, "error closing resources", err)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	logg.Info(shutdownCtx, "api server shut down gracefully")
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ctm-colima/credential-service/internal/config"
	"github.com/ctm-colima/credential-service/internal/observability"
)

// BackgroundTask runs until its context is cancelled.
type BackgroundTask func(ctx context.Context) error

type App struct {
	Config          *config.Config
	Logger          *slog.Logger
	Server          *http.Server
	Observability   *observability.Runtime
	Background      []BackgroundTask
	Cleanup         func()
	ShutdownTimeout time.Duration
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime, cleanup func(), background ...BackgroundTask) *App {
	return &App{
		Config:          cfg,
		Logger:          logger,
		Server:          server,
		Observability:   runtime,
		Background:      background,
		Cleanup:         cleanup,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Run serves HTTP and the background tasks until ctx is cancelled or one of them fails, then
// drains the server within ShutdownTimeout and flushes telemetry.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	for _, task := range a.Background {
		g.Go(func() error { return task(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout())
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout())
	defer cancel()
	if shutdownErr := a.Observability.Shutdown(flushCtx); shutdownErr != nil {
		a.Logger.Warn("observability shutdown failed", "error", shutdownErr.Error())
	}
	if a.Cleanup != nil {
		a.Cleanup()
	}
	return err
}

func (a *App) shutdownTimeout() time.Duration {
	if a.ShutdownTimeout <= 0 {
		return 15 * time.Second
	}
	return a.ShutdownTimeout
}

package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ctm-colima/credential-service/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Runtime struct {
	Logger         *slog.Logger
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider

	once        sync.Once
	shutdownErr error
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		_ = (&Runtime{MeterProvider: mp}).Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}
	bridged, lp, err := InitLogging(ctx, cfg, logger)
	if err != nil {
		_ = (&Runtime{MeterProvider: mp, TracerProvider: tp}).Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}
	slog.SetDefault(bridged)
	return &Runtime{Logger: bridged, MeterProvider: mp, TracerProvider: tp, LoggerProvider: lp}, nil
}

// Shutdown flushes and stops the providers. Only the first call does any work; later calls return its result.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.once.Do(func() { r.shutdownErr = r.shutdown(ctx) })
	return r.shutdownErr
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var errs []error
	if r.MeterProvider != nil {
		if err := r.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.TracerProvider != nil {
		if err := r.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.LoggerProvider != nil {
		if err := r.LoggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

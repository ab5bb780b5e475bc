package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ctm-colima/credential-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "ctm-credential-service"

type AppMetrics struct {
	authLoginCounter         metric.Int64Counter
	authLogoutCounter        metric.Int64Counter
	sessionValidationCounter metric.Int64Counter
	repositoryCounter        metric.Int64Counter
	rateLimitCounter         metric.Int64Counter
	uploadCounter            metric.Int64Counter
	credentialCheckCounter   metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var (
		m   AppMetrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
	}{
		{&m.authLoginCounter, "auth.login.attempts"},
		{&m.authLogoutCounter, "auth.logout.attempts"},
		{&m.sessionValidationCounter, "auth.session.validations"},
		{&m.repositoryCounter, "repository.operations"},
		{&m.rateLimitCounter, "http.rate_limit.decisions"},
		{&m.uploadCounter, "storage.uploads"},
		{&m.credentialCheckCounter, "credential.validations"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name); err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
	}
	return &m, nil
}

func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(ctx context.Context, status string) {
	if m := current(); m != nil {
		m.authLoginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

func RecordAuthLogout(ctx context.Context, status string) {
	if m := current(); m != nil {
		m.authLogoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

func RecordSessionValidation(ctx context.Context, outcome, source string) {
	if m := current(); m != nil {
		m.sessionValidationCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("source", source),
		))
	}
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	if m := current(); m != nil {
		m.repositoryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordRateLimitDecision(ctx context.Context, scope, decision, backend string) {
	if m := current(); m != nil {
		m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("decision", decision),
			attribute.String("backend", backend),
		))
	}
}

func RecordUpload(ctx context.Context, kind, outcome string) {
	if m := current(); m != nil {
		m.uploadCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordCredentialValidation(ctx context.Context, outcome string) {
	if m := current(); m != nil {
		m.credentialCheckCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ctm-colima/credential-service/internal/app"
	"github.com/ctm-colima/credential-service/internal/config"
	"github.com/ctm-colima/credential-service/internal/database"
	"github.com/ctm-colima/credential-service/internal/health"
	"github.com/ctm-colima/credential-service/internal/http/handler"
	"github.com/ctm-colima/credential-service/internal/http/middleware"
	"github.com/ctm-colima/credential-service/internal/http/router"
	"github.com/ctm-colima/credential-service/internal/observability"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/security"
	"github.com/ctm-colima/credential-service/internal/service"
	"github.com/ctm-colima/credential-service/internal/storage"
)

const sessionCleanupInterval = time.Hour

// provideRuntime returns a cleanup so a failure in a later provider still flushes and stops telemetry.
// App.Run shuts the runtime down too; Runtime.Shutdown only acts once.
func provideRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*observability.Runtime, func(), error) {
	rt, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return rt, func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := rt.Shutdown(sctx); err != nil {
			logger.Warn("observability shutdown failed", "error", err.Error())
		}
	}, nil
}

func provideDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.Open(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = database.Close(db) }, nil
}

// provideRedis returns a nil client when REDIS_URL is unset; callers fall back to in-process state.
func provideRedis(cfg *config.Config) (redis.UniversalClient, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return client, func() { _ = client.Close() }, nil
}

func provideFileStore(cfg *config.Config) (*storage.LocalFileStore, func(), error) {
	fs, err := storage.NewLocalFileStore(cfg.StorageRoot, cfg.UploadMaxBytes)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() { _ = fs.Close() }, nil
}

func provideTokenHasher(cfg *config.Config) *security.TokenHasher {
	return security.NewTokenHasher(cfg.SessionPepper)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieName, cfg.IsProduction())
}

func provideSessionService(admins repository.AdminRepository, sessions repository.SessionRepository, hasher *security.TokenHasher, cfg *config.Config) *service.SessionService {
	return service.NewSessionService(admins, sessions, hasher, cfg.SessionTTL)
}

func provideMemberService(members repository.MemberRepository, files storage.FileStore, cfg *config.Config) *service.MemberService {
	return service.NewMemberService(members, files, cfg.UploadMaxBytes)
}

func provideSettingsService(settings repository.SettingsRepository, files storage.FileStore, cfg *config.Config) *service.SettingsService {
	return service.NewSettingsService(settings, files, cfg.UploadMaxBytes)
}

func provideCardService(members repository.MemberRepository, settings repository.SettingsRepository, cfg *config.Config) *service.CardService {
	return service.NewCardService(members, settings, cfg.PublicBaseURL)
}

func provideUnknownCredentialCache(client redis.UniversalClient) service.UnknownCredentialCache {
	if client == nil {
		return service.NewInMemoryUnknownCredentialCache(10000)
	}
	return service.NewRedisUnknownCredentialCache(client, "")
}

func provideValidationService(members repository.MemberRepository, cache service.UnknownCredentialCache, cfg *config.Config) *service.ValidationService {
	return service.NewValidationService(members, cache, cfg.UnknownCredentialTTL)
}

func provideMemberHandler(members service.MemberServiceInterface, cards service.CardServiceInterface, cfg *config.Config) *handler.MemberHandler {
	return handler.NewMemberHandler(members, cards, cfg.UploadMaxBytes)
}

func provideSettingsHandler(settings service.SettingsServiceInterface, cfg *config.Config) *handler.SettingsHandler {
	return handler.NewSettingsHandler(settings, cfg.UploadMaxBytes)
}

func provideHealthHandler(db *gorm.DB) *handler.HealthHandler {
	return handler.NewHealthHandler(health.NewDBChecker(db))
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.NewDBChecker(db)}
	if client != nil {
		checkers = append(checkers, health.NewRedisChecker(client))
	}
	return health.NewProbeRunner(2*time.Second, 5*time.Second, checkers...)
}

type rateLimiters struct {
	Global router.RateLimiterFunc
	Auth   router.RateLimiterFunc
}

// provideRateLimiters shares counters through Redis when it is configured. The API limiter fails
// open on Redis errors; the login limiter fails closed.
func provideRateLimiters(cfg *config.Config, client redis.UniversalClient, local *middleware.LocalFixedWindowLimiter) rateLimiters {
	if client == nil {
		return rateLimiters{
			Global: middleware.NewDistributedRateLimiter(local, cfg.APIRateLimitPerMin, time.Minute, middleware.FailClosed, "api", "local").Middleware(),
			Auth:   middleware.NewDistributedRateLimiter(local, cfg.AuthRateLimitPerMin, time.Minute, middleware.FailClosed, "auth", "local").Middleware(),
		}
	}
	shared := middleware.NewRedisFixedWindowLimiter(client, "rl")
	return rateLimiters{
		Global: middleware.NewDistributedRateLimiter(shared, cfg.APIRateLimitPerMin, time.Minute, middleware.FailOpen, "api", "redis").Middleware(),
		Auth:   middleware.NewDistributedRateLimiter(shared, cfg.AuthRateLimitPerMin, time.Minute, middleware.FailClosed, "auth", "redis").Middleware(),
	}
}

func provideRouter(
	cfg *config.Config,
	auth *handler.AuthHandler,
	members *handler.MemberHandler,
	settings *handler.SettingsHandler,
	validation *handler.ValidationHandler,
	healthHandler *handler.HealthHandler,
	sessions service.SessionServiceInterface,
	cookies *security.CookieManager,
	limiters rateLimiters,
	readiness *health.ProbeRunner,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:       auth,
		MemberHandler:     members,
		SettingsHandler:   settings,
		ValidationHandler: validation,
		HealthHandler:     healthHandler,
		Sessions:          sessions,
		Cookies:           cookies,
		CORSOrigins:       cfg.CORSOrigins,
		TrustedProxies:    cfg.TrustedProxies,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMin,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		GlobalRateLimiter: limiters.Global,
		AuthRateLimiter:   limiters.Auth,
		UploadMaxBytes:    cfg.UploadMaxBytes,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	})
}

func provideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	local *middleware.LocalFixedWindowLimiter,
	sessions repository.SessionRepository,
) *app.App {
	sweeper := func(ctx context.Context) error {
		return local.RunSweeper(ctx, cfg.RateLimitSweepInterval)
	}
	return app.New(cfg, logger, server, runtime, nil, sweeper, sessionJanitor(sessions))
}

// sessionJanitor removes expired sessions that were never presented again.
func sessionJanitor(sessions repository.SessionRepository) app.BackgroundTask {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				n, err := sessions.CleanupExpired(ctx, now.UTC())
				if err != nil {
					slog.WarnContext(ctx, "expired session cleanup failed", "error", err.Error())
					continue
				}
				if n > 0 {
					slog.InfoContext(ctx, "expired sessions removed", "count", n)
				}
			}
		}
	}
}

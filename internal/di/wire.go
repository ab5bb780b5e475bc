//go:build wireinject

package di

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	"github.com/ctm-colima/credential-service/internal/app"
	"github.com/ctm-colima/credential-service/internal/config"
	"github.com/ctm-colima/credential-service/internal/http/handler"
	"github.com/ctm-colima/credential-service/internal/http/middleware"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/service"
	"github.com/ctm-colima/credential-service/internal/storage"
)

var infraSet = wire.NewSet(
	provideRuntime,
	provideDB,
	provideRedis,
	provideFileStore,
	wire.Bind(new(storage.FileStore), new(*storage.LocalFileStore)),
)

var repositorySet = wire.NewSet(
	repository.NewAdminRepository,
	repository.NewSessionRepository,
	repository.NewMemberRepository,
	repository.NewSettingsRepository,
)

var serviceSet = wire.NewSet(
	provideTokenHasher,
	provideSessionService,
	provideMemberService,
	provideSettingsService,
	provideCardService,
	provideUnknownCredentialCache,
	provideValidationService,
	wire.Bind(new(service.SessionServiceInterface), new(*service.SessionService)),
	wire.Bind(new(service.MemberServiceInterface), new(*service.MemberService)),
	wire.Bind(new(service.SettingsServiceInterface), new(*service.SettingsService)),
	wire.Bind(new(service.CardServiceInterface), new(*service.CardService)),
	wire.Bind(new(service.ValidationServiceInterface), new(*service.ValidationService)),
)

var httpSet = wire.NewSet(
	provideCookieManager,
	handler.NewAuthHandler,
	provideMemberHandler,
	provideSettingsHandler,
	handler.NewValidationHandler,
	provideHealthHandler,
	middleware.NewLocalFixedWindowLimiter,
	provideRateLimiters,
	provideReadiness,
	provideRouter,
	provideServer,
)

func InitializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, func(), error) {
	wire.Build(infraSet, repositorySet, serviceSet, httpSet, provideApp)
	return nil, nil, nil
}

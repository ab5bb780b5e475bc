package router

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ctm-colima/credential-service/internal/health"
	"github.com/ctm-colima/credential-service/internal/http/handler"
	"github.com/ctm-colima/credential-service/internal/http/middleware"
	"github.com/ctm-colima/credential-service/internal/http/response"
	"github.com/ctm-colima/credential-service/internal/security"
	"github.com/ctm-colima/credential-service/internal/service"
)

const (
	jsonBodyLimit = 1 << 20
	// multipartOverhead covers boundaries and part headers around an upload.
	multipartOverhead = 64 << 10
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	MemberHandler     *handler.MemberHandler
	SettingsHandler   *handler.SettingsHandler
	ValidationHandler *handler.ValidationHandler
	HealthHandler     *handler.HealthHandler
	Sessions          service.SessionServiceInterface
	Cookies           *security.CookieManager
	CORSOrigins       []string
	TrustedProxies    []netip.Prefix
	AuthRateLimitRPM  int
	APIRateLimitRPM   int
	GlobalRateLimiter RateLimiterFunc
	AuthRateLimiter   RateLimiterFunc
	UploadMaxBytes    int64
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type RateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.ClientIP(dep.TrustedProxies))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewDistributedRateLimiter(middleware.NewLocalFixedWindowLimiter(), dep.AuthRateLimitRPM, time.Minute, middleware.FailClosed, "auth", "local").Middleware()
	}
	requireSession := middleware.RequireSession(dep.Sessions, dep.Cookies)
	jsonLimit := middleware.BodyLimit(jsonBodyLimit)
	uploadLimit := middleware.BodyLimit(dep.UploadMaxBytes + multipartOverhead)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", dep.HealthHandler.Health)
		r.Get("/users/{id}/validate", dep.ValidationHandler.Validate)

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter, jsonLimit).Post("/login", dep.AuthHandler.Login)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.With(requireSession).Get("/me", dep.AuthHandler.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Group(func(r chi.Router) {
				r.Use(jsonLimit)
				r.Get("/users", dep.MemberHandler.Search)
				r.Post("/users", dep.MemberHandler.Create)
				r.Get("/users/{id}", dep.MemberHandler.Get)
				r.Patch("/users/{id}", dep.MemberHandler.Update)
				r.Post("/users/{id}/vigency", dep.MemberHandler.RenewVigency)
				r.Get("/users/{id}/vigency", dep.MemberHandler.VigencyHistory)
				r.Get("/users/{id}/photo", dep.MemberHandler.Photo)
				r.Get("/users/{id}/signature", dep.MemberHandler.Signature)
				r.Get("/users/{id}/card", dep.MemberHandler.Card)

				r.Get("/settings", dep.SettingsHandler.Get)
				r.Put("/settings", dep.SettingsHandler.Update)
				r.Get("/settings/president-signature", dep.SettingsHandler.PresidentSignature)
			})

			r.Group(func(r chi.Router) {
				r.Use(uploadLimit)
				r.Post("/users/{id}/photo", dep.MemberHandler.UploadPhoto)
				r.Post("/users/{id}/signature", dep.MemberHandler.UploadSignature)
				r.Post("/settings/president-signature", dep.SettingsHandler.UploadPresidentSignature)
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}

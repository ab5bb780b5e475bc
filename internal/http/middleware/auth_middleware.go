package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ctm-colima/credential-service/internal/apperr"
	"github.com/ctm-colima/credential-service/internal/http/response"
	"github.com/ctm-colima/credential-service/internal/security"
	"github.com/ctm-colima/credential-service/internal/service"
)

type contextKey string

const (
	AdminContextKey contextKey = "admin"
)

// RequireSession admits requests carrying a live session token. Every failure is answered with
// the same 401 so callers cannot tell a missing session from an expired one.
func RequireSession(sessions service.SessionServiceInterface, cookies *security.CookieManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, err := sessions.Validate(r.Context(), cookies.TokenFromRequest(r))
			if err != nil {
				if apperr.KindOf(err) == apperr.KindInternal {
					slog.ErrorContext(r.Context(), "session validation failed", "path", r.URL.Path, "error", err.Error())
				}
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
				return
			}
			ctx := context.WithValue(r.Context(), AdminContextKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminFromContext(ctx context.Context) (*service.AdminIdentity, bool) {
	a, ok := ctx.Value(AdminContextKey).(*service.AdminIdentity)
	return a, ok
}

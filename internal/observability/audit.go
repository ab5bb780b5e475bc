package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit logs a state-changing admin action. attrs are key/value pairs appended after the request
// fields, for example "member_id", id.
func Audit(r *http.Request, event string, attrs ...any) {
	ctx := r.Context()
	slog.Default().With(attrs...).LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("event", event),
		slog.Group("request",
			slog.String("id", chimiddleware.GetReqID(ctx)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
		),
	)
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/ctm-colima/credential-service/internal/http/middleware"
	"github.com/ctm-colima/credential-service/internal/http/response"
	"github.com/ctm-colima/credential-service/internal/observability"
	"github.com/ctm-colima/credential-service/internal/security"
	"github.com/ctm-colima/credential-service/internal/service"
)

type AuthHandler struct {
	sessions service.SessionServiceInterface
	cookies  *security.CookieManager
}

func NewAuthHandler(sessions service.SessionServiceInterface, cookies *security.CookieManager) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookies: cookies}
}

type adminPayload struct {
	Admin any `json:"admin"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	res, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		observability.Audit(r, "auth.login.failed")
		response.WriteError(w, r, err)
		return
	}
	h.cookies.SetSession(w, res.Token, res.ExpiresAt)
	observability.Audit(r, "auth.login", "admin_id", res.Admin.ID)
	response.JSON(w, r, http.StatusOK, adminPayload{Admin: map[string]string{"id": res.Admin.ID, "email": res.Admin.Email}})
}

// Logout always succeeds and clears the cookie, whether or not a session was found. A store failure is
// only logged; the session row then lapses at its expiry.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), h.cookies.TokenFromRequest(r)); err != nil {
		slog.WarnContext(r.Context(), "logout session delete failed", "error", err.Error())
	}
	h.cookies.ClearSession(w)
	observability.Audit(r, "auth.logout")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.AdminFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, adminPayload{Admin: admin})
}

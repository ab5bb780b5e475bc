package security

import (
	"net/http"
	"strings"
	"time"
)

type CookieManager struct {
	name   string
	secure bool
}

func NewCookieManager(name string, secure bool) *CookieManager {
	return &CookieManager{name: name, secure: secure}
}

func (m *CookieManager) Name() string { return m.name }

func (m *CookieManager) SetSession(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    token,
		Path:     "/",
		Expires:  expires.UTC(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.secure,
	})
}

func (m *CookieManager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.secure,
	})
}

// TokenFromRequest reads the session cookie, falling back to an Authorization bearer token.
func (m *CookieManager) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(m.name); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

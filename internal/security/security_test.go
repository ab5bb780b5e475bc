package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/argon2"
)

func TestBcryptRoundTrip(t *testing.T) {
	h, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := VerifyPassword(h, "s3cret-pass")
	if err != nil || !ok {
		t.Fatalf("expected match: ok=%v err=%v", ok, err)
	}
	ok, err = VerifyPassword(h, "wrong")
	if err != nil || ok {
		t.Fatalf("expected mismatch without error: ok=%v err=%v", ok, err)
	}
}

func phc(password string, salt []byte, m, tm uint32, p uint8) string {
	key := argon2.IDKey([]byte(password), salt, tm, m, p, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2.Version, m, tm, p,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key))
}

func TestArgon2idLegacyHashes(t *testing.T) {
	encoded := phc("admin123", []byte("0123456789abcdef"), 1024, 2, 1)

	ok, err := VerifyPassword(encoded, "admin123")
	if err != nil || !ok {
		t.Fatalf("expected argon2id match: ok=%v err=%v", ok, err)
	}
	ok, err = VerifyPassword(encoded, "admin124")
	if err != nil || ok {
		t.Fatalf("expected argon2id mismatch: ok=%v err=%v", ok, err)
	}
}

func TestVerifyPasswordRejectsUnknownFormats(t *testing.T) {
	bad := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=2,p=1$c2FsdA$a2V5",
		"$argon2id$v=16$m=1024,t=2,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=2$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=2,p=1$!!$a2V5",
	}
	for _, enc := range bad {
		if _, err := VerifyPassword(enc, "x"); !errors.Is(err, ErrUnsupportedHash) {
			t.Fatalf("%q: expected ErrUnsupportedHash, got %v", enc, err)
		}
	}
}

func TestSessionTokenShapeAndHash(t *testing.T) {
	tok, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != 32 {
		t.Fatalf("token should be 32 base64url bytes: len=%d err=%v", len(raw), err)
	}
	other, _ := GenerateSessionToken()
	if tok == other {
		t.Fatal("tokens must be unique")
	}

	h1 := NewTokenHasher("pepper-a")
	h2 := NewTokenHasher("pepper-b")
	if h1.Hash(tok) != h1.Hash(tok) {
		t.Fatal("hash must be deterministic")
	}
	if h1.Hash(tok) == h2.Hash(tok) || h1.Hash(tok) == tok {
		t.Fatal("hash must depend on pepper and differ from the raw token")
	}
}

func TestCookieManager(t *testing.T) {
	m := NewCookieManager("session", true)
	rec := httptest.NewRecorder()
	exp := time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)
	m.SetSession(rec, "tok", exp)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "session" || c.Value != "tok" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}
	if !c.Expires.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, c.Expires)
	}

	rec = httptest.NewRecorder()
	m.ClearSession(rec)
	if c := rec.Result().Cookies()[0]; c.MaxAge >= 0 || c.Value != "" {
		t.Fatalf("expected clearing cookie, got %+v", c)
	}
}

func TestTokenFromRequest(t *testing.T) {
	m := NewCookieManager("session", false)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "from-cookie"})
	r.Header.Set("Authorization", "Bearer from-header")
	if got := m.TokenFromRequest(r); got != "from-cookie" {
		t.Fatalf("cookie should win, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer from-header")
	if got := m.TokenFromRequest(r); got != "from-header" {
		t.Fatalf("expected bearer token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	if got := m.TokenFromRequest(r); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

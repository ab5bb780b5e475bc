package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ctm-colima/credential-service/internal/database"
	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/health"
	"github.com/ctm-colima/credential-service/internal/http/handler"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/security"
	"github.com/ctm-colima/credential-service/internal/service"
	"github.com/ctm-colima/credential-service/internal/storage"
)

const (
	testAdminEmail    = "admin@ctm.test"
	testAdminPassword = "s3cret-pass"
	testMaxUpload     = 2 * 1024 * 1024
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 128)...)
	gifBytes = append([]byte("GIF89a\x01\x00\x01\x00"), make([]byte, 128)...)
)

type unhealthyChecker struct{}

func (unhealthyChecker) Check(context.Context) health.CheckResult {
	return health.CheckResult{Name: "database", Healthy: false, Error: "db down"}
}

type testEnv struct {
	router     http.Handler
	storageDir string
}

func newTestEnv(t *testing.T, mutate func(*Dependencies)) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("file:"+name+"?mode=memory&cache=shared", "silent")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	admins := repository.NewAdminRepository(db)
	hash, err := security.HashPassword(testAdminPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := admins.Upsert(context.Background(), &domain.Admin{ID: "admin-1", Email: testAdminEmail, PasswordHash: hash}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	dir := t.TempDir()
	files, err := storage.NewLocalFileStore(dir, testMaxUpload)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	t.Cleanup(func() { _ = files.Close() })

	members := repository.NewMemberRepository(db)
	settings := repository.NewSettingsRepository(db)
	cookies := security.NewCookieManager("session", false)
	sessions := service.NewSessionService(admins, repository.NewSessionRepository(db), security.NewTokenHasher("pepper"), time.Hour)

	dep := Dependencies{
		AuthHandler:       handler.NewAuthHandler(sessions, cookies),
		MemberHandler:     handler.NewMemberHandler(service.NewMemberService(members, files, testMaxUpload), service.NewCardService(members, settings, "http://localhost:3000"), testMaxUpload),
		SettingsHandler:   handler.NewSettingsHandler(service.NewSettingsService(settings, files, testMaxUpload), testMaxUpload),
		ValidationHandler: handler.NewValidationHandler(service.NewValidationService(members, service.NewInMemoryUnknownCredentialCache(100), time.Minute)),
		HealthHandler:     handler.NewHealthHandler(health.NewDBChecker(db)),
		Sessions:          sessions,
		Cookies:           cookies,
		CORSOrigins:       []string{"http://localhost:3000"},
		AuthRateLimitRPM:  1000,
		APIRateLimitRPM:   1000,
		UploadMaxBytes:    testMaxUpload,
	}
	if mutate != nil {
		mutate(&dep)
	}
	return &testEnv{router: NewRouter(dep), storageDir: dir}
}

func perform(r http.Handler, method, target string, headers map[string]string, cookies []*http.Cookie, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "10.10.10.10:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func performUpload(r http.Handler, target string, cookies []*http.Cookie, contentType string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="upload"`)
	h.Set("Content-Type", contentType)
	part, _ := mw.CreatePart(h)
	_, _ = part.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.RemoteAddr = "10.10.10.10:1234"
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rr.Body.String())
	}
	if dst != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func login(t *testing.T, env *testEnv) []*http.Cookie {
	t.Helper()
	rr := perform(env.router, http.MethodPost, "/api/v1/auth/login", nil, nil,
		`{"email":"`+testAdminEmail+`","password":"`+testAdminPassword+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "session" || !cookies[0].HttpOnly || cookies[0].SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected session cookie: %+v", cookies)
	}
	return cookies
}

func createMember(t *testing.T, env *testEnv, cookies []*http.Cookie, first, last, phone, vigencia string) domain.Member {
	t.Helper()
	body := `{"firstName":"` + first + `","lastName":"` + last + `","dob":"1980-05-10","vigencia":"` + vigencia + `",` +
		`"phoneMx":"` + phone + `","licenseNumber":"LIC-` + phone[6:] + `","badgeNumber":"B-1",` +
		`"address":{"street":"Calle 1","neighborhood":"Centro","city":"Colima","municipality":"Colima","state":"Colima","postalCode":"28000"}}`
	rr := perform(env.router, http.MethodPost, "/api/v1/users", nil, cookies, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create member: %d %s", rr.Code, rr.Body.String())
	}
	var m domain.Member
	decode(t, rr, &m)
	return m
}

func countStored(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestRouterHealthReadyNilAndUnreadyBranches(t *testing.T) {
	t.Run("nil readiness returns ready", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rr := perform(env.router, http.MethodGet, "/health/ready", nil, nil, "")
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ready"`) {
			t.Fatalf("expected ready, got %d %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("unready dependency returns 503", func(t *testing.T) {
		env := newTestEnv(t, func(dep *Dependencies) {
			dep.Readiness = health.NewProbeRunner(time.Second, 0, unhealthyChecker{})
		})
		rr := perform(env.router, http.MethodGet, "/health/ready", nil, nil, "")
		if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), `"code":"DEPENDENCY_UNREADY"`) {
			t.Fatalf("expected 503 DEPENDENCY_UNREADY, got %d %s", rr.Code, rr.Body.String())
		}
	})
}

func TestRouterAPIHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := perform(env.router, http.MethodGet, "/api/v1/health", nil, nil, "")
	var body struct{ Status, Database string }
	decode(t, rr, &body)
	if rr.Code != http.StatusOK || body.Status != "ok" || body.Database != "connected" {
		t.Fatalf("unexpected health: %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouterFallbackGlobalRateLimiterWhenCustomNil(t *testing.T) {
	env := newTestEnv(t, func(dep *Dependencies) { dep.APIRateLimitRPM = 1 })

	first := perform(env.router, http.MethodGet, "/health/live", nil, nil, "")
	if first.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", first.Code)
	}
	second := perform(env.router, http.MethodGet, "/health/live", nil, nil, "")
	if second.Code != http.StatusTooManyRequests || second.Header().Get("Retry-After") == "" {
		t.Fatalf("second request expected 429 with Retry-After, got %d", second.Code)
	}
}

func TestRouterLoginRateLimited(t *testing.T) {
	env := newTestEnv(t, func(dep *Dependencies) { dep.AuthRateLimitRPM = 2 })
	body := `{"email":"nobody@ctm.test","password":"x"}`
	for i := 0; i < 2; i++ {
		if rr := perform(env.router, http.MethodPost, "/api/v1/auth/login", nil, nil, body); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: %d", i, rr.Code)
		}
	}
	rr := perform(env.router, http.MethodPost, "/api/v1/auth/login", nil, nil, body)
	env2 := decode(t, rr, nil)
	if rr.Code != http.StatusTooManyRequests || env2.Error == nil || env2.Error.Code != "RATE_LIMITED" {
		t.Fatalf("expected RATE_LIMITED, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouterLoginRateLimitIgnoresForwardedHeadersFromUntrustedPeers(t *testing.T) {
	env := newTestEnv(t, func(dep *Dependencies) { dep.AuthRateLimitRPM = 2 })
	body := `{"email":"nobody@ctm.test","password":"x"}`

	limited := 0
	for i := 0; i < 20; i++ {
		headers := map[string]string{
			"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1),
			"X-Real-IP":       fmt.Sprintf("198.51.100.%d", i+1),
			"True-Client-IP":  fmt.Sprintf("192.0.2.%d", i+1),
		}
		rr := perform(env.router, http.MethodPost, "/api/v1/auth/login", headers, nil, body)
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 18 {
		t.Fatalf("rotating forwarded headers from one peer: %d of 20 attempts limited, want 18", limited)
	}
}

func TestRouterLoginRateLimitUsesClientBehindTrustedProxy(t *testing.T) {
	env := newTestEnv(t, func(dep *Dependencies) {
		dep.AuthRateLimitRPM = 1
		dep.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("10.10.10.0/24")}
	})
	body := `{"email":"nobody@ctm.test","password":"x"}`
	login := func(xff string) int {
		return perform(env.router, http.MethodPost, "/api/v1/auth/login", map[string]string{"X-Forwarded-For": xff}, nil, body).Code
	}

	if code := login("203.0.113.7"); code != http.StatusUnauthorized {
		t.Fatalf("first attempt: %d", code)
	}
	// a client-supplied hop in front of the proxy's entry must not open a new window
	if code := login("198.51.100.1, 203.0.113.7"); code != http.StatusTooManyRequests {
		t.Fatalf("spoofed leading hop: %d, want 429", code)
	}
	if code := login("203.0.113.8"); code != http.StatusUnauthorized {
		t.Fatalf("distinct client behind the proxy should get its own window: %d", code)
	}
}

func TestRouterLoginErrorsAreIdentical(t *testing.T) {
	env := newTestEnv(t, nil)
	unknown := perform(env.router, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"email":"ghost@ctm.test","password":"`+testAdminPassword+`"}`)
	wrong := perform(env.router, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"email":"`+testAdminEmail+`","password":"nope"}`)

	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", unknown.Code, wrong.Code)
	}
	a := decode(t, unknown, nil)
	b := decode(t, wrong, nil)
	ja, _ := json.Marshal(a.Error)
	jb, _ := json.Marshal(b.Error)
	if !bytes.Equal(ja, jb) {
		t.Fatalf("error payloads differ: %s vs %s", ja, jb)
	}
	if len(unknown.Result().Cookies()) != 0 || len(wrong.Result().Cookies()) != 0 {
		t.Fatal("failed logins must not set cookies")
	}
}

func TestRouterSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	cookies := login(t, env)

	rr := perform(env.router, http.MethodGet, "/api/v1/auth/me", nil, cookies, "")
	var me struct {
		Admin struct{ ID, Email string } `json:"admin"`
	}
	decode(t, rr, &me)
	if rr.Code != http.StatusOK || me.Admin.Email != testAdminEmail {
		t.Fatalf("me: %d %s", rr.Code, rr.Body.String())
	}

	for i := 0; i < 2; i++ {
		rr = perform(env.router, http.MethodPost, "/api/v1/auth/logout", nil, cookies, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("logout %d: %d", i, rr.Code)
		}
		cleared := rr.Result().Cookies()
		if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
			t.Fatalf("logout should clear the cookie: %+v", cleared)
		}
	}

	rr = perform(env.router, http.MethodGet, "/api/v1/auth/me", nil, cookies, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: %d", rr.Code)
	}
}

func TestRouterAdminRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, nil)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/users?query=juan"},
		{http.MethodPost, "/api/v1/users"},
		{http.MethodGet, "/api/v1/users/x"},
		{http.MethodPatch, "/api/v1/users/x"},
		{http.MethodPost, "/api/v1/users/x/vigency"},
		{http.MethodGet, "/api/v1/users/x/card"},
		{http.MethodPost, "/api/v1/users/x/photo"},
		{http.MethodGet, "/api/v1/settings"},
		{http.MethodPut, "/api/v1/settings"},
		{http.MethodPost, "/api/v1/settings/president-signature"},
	}
	for _, rt := range routes {
		rr := perform(env.router, rt.method, rt.path, nil, []*http.Cookie{{Name: "session", Value: "forged"}}, "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", rt.method, rt.path, rr.Code)
		}
	}
}

func TestRouterMemberFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	cookies := login(t, env)

	juan := createMember(t, env, cookies, "Juan", "Pérez", "3121234567", "2999-12-31")
	createMember(t, env, cookies, "Juana", "Lopez", "3127654321", "2000-01-01")
	if juan.Folio == nil || *juan.Folio != "0001" {
		t.Fatalf("expected folio 0001, got %v", juan.Folio)
	}

	search := func(q string) []domain.Member {
		rr := perform(env.router, http.MethodGet, "/api/v1/users?query="+q, nil, cookies, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("search %q: %d %s", q, rr.Code, rr.Body.String())
		}
		var out struct{ Users []domain.Member }
		decode(t, rr, &out)
		return out.Users
	}
	if got := search("juan"); len(got) != 2 {
		t.Fatalf("single token should match both names, got %d", len(got))
	}
	if got := search("juan+p%C3%A9rez"); len(got) != 1 || got[0].ID != juan.ID {
		t.Fatalf("multi token search: %+v", got)
	}
	if got := search("1234567"); len(got) != 1 || got[0].ID != juan.ID {
		t.Fatalf("numeric search: %+v", got)
	}
	if rr := perform(env.router, http.MethodGet, "/api/v1/users?query=", nil, cookies, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty query: %d", rr.Code)
	}

	rr := perform(env.router, http.MethodPatch, "/api/v1/users/"+juan.ID, nil, cookies, `{"phoneMx":"12"}`)
	if e := decode(t, rr, nil); rr.Code != http.StatusBadRequest || e.Error.Details["phoneMx"] == "" {
		t.Fatalf("invalid patch: %d %s", rr.Code, rr.Body.String())
	}

	rr = perform(env.router, http.MethodPost, "/api/v1/users/"+juan.ID+"/vigency", nil, cookies, `{"note":"renewed"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("renew: %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(env.router, http.MethodGet, "/api/v1/users/"+juan.ID+"/vigency", nil, cookies, "")
	var page repository.PageResult[domain.VigencyEvent]
	decode(t, rr, &page)
	if page.Total != 1 {
		t.Fatalf("history: %s", rr.Body.String())
	}

	rr = perform(env.router, http.MethodGet, "/api/v1/users/"+juan.ID, nil, cookies, "")
	var got domain.Member
	decode(t, rr, &got)
	if got.Address == nil || len(got.VigencyEvents) != 1 || got.Vigencia == nil || *got.Vigencia != "2999-12-31" {
		t.Fatalf("member detail: %s", rr.Body.String())
	}

	rr = perform(env.router, http.MethodGet, "/api/v1/users/"+juan.ID+"/card", nil, cookies, "")
	var card service.CardData
	decode(t, rr, &card)
	if card.FullName != "Juan PÉREZ" || card.ValidationURL != "http://localhost:3000/validation/"+juan.ID {
		t.Fatalf("card: %s", rr.Body.String())
	}

	if rr := perform(env.router, http.MethodGet, "/api/v1/users/missing", nil, cookies, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("missing member: %d", rr.Code)
	}
}

func TestRouterPublicValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	cookies := login(t, env)
	valid := createMember(t, env, cookies, "Juan", "Pérez", "3121234567", "2999-12-31")
	expired := createMember(t, env, cookies, "Ana", "Ruiz", "3120000001", "2000-01-01")

	check := func(id string) map[string]any {
		rr := perform(env.router, http.MethodGet, "/api/v1/users/"+id+"/validate", nil, nil, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("validate %s: %d", id, rr.Code)
		}
		var out map[string]any
		decode(t, rr, &out)
		return out
	}
	out := check(valid.ID)
	if out["valid"] != true || len(out) != 6 {
		t.Fatalf("unexpected public payload: %v", out)
	}
	if _, leaked := out["phoneMx"]; leaked {
		t.Fatal("phone must not be public")
	}
	if check(expired.ID)["valid"] != false {
		t.Fatal("expired credential reported valid")
	}
	if rr := perform(env.router, http.MethodGet, "/api/v1/users/unknown/validate", nil, nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown credential: %d", rr.Code)
	}
}

func TestRouterUploads(t *testing.T) {
	env := newTestEnv(t, nil)
	cookies := login(t, env)
	m := createMember(t, env, cookies, "Juan", "Pérez", "3121234567", "2999-12-31")
	photoURL := "/api/v1/users/" + m.ID + "/photo"

	big := append(append([]byte{}, pngBytes...), make([]byte, 3*1024*1024)...)
	rejected := []struct {
		name        string
		contentType string
		data        []byte
	}{
		{"3MB png", "image/png", big},
		{"gif", "image/gif", gifBytes},
		{"gif declared png", "image/png", gifBytes},
	}
	for _, tc := range rejected {
		rr := performUpload(env.router, photoURL, cookies, tc.contentType, tc.data)
		e := decode(t, rr, nil)
		if rr.Code != http.StatusBadRequest || e.Error == nil || e.Error.Code != "UPLOAD_REJECTED" {
			t.Fatalf("%s: expected 400 UPLOAD_REJECTED, got %d %s", tc.name, rr.Code, rr.Body.String())
		}
	}
	if n := countStored(t, env.storageDir); n != 0 {
		t.Fatalf("rejected uploads wrote %d files", n)
	}

	if rr := perform(env.router, http.MethodGet, photoURL, nil, cookies, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("photo before upload: %d", rr.Code)
	}
	rr := performUpload(env.router, photoURL, cookies, "image/png", pngBytes)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(env.router, http.MethodGet, photoURL, nil, cookies, "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" || !bytes.Equal(rr.Body.Bytes(), pngBytes) {
		t.Fatalf("download: %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = performUpload(env.router, "/api/v1/settings/president-signature", cookies, "image/png", pngBytes)
	if rr.Code != http.StatusOK {
		t.Fatalf("president signature: %d %s", rr.Code, rr.Body.String())
	}
	if n := countStored(t, env.storageDir); n != 2 {
		t.Fatalf("expected 2 stored files, got %d", n)
	}
}

func TestRouterSettings(t *testing.T) {
	env := newTestEnv(t, nil)
	cookies := login(t, env)

	rr := perform(env.router, http.MethodGet, "/api/v1/settings", nil, cookies, "")
	var s domain.Settings
	decode(t, rr, &s)
	if rr.Code != http.StatusOK || s.ID != domain.SettingsID {
		t.Fatalf("get settings: %d %s", rr.Code, rr.Body.String())
	}

	rr = perform(env.router, http.MethodPut, "/api/v1/settings", nil, cookies, `{"adjusterColima":"12345","adjusterTecoman":"67890","adjusterManzanillo":"54321"}`)
	decode(t, rr, &s)
	if rr.Code != http.StatusOK || s.AdjusterTecoman != "67890" {
		t.Fatalf("put settings: %d %s", rr.Code, rr.Body.String())
	}

	rr = perform(env.router, http.MethodPut, "/api/v1/settings", nil, cookies, `{"adjusterColima":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid settings: %d", rr.Code)
	}
	rr = perform(env.router, http.MethodPut, "/api/v1/settings", nil, cookies, `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed json: %d", rr.Code)
	}
}

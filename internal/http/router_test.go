package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-todo-list/internal/config"
	"github.com/pribylovaa/go-todo-list/internal/http/middleware"
	"github.com/pribylovaa/go-todo-list/internal/service"
	"github.com/pribylovaa/go-todo-list/internal/storage/memory"
	"github.com/pribylovaa/go-todo-list/internal/token"
)

const testOrigin = "http://localhost:5173"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func authCfg(secret string) config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       secret,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "todo-auth",
		Audience:        []string{"todo-web"},
	}
}

type env struct {
	srv    *httptest.Server
	client *http.Client
	clock  *fakeClock
	svc    *service.Service
	store  *memory.Storage
}

// newEnv поднимает роутер на memory-хранилище с управляемыми часами.
// Защищённый ресурс /api/todos отвечает ID пользователя из контекста.
func newEnv(t *testing.T) *env {
	t.Helper()

	clock := &fakeClock{now: time.Now()}
	tokens, err := token.New(authCfg("e2e-secret"), token.WithClock(clock.Now))
	require.NoError(t, err)

	store := memory.New()
	svc := service.New(store, tokens, service.WithClock(clock.Now), service.WithHashCost(bcrypt.MinCost))

	router := NewRouter(svc, Options{
		BasePath:      "/api",
		AllowedOrigin: testOrigin,
		Cookie:        config.CookieConfig{Name: "refreshToken", Path: "/", SameSite: "lax"},
		Protected: func(r chi.Router) {
			r.Get("/todos", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserIDFromContext(r.Context())
				_ = json.NewEncoder(w).Encode(map[string]string{"owner": uid.String()})
			})
		},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &env{srv: srv, client: &http.Client{Jar: jar}, clock: clock, svc: svc, store: store}
}

type reply struct {
	status int
	body   map[string]any
	header http.Header
}

func (e *env) call(t *testing.T, method, path string, body any, access string) reply {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := reply{status: resp.StatusCode, header: resp.Header}
	_ = json.NewDecoder(resp.Body).Decode(&out.body)
	return out
}

func (e *env) refreshCookie(t *testing.T) string {
	t.Helper()

	u, err := url.Parse(e.srv.URL + "/api/auth/refresh")
	require.NoError(t, err)

	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == "refreshToken" {
			return c.Value
		}
	}
	return ""
}

func (e *env) setRefreshCookie(t *testing.T, value string) {
	t.Helper()

	u, err := url.Parse(e.srv.URL + "/")
	require.NoError(t, err)
	e.client.Jar.SetCookies(u, []*http.Cookie{{Name: "refreshToken", Value: value, Path: "/"}})
}

func errCode(r reply) string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func user(r reply) map[string]any {
	u, _ := r.body["user"].(map[string]any)
	return u
}

func accessToken(r reply) string {
	tok, _ := r.body["accessToken"].(string)
	return tok
}

var alice = map[string]string{"fullName": "Alice", "email": "a@x.com", "password": "pw123"}

func TestE2E_RegisterProtectedExpireRefresh(t *testing.T) {
	e := newEnv(t)

	reg := e.call(t, http.MethodPost, "/api/auth/register", alice, "")
	require.Equal(t, http.StatusOK, reg.status)
	require.Equal(t, "a@x.com", user(reg)["email"])
	require.Equal(t, "Alice", user(reg)["fullName"])
	require.NotContains(t, reg.body, "refreshToken")
	require.NotContains(t, user(reg), "password")
	require.NotContains(t, user(reg), "passwordHash")
	require.NotEmpty(t, e.refreshCookie(t))

	access := accessToken(reg)
	require.NotEmpty(t, access)

	todos := e.call(t, http.MethodGet, "/api/todos", nil, access)
	require.Equal(t, http.StatusOK, todos.status)
	require.Equal(t, user(reg)["id"], todos.body["owner"])

	e.clock.Advance(15*time.Minute + time.Second)

	expired := e.call(t, http.MethodGet, "/api/todos", nil, access)
	require.Equal(t, http.StatusUnauthorized, expired.status)
	require.Equal(t, "unauthorized", errCode(expired))

	ref := e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")
	require.Equal(t, http.StatusOK, ref.status)
	require.Equal(t, user(reg)["id"], user(ref)["id"])
	require.NotEqual(t, access, accessToken(ref))

	again := e.call(t, http.MethodGet, "/api/todos", nil, accessToken(ref))
	require.Equal(t, http.StatusOK, again.status)
	require.Equal(t, user(reg)["id"], again.body["owner"])
}

func TestE2E_RegisterThenLogin_SameUser(t *testing.T) {
	e := newEnv(t)

	reg := e.call(t, http.MethodPost, "/api/auth/register", alice, "")
	require.Equal(t, http.StatusOK, reg.status)

	login := e.call(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "A@X.com", "password": "pw123"}, "")
	require.Equal(t, http.StatusOK, login.status)
	require.Equal(t, user(reg)["id"], user(login)["id"])
	require.NotEmpty(t, accessToken(login))
}

func TestE2E_DuplicateEmail(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/auth/register", alice, "").status)

	dup := e.call(t, http.MethodPost, "/api/auth/register",
		map[string]string{"fullName": "Other", "email": "A@x.com", "password": "other"}, "")
	require.Equal(t, http.StatusConflict, dup.status)
	require.Equal(t, "duplicate_email", errCode(dup))

	// Второй записи нет: вход по новому паролю не проходит.
	login := e.call(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@x.com", "password": "other"}, "")
	require.Equal(t, http.StatusUnauthorized, login.status)

	u, err := e.store.UserByEmail(t.Context(), "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "Alice", u.FullName)
}

func TestE2E_LoginFailuresIdentical(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/auth/register", alice, "").status)

	wrongPW := e.call(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@x.com", "password": "nope"}, "")
	unknown := e.call(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "b@x.com", "password": "pw123"}, "")

	require.Equal(t, http.StatusUnauthorized, wrongPW.status)
	require.Equal(t, wrongPW.status, unknown.status)

	a, _ := wrongPW.body["error"].(map[string]any)
	b, _ := unknown.body["error"].(map[string]any)
	require.Equal(t, "invalid_credentials", a["code"])
	require.Equal(t, a["code"], b["code"])
	require.Equal(t, a["message"], b["message"])
}

func TestE2E_RefreshWithoutOrWithBadCookie(t *testing.T) {
	e := newEnv(t)

	none := e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")
	require.Equal(t, http.StatusUnauthorized, none.status)
	require.Equal(t, "no_session", errCode(none))

	reg := e.call(t, http.MethodPost, "/api/auth/register", alice, "")
	require.Equal(t, http.StatusOK, reg.status)

	good := e.refreshCookie(t)
	e.setRefreshCookie(t, good[:len(good)-2]+"xx")

	bad := e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")
	require.Equal(t, http.StatusUnauthorized, bad.status)
	require.Equal(t, "invalid_session", errCode(bad))

	// Access-токен в роли refresh-cookie тоже не подходит.
	e.setRefreshCookie(t, accessToken(reg))
	crossKind := e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")
	require.Equal(t, "invalid_session", errCode(crossKind))
}

func TestE2E_RefreshAfterRefreshTTL(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/auth/register", alice, "").status)

	e.clock.Advance(7*24*time.Hour + time.Second)

	late := e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")
	require.Equal(t, http.StatusUnauthorized, late.status)
	require.Equal(t, "invalid_session", errCode(late))
}

func TestE2E_RefreshForDeletedUser(t *testing.T) {
	e := newEnv(t)

	reg := e.call(t, http.MethodPost, "/api/auth/register", alice, "")
	require.Equal(t, http.StatusOK, reg.status)

	id, err := uuid.Parse(user(reg)["id"].(string))
	require.NoError(t, err)
	e.store.DeleteUser(t.Context(), id)

	gone := e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")
	require.Equal(t, "invalid_session", errCode(gone))
}

func TestE2E_LogoutIdempotent(t *testing.T) {
	e := newEnv(t)

	// Без сессии.
	out := e.call(t, http.MethodGet, "/api/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, out.status)
	require.Equal(t, true, out.body["success"])

	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/auth/register", alice, "").status)
	require.NotEmpty(t, e.refreshCookie(t))

	for i := 0; i < 2; i++ {
		out := e.call(t, http.MethodGet, "/api/auth/logout", nil, "")
		require.Equal(t, http.StatusOK, out.status)
		require.Equal(t, true, out.body["success"])
		require.Empty(t, e.refreshCookie(t))
	}

	// С мусорной cookie.
	e.setRefreshCookie(t, "garbage")
	out = e.call(t, http.MethodGet, "/api/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, out.status)
	require.Empty(t, e.refreshCookie(t))

	after := e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")
	require.Equal(t, "no_session", errCode(after))
}

// TestE2E_LogoutDoesNotRevokeByDefault — без списка отзыва перехваченный
// refresh-токен живёт до своего истечения.
func TestE2E_LogoutDoesNotRevokeByDefault(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/auth/register", alice, "").status)

	captured := e.refreshCookie(t)
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/auth/logout", nil, "").status)

	e.setRefreshCookie(t, captured)
	replay := e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")
	require.Equal(t, http.StatusOK, replay.status)
}

func TestE2E_RevocationSet_EndsSessionOnDemand(t *testing.T) {
	e := newEnv(t)
	e.svc.SetRevocationStore(memory.NewRevocations())

	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/auth/register", alice, "").status)

	// Ротация: старый токен отозван.
	first := e.refreshCookie(t)
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/auth/refresh", nil, "").status)
	second := e.refreshCookie(t)
	require.NotEqual(t, first, second)

	e.setRefreshCookie(t, first)
	require.Equal(t, "invalid_session", errCode(e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")))

	// Logout: текущий токен отозван.
	e.setRefreshCookie(t, second)
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/auth/logout", nil, "").status)

	e.setRefreshCookie(t, second)
	require.Equal(t, "invalid_session", errCode(e.call(t, http.MethodGet, "/api/auth/refresh", nil, "")))
}

func TestE2E_AccessGuardRejects(t *testing.T) {
	e := newEnv(t)

	reg := e.call(t, http.MethodPost, "/api/auth/register", alice, "")
	require.Equal(t, http.StatusOK, reg.status)

	other, err := token.New(authCfg("another-secret"))
	require.NoError(t, err)
	id, err := uuid.Parse(user(reg)["id"].(string))
	require.NoError(t, err)
	foreign, err := other.Mint(token.KindAccess, id)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"no_token":       "",
		"garbage":        "not.a.jwt",
		"foreign_secret": foreign.Token,
		"refresh_token":  e.refreshCookie(t),
	} {
		r := e.call(t, http.MethodGet, "/api/todos", nil, tok)
		require.Equal(t, http.StatusUnauthorized, r.status, name)
		require.Equal(t, "unauthorized", errCode(r), name)
	}

	me := e.call(t, http.MethodGet, "/api/auth/me", nil, accessToken(reg))
	require.Equal(t, http.StatusOK, me.status)
	require.Equal(t, user(reg)["id"], me.body["userId"])
}

func TestE2E_ValidationErrors(t *testing.T) {
	e := newEnv(t)

	for name, body := range map[string]map[string]string{
		"bad_email":      {"fullName": "A", "email": "nope", "password": "pw"},
		"empty_password": {"fullName": "A", "email": "a@x.com", "password": ""},
		"empty_name":     {"fullName": "", "email": "a@x.com", "password": "pw"},
	} {
		r := e.call(t, http.MethodPost, "/api/auth/register", body, "")
		require.Equal(t, http.StatusBadRequest, r.status, name)
		require.Equal(t, "invalid_argument", errCode(r), name)
	}
}

func TestCORS_SingleOriginWithCredentials(t *testing.T) {
	e := newEnv(t)

	preflight := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, e.srv.URL+"/api/auth/login", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	ok := preflight(testOrigin)
	require.Equal(t, testOrigin, ok.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", ok.Header.Get("Access-Control-Allow-Credentials"))

	denied := preflight("http://evil.example")
	require.Empty(t, denied.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_NoBasePath(t *testing.T) {
	tokens, err := token.New(authCfg("secret"))
	require.NoError(t, err)
	svc := service.New(memory.New(), tokens, service.WithHashCost(bcrypt.MinCost))

	srv := httptest.NewServer(NewRouter(svc, Options{}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/auth/logout")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

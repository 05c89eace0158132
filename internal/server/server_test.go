package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	accountdomain "accounts-api/internal/account/domain"
	accountservice "accounts-api/internal/account/service"
	auditdomain "accounts-api/internal/audit/domain"
	authservice "accounts-api/internal/auth/service"
	"accounts-api/internal/cache"
	"accounts-api/internal/security"
	sessiondomain "accounts-api/internal/session/domain"
)

type memAccountRepo struct {
	mu   sync.Mutex
	byID map[string]*accountdomain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byID: make(map[string]*accountdomain.Account)}
}

func (r *memAccountRepo) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memAccountRepo) List(ctx context.Context) ([]*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*accountdomain.Account, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out, nil
}

func (r *memAccountRepo) Create(ctx context.Context, a *accountdomain.Account, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a2 := *a
	r.byID[a.ID] = &a2
	return nil
}

func (r *memAccountRepo) UpdateEmail(ctx context.Context, id, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a.Email = email
	}
	return nil
}

func (r *memAccountRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

type memSessionRepo struct {
	mu    sync.Mutex
	byKey map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byKey: make(map[string]*sessiondomain.Session)}
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.byKey[s.Key] = &s2
	return nil
}

func (r *memSessionRepo) GetValid(ctx context.Context, key, csrf string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byKey[key]
	if !ok || s.CSRF != csrf || s.Invalidated || !s.Expiry.After(time.Now()) {
		return nil, nil
	}
	s2 := *s
	return &s2, nil
}

func (r *memSessionRepo) Invalidate(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byKey[key]; ok {
		s.Invalidated = true
	}
	return nil
}

type memEventRepo struct {
	mu     sync.Mutex
	events []*auditdomain.Event
}

func (r *memEventRepo) Create(ctx context.Context, e *auditdomain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *memEventRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*auditdomain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auditdomain.Event
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].AccountID == accountID {
			out = append(out, r.events[i])
		}
	}
	if int(offset) < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type fixture struct {
	srv      *Server
	handler  http.Handler
	accounts *memAccountRepo
	sessions *memSessionRepo
	events   *memEventRepo
}

func newFixture(t *testing.T, checks map[string]HealthCheck) *fixture {
	t.Helper()

	accountRepo := newMemAccountRepo()
	sessionRepo := newMemSessionRepo()
	eventRepo := &memEventRepo{}
	hasher := security.NewHasher("argon-secret", 1, 8*1024)
	codec := security.NewTokenCodec("jwt-secret")
	log := zerolog.Nop()

	auth, err := authservice.NewAuthService(
		accountRepo, sessionRepo, cache.NewMemoryStore(), hasher, codec, 0, log)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	accounts, err := accountservice.NewService(accountRepo, hasher)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv, err := NewServer("127.0.0.1:0", auth, accounts, eventRepo, checks, log)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return &fixture{srv: srv, handler: srv.Handler(), accounts: accountRepo, sessions: sessionRepo, events: eventRepo}
}

func (f *fixture) register(t *testing.T, email, password string) *accountdomain.Account {
	t.Helper()
	body := strings.NewReader(`{"email":"` + email + `","password":"` + password + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var account accountdomain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("register: decode response: %v", err)
	}
	return &account
}

func (f *fixture) login(t *testing.T, email, password string) (jwt, csrf string) {
	t.Helper()
	body := strings.NewReader(`{"email":"` + email + `","password":"` + password + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login: decode response: %v", err)
	}
	return resp.JWT, resp.CSRF
}

func TestLogin_SetsCookieAndReturnsTokens(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")

	body := strings.NewReader(`{"email":"a@x.com","password":"p1"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JWT == "" || resp.CSRF == "" {
		t.Error("jwt and csrf must both be set")
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("jwt cookie not set")
	}
	if cookie.Value != resp.JWT {
		t.Error("cookie value should match the body token")
	}
	if !cookie.HttpOnly {
		t.Error("jwt cookie must be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", cookie.SameSite)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")

	body := strings.NewReader(`{"email":"a@x.com","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != problemContentType {
		t.Errorf("Content-Type = %q, want %q", ct, problemContentType)
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAuth_AnonymousPassthrough(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz without credentials: status = %d, want 200", rec.Code)
	}
}

func TestAuth_ProtectedRouteWithoutSession(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_HalfCredentialsRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	// Token without CSRF.
	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+jwt)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("token only: status = %d, want 401", rec.Code)
	}

	// CSRF without token.
	req = httptest.NewRequest(http.MethodGet, "/accounts?csrf="+csrf, nil)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("csrf only: status = %d, want 401", rec.Code)
	}
}

func TestLogin_SucceedsWithStaleCookie(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")
	jwt, _ := f.login(t, "a@x.com", "p1")

	// A browser holding the jwt cookie from a previous login sends it along
	// with the next login attempt; valid credentials must still succeed.
	body := strings.NewReader(`{"email":"a@x.com","password":"p1"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth", body)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: jwt})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("re-login with leftover cookie: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JWT == "" || resp.JWT == jwt {
		t.Error("re-login must mint a fresh token")
	}
}

func TestPublicRoutesIgnoreStaleCookie(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")
	jwt, _ := f.login(t, "a@x.com", "p1")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: jwt})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz with leftover cookie: status = %d, want 200", rec.Code)
	}

	body := strings.NewReader(`{"email":"b@x.com","password":"p2"}`)
	req = httptest.NewRequest(http.MethodPost, "/accounts", body)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: jwt})
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("register with leftover cookie: status = %d, want 201", rec.Code)
	}
}

func TestLogin_NonPositiveLifetime(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")

	for _, lifetime := range []string{"0", "-5"} {
		body := strings.NewReader(`{"email":"a@x.com","password":"p1","lifetime":` + lifetime + `}`)
		req := httptest.NewRequest(http.MethodPost, "/auth", body)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("lifetime %s: status = %d, want 400", lifetime, rec.Code)
		}
	}
	if len(f.sessions.byKey) != 0 {
		t.Error("rejected login must not create a session row")
	}
}

func TestAuth_HeaderToken(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	req := httptest.NewRequest(http.MethodGet, "/accounts?csrf="+csrf, nil)
	req.Header.Set("Authorization", "Bearer "+jwt)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var accounts []accountdomain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("len(accounts) = %d, want 1", len(accounts))
	}
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t, nil)
	a := f.register(t, "a@x.com", "p1")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	req := httptest.NewRequest(http.MethodGet, "/accounts/"+a.ID+"?csrf="+csrf, nil)
	req.Header.Set("Authorization", "Bearer "+jwt)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/accounts/missing?csrf="+csrf, nil)
	req.Header.Set("Authorization", "Bearer "+jwt)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing account: status = %d, want 404", rec.Code)
	}
}

func TestAuth_CookieToken(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	req := httptest.NewRequest(http.MethodGet, "/accounts?csrf="+csrf, nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: jwt})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuth_HeaderWinsOverCookie(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	req := httptest.NewRequest(http.MethodGet, "/accounts?csrf="+csrf, nil)
	req.Header.Set("Authorization", jwt)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "garbage"})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; header token should take precedence", rec.Code)
	}
}

func TestAuth_ForgedToken(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/accounts?csrf=whatever", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUpdateAccount_SelfOnly(t *testing.T) {
	f := newFixture(t, nil)
	a := f.register(t, "a@x.com", "p1")
	b := f.register(t, "b@x.com", "p2")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	do := func(id, email string) *httptest.ResponseRecorder {
		body := strings.NewReader(`{"email":"` + email + `"}`)
		req := httptest.NewRequest(http.MethodPatch, "/accounts/"+id+"?csrf="+csrf, body)
		req.Header.Set("Authorization", "Bearer "+jwt)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(b.ID, "evil@x.com"); rec.Code != http.StatusUnauthorized {
		t.Errorf("update other account: status = %d, want 401", rec.Code)
	}
	rec := do(a.ID, "new@x.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("update own account: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated accountdomain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Email != "new@x.com" {
		t.Errorf("email = %q, want new@x.com", updated.Email)
	}
}

func TestDeleteAccount_SelfOnly(t *testing.T) {
	f := newFixture(t, nil)
	a := f.register(t, "a@x.com", "p1")
	b := f.register(t, "b@x.com", "p2")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	req := httptest.NewRequest(http.MethodDelete, "/accounts/"+b.ID+"?csrf="+csrf, nil)
	req.Header.Set("Authorization", "Bearer "+jwt)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("delete other account: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/accounts/"+a.ID+"?csrf="+csrf, nil)
	req.Header.Set("Authorization", "Bearer "+jwt)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete own account: status = %d", rec.Code)
	}
	if _, ok := f.accounts.byID[a.ID]; ok {
		t.Error("account should be removed")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")

	body := strings.NewReader(`{"email":"a@x.com","password":"p2"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRegister_NeverLeaksPasswordHash(t *testing.T) {
	f := newFixture(t, nil)
	body := strings.NewReader(`{"email":"a@x.com","password":"p1"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "argon2id") {
		t.Error("response body must not contain the password hash")
	}
}

func TestRevoke_InvalidatesSessionAndClearsCookie(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	req := httptest.NewRequest(http.MethodDelete, "/session?csrf="+csrf, nil)
	req.Header.Set("Authorization", "Bearer "+jwt)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	for _, s := range f.sessions.byKey {
		if !s.Invalidated {
			t.Error("session row should be invalidated")
		}
	}
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("jwt cookie should be cleared")
	}
}

func TestListAuthEvents(t *testing.T) {
	f := newFixture(t, nil)
	a := f.register(t, "a@x.com", "p1")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	f.events.events = []*auditdomain.Event{
		{ID: "e1", AccountID: a.ID, Action: auditdomain.ActionLoginSuccess},
		{ID: "e2", AccountID: "someone-else", Action: auditdomain.ActionLoginFailure},
		{ID: "e3", AccountID: a.ID, Action: auditdomain.ActionSessionRevoked},
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/events?csrf="+csrf, nil)
	req.Header.Set("Authorization", "Bearer "+jwt)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var events []auditdomain.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want only the caller's 2", len(events))
	}
	if events[0].ID != "e3" {
		t.Errorf("events[0].ID = %q, want newest first (e3)", events[0].ID)
	}

	// Without a session the trail is not reachable.
	req = httptest.NewRequest(http.MethodGet, "/auth/events", nil)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", rec.Code)
	}
}

func TestListAuthEvents_BadPagination(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "a@x.com", "p1")
	jwt, csrf := f.login(t, "a@x.com", "p1")

	for _, q := range []string{"limit=zero", "limit=0", "offset=-1"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/events?csrf="+csrf+"&"+q, nil)
		req.Header.Set("Authorization", "Bearer "+jwt)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestHealthz_FailingCheck(t *testing.T) {
	f := newFixture(t, map[string]HealthCheck{
		"db": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

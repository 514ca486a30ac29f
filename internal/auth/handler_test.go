package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/machinemu/machinemu/internal/auth"
	"github.com/machinemu/machinemu/internal/platform/httpx"
	"github.com/machinemu/machinemu/internal/rbac"
	_ "github.com/machinemu/machinemu/testing"
)

type stubRepo struct {
	users  map[string]*auth.User
	nextID int64
}

func newStubRepo(users ...*auth.User) *stubRepo {
	repo := &stubRepo{users: map[string]*auth.User{}, nextID: 100}
	for _, u := range users {
		repo.users[u.UserName] = u
	}
	return repo
}

func (s *stubRepo) FindByUserName(ctx context.Context, userName string) (*auth.User, error) {
	if u, ok := s.users[userName]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", userName, httpx.ErrNotFound)
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
}

func (s *stubRepo) Create(ctx context.Context, userName, passwordHash string) (*auth.User, error) {
	if _, ok := s.users[userName]; ok {
		return nil, fmt.Errorf("user name %q: %w", userName, httpx.ErrDuplicate)
	}
	s.nextID++
	u := &auth.User{ID: s.nextID, UserName: userName, PasswordHash: passwordHash}
	s.users[userName] = u
	return u, nil
}

// flakyRepo fails every call with err while it is set, otherwise delegates.
type flakyRepo struct {
	inner *stubRepo
	err   error
}

func (f *flakyRepo) FindByUserName(ctx context.Context, userName string) (*auth.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.inner.FindByUserName(ctx, userName)
}

func (f *flakyRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.inner.FindByID(ctx, id)
}

func (f *flakyRepo) Create(ctx context.Context, userName, passwordHash string) (*auth.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.inner.Create(ctx, userName, passwordHash)
}

type stubResolver struct {
	roles       []string
	permissions []string
}

func (s stubResolver) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.permissions, nil
}

func (s stubResolver) RolesOf(ctx context.Context, userID int64) ([]string, error) {
	return s.roles, nil
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hash)
}

func newRouter(t *testing.T, repo auth.Repository, resolver auth.PermissionResolver, limiter *auth.LoginLimiter) (chi.Router, *auth.TokenManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenManager("test-secret", "machinemu", "machinemu-api", time.Hour)
	handler := auth.NewHandler(logger, auth.NewService(repo, resolver, tokens), limiter)

	guard := rbac.Middleware{Verifier: tokens, Logger: logger}
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		handler.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(guard.Authenticate)
			handler.MountProtectedRoutes(r)
		})
	})
	return r, tokens
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLoginReturnsTokenWithPermissionSnapshot(t *testing.T) {
	repo := newStubRepo(&auth.User{ID: 1, UserName: "admin", PasswordHash: mustHash(t, "admin123")})
	resolver := stubResolver{permissions: []string{"ManageUsers", "ManageRoles"}}
	router, tokens := newRouter(t, repo, resolver, nil)

	res := postJSON(router, "/auth/login", `{"userName":"admin","secret":"admin123"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var body struct {
		Token       string   `json:"token"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Permissions) != 2 {
		t.Fatalf("expected 2 permissions, got %v", body.Permissions)
	}

	identity, err := tokens.Verify(body.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if !identity.HasPermission(rbac.PermManageUsers) {
		t.Fatalf("token missing granted permission")
	}
	if identity.UserID != 1 {
		t.Fatalf("expected subject 1, got %d", identity.UserID)
	}
}

func TestLoginFailureShapeDoesNotLeakAccountExistence(t *testing.T) {
	repo := newStubRepo(&auth.User{ID: 1, UserName: "admin", PasswordHash: mustHash(t, "admin123")})
	router, _ := newRouter(t, repo, stubResolver{}, nil)

	wrongSecret := postJSON(router, "/auth/login", `{"userName":"admin","secret":"wrong-secret"}`)
	unknownUser := postJSON(router, "/auth/login", `{"userName":"ghost","secret":"whatever1"}`)

	if wrongSecret.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongSecret.Code, unknownUser.Code)
	}
	if wrongSecret.Body.String() != unknownUser.Body.String() {
		t.Fatalf("failure bodies differ:\n%s\n%s", wrongSecret.Body.String(), unknownUser.Body.String())
	}
}

func TestLoginMalformedRequestSharesFailureShape(t *testing.T) {
	repo := newStubRepo()
	router, _ := newRouter(t, repo, stubResolver{}, nil)

	short := postJSON(router, "/auth/login", `{"userName":"admin","secret":"x"}`)
	unknown := postJSON(router, "/auth/login", `{"userName":"ghost","secret":"whatever1"}`)

	if short.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for under-length secret, got %d", short.Code)
	}
	if short.Body.String() != unknown.Body.String() {
		t.Fatalf("validation failure leaks a distinct shape")
	}
}

func TestLoginThrottledAfterRepeatedFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := auth.NewLoginLimiter(client, 2, time.Minute)

	repo := newStubRepo(&auth.User{ID: 1, UserName: "admin", PasswordHash: mustHash(t, "admin123")})
	router, _ := newRouter(t, repo, stubResolver{}, limiter)

	for i := 0; i < 2; i++ {
		res := postJSON(router, "/auth/login", `{"userName":"admin","secret":"wrong-secret"}`)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, res.Code)
		}
	}

	res := postJSON(router, "/auth/login", `{"userName":"admin","secret":"admin123"}`)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 even with the right secret, got %d", res.Code)
	}
}

func TestLoginStoreFailureIsNotBadCredentials(t *testing.T) {
	repo := &flakyRepo{inner: newStubRepo(), err: errors.New("dial tcp: connection refused")}
	tokens := auth.NewTokenManager("test-secret", "machinemu", "machinemu-api", time.Hour)
	svc := auth.NewService(repo, stubResolver{}, tokens)

	_, _, err := svc.Login(context.Background(), "admin", "admin123")
	if err == nil {
		t.Fatalf("expected error from failing store")
	}
	if errors.Is(err, httpx.ErrUnauthorized) {
		t.Fatalf("store outage classified as invalid credentials: %v", err)
	}
}

func TestLoginStoreFailureDoesNotCountAgainstAccount(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := auth.NewLoginLimiter(client, 2, time.Minute)

	repo := &flakyRepo{
		inner: newStubRepo(&auth.User{ID: 1, UserName: "admin", PasswordHash: mustHash(t, "admin123")}),
		err:   errors.New("dial tcp: connection refused"),
	}
	router, _ := newRouter(t, repo, stubResolver{}, limiter)

	for i := 0; i < 3; i++ {
		res := postJSON(router, "/auth/login", `{"userName":"admin","secret":"admin123"}`)
		if res.Code != http.StatusInternalServerError {
			t.Fatalf("attempt %d: expected 500 during outage, got %d", i, res.Code)
		}
	}

	// The store recovers; the account must not be throttled by the outage.
	repo.err = nil
	res := postJSON(router, "/auth/login", `{"userName":"admin","secret":"admin123"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 after store recovery, got %d: %s", res.Code, res.Body.String())
	}
}

func TestRegisterCreatesUserWithoutRoles(t *testing.T) {
	repo := newStubRepo()
	router, _ := newRouter(t, repo, stubResolver{}, nil)

	res := postJSON(router, "/auth/register", `{"userName":"newcomer","secret":"secret123"}`)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	var body struct {
		ID       int64  `json:"id"`
		UserName string `json:"userName"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.UserName != "newcomer" || body.ID == 0 {
		t.Fatalf("unexpected body: %+v", body)
	}

	stored := repo.users["newcomer"]
	if stored == nil {
		t.Fatalf("user not stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")); err != nil {
		t.Fatalf("stored secret is not the bcrypt hash: %v", err)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	repo := newStubRepo(&auth.User{ID: 1, UserName: "admin", PasswordHash: "x"})
	router, _ := newRouter(t, repo, stubResolver{}, nil)

	res := postJSON(router, "/auth/register", `{"userName":"admin","secret":"secret123"}`)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestMeReflectsLiveGraph(t *testing.T) {
	repo := newStubRepo(&auth.User{ID: 1, UserName: "admin", PasswordHash: mustHash(t, "admin123")})
	resolver := stubResolver{roles: []string{"Admin"}, permissions: []string{"ManageUsers"}}
	router, tokens := newRouter(t, repo, resolver, nil)

	token, _, err := tokens.Issue(&auth.User{ID: 1, UserName: "admin"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var profile auth.Profile
	if err := json.Unmarshal(res.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The token carried no permissions but introspection resolves live state.
	if len(profile.Permissions) != 1 || profile.Permissions[0] != "ManageUsers" {
		t.Fatalf("expected live permissions, got %v", profile.Permissions)
	}
	if len(profile.Roles) != 1 || profile.Roles[0] != "Admin" {
		t.Fatalf("expected live roles, got %v", profile.Roles)
	}
}

func TestMeForDeletedSubjectIs401(t *testing.T) {
	repo := newStubRepo()
	router, tokens := newRouter(t, repo, stubResolver{}, nil)

	token, _, err := tokens.Issue(&auth.User{ID: 99, UserName: "ghost"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deleted subject, got %d", res.Code)
	}
}

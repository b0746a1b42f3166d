package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/pkg/auth"
	"github.com/rrnagar/marketplace/pkg/cache"
	"github.com/rrnagar/marketplace/pkg/middleware"
	"github.com/rrnagar/marketplace/pkg/session"
)

func whoami(t *testing.T) (http.Handler, *uint, *string) {
	t.Helper()
	var id uint
	var role string
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = middleware.UserIDFromCtx(r.Context())
		role = middleware.RoleFromCtx(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}), &id, &role
}

func TestAuthenticateBearer(t *testing.T) {
	token, err := auth.GenerateToken(5, "supplier")
	require.NoError(t, err)

	h, id, role := whoami(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	middleware.Authenticate(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, uint(5), *id)
	assert.Equal(t, "supplier", *role)
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	h, _, _ := whoami(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	middleware.Authenticate(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateFromSession(t *testing.T) {
	cache.Use(cache.NewMemoryStore())
	opts := session.DefaultOptions()

	// First request logs in and receives the cookie.
	login := session.Middleware(opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session.FromCtx(r.Context()).Login(12, "customer")
		require.NoError(t, session.FromCtx(r.Context()).Save(w))
	}))
	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, opts.CookieName, cookies[0].Name)

	h, id, role := whoami(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	session.Middleware(opts)(middleware.Authenticate(h)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, uint(12), *id)
	assert.Equal(t, "customer", *role)
}

func TestRequireAuth(t *testing.T) {
	h, _, _ := whoami(t)
	rec := httptest.NewRecorder()
	middleware.RequireAuth(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestThrottle(t *testing.T) {
	l := cache.NewMemoryLimiter("test:")
	h := middleware.Throttle(l, middleware.ByIP, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRecovery(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	opts := middleware.CORSOptions{AllowedOrigins: []string{"http://localhost:5173"}, AllowCredentials: true}
	h := middleware.CORS(opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octabyte/bm-session/bootstrap"
	"github.com/octabyte/bm-session/enums"
	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/store"
	sessionctx "github.com/octabyte/bm-session/utils/context"
)

type stubBootstrapper struct {
	result bootstrap.Result
	err    error
}

func (s stubBootstrapper) Bootstrap(context.Context) (bootstrap.Result, error) {
	return s.result, s.err
}

func serve(e *echo.Echo, method, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func gateServer(result bootstrap.Result, err error) *echo.Echo {
	e := echo.New()
	e.Use(SessionGate(GateConfig{
		Bootstrapper: func(echo.Context) (Bootstrapper, error) {
			return stubBootstrapper{result: result, err: err}, nil
		},
		Skipper: func(c echo.Context) bool { return c.Request().URL.Path == "/healthz" },
	}))
	handler := func(c echo.Context) error {
		user, _ := sessionctx.UserFromContext(c.Request().Context())
		if user != nil {
			return c.String(http.StatusOK, user.Email)
		}
		return c.String(http.StatusOK, "ok")
	}
	for _, path := range []string{"/login", "/onboarding", "/onboarding/step/2", "/billing/checkout", "/dashboard", "/projects", "/healthz"} {
		e.GET(path, handler)
	}
	return e
}

func TestSessionGate_Redirects(t *testing.T) {
	tests := []struct {
		name     string
		route    enums.Route
		path     string
		wantCode int
		wantLoc  string
	}{
		{"login from dashboard", enums.RouteLogin, "/dashboard", http.StatusFound, "/login"},
		{"login page passes", enums.RouteLogin, "/login", http.StatusOK, ""},
		{"onboarding from projects", enums.RouteOnboarding, "/projects", http.StatusFound, "/onboarding"},
		{"onboarding sub page passes", enums.RouteOnboarding, "/onboarding/step/2", http.StatusOK, ""},
		{"checkout from dashboard", enums.RouteBillingCheckout, "/dashboard", http.StatusFound, "/billing/checkout"},
		{"entitled anywhere", enums.RouteDashboard, "/projects", http.StatusOK, ""},
		{"entitled away from login", enums.RouteDashboard, "/login", http.StatusFound, "/dashboard"},
		{"entitled away from checkout", enums.RouteDashboard, "/billing/checkout", http.StatusFound, "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := gateServer(bootstrap.Result{Route: tt.route}, nil)
			rec := serve(e, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLoc, rec.Header().Get(echo.HeaderLocation))
		})
	}
}

func TestSessionGate_PutsUserInContext(t *testing.T) {
	e := gateServer(bootstrap.Result{Route: enums.RouteDashboard, User: &models.User{Email: "ana@example.com"}}, nil)

	rec := serve(e, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana@example.com", rec.Body.String())
}

func TestSessionGate_AbortedBootstrap(t *testing.T) {
	e := gateServer(bootstrap.Result{}, context.DeadlineExceeded)

	rec := serve(e, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionGate_Skipper(t *testing.T) {
	e := gateServer(bootstrap.Result{}, errors.New("never called"))

	rec := serve(e, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetTokenInContext(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*http.Request)
		want       string
		wantSource string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set(Authorization, "Bearer abc") }, "abc", TokenSourceHeader},
		{"lowercase bearer", func(r *http.Request) { r.Header.Set(Authorization, "bearer abc") }, "abc", TokenSourceHeader},
		{"raw header", func(r *http.Request) { r.Header.Set(Authorization, "abc") }, "abc", TokenSourceHeader},
		{"empty bearer falls back to cookie", func(r *http.Request) {
			r.Header.Set(Authorization, "Bearer ")
			r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "xyz"})
		}, "xyz", TokenSourceCookie},
		{"authorization cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: Authorization, Value: "Bearer xyz"}) }, "xyz", TokenSourceCookie},
		{"access token cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "xyz"}) }, "xyz", TokenSourceCookie},
		{"none", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(SetTokenInContext())
			e.GET("/", func(c echo.Context) error {
				token, source := RequestToken(c)
				assert.Equal(t, token, sessionctx.TokenFromContext(c.Request().Context()))
				assert.Equal(t, tt.wantSource, source)
				return c.String(http.StatusOK, token)
			})

			rec := serve(e, http.MethodGet, "/", tt.mutate)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestSetSessionInContext(t *testing.T) {
	tokens := store.NewMemoryStoreWithSession(models.Session{
		AccessToken: "stored",
		User:        &models.User{ID: 5, Tenant: &models.Tenant{ID: 6}},
	})

	e := echo.New()
	e.Use(SetSessionInContext(func(echo.Context) (store.TokenStore, error) { return tokens, nil }))
	e.GET("/", func(c echo.Context) error {
		user, ok := sessionctx.UserFromContext(c.Request().Context())
		require.True(t, ok)
		assert.Equal(t, uint64(6), user.TenantID())
		assert.Equal(t, "stored", sessionctx.TokenFromContext(c.Request().Context()))
		assert.Same(t, user, c.Get(SessionUserKey))
		return c.NoContent(http.StatusNoContent)
	})

	rec := serve(e, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSetSessionInContext_StoreError(t *testing.T) {
	e := echo.New()
	e.Use(SetSessionInContext(func(echo.Context) (store.TokenStore, error) { return nil, errors.New("redis down") }))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := serve(e, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTracing(t *testing.T) {
	e := echo.New()
	e.Use(Tracing("bm-session-test", nil))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := serve(e, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/octabyte/bm-session/bootstrap"
	"github.com/octabyte/bm-session/enums"
	"github.com/octabyte/bm-session/otel/logger"
	sessionctx "github.com/octabyte/bm-session/utils/context"
)

// Bootstrapper is satisfied by *bootstrap.Bootstrapper.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) (bootstrap.Result, error)
}

// BootstrapperFactory builds the bootstrapper for one request, usually over
// a per-request token store.
type BootstrapperFactory func(c echo.Context) (Bootstrapper, error)

type GateConfig struct {
	Skipper echomw.Skipper
	// Bootstrapper is required.
	Bootstrapper BootstrapperFactory
	// Paths maps each route to the page it lives on. Missing entries use
	// DefaultPaths.
	Paths map[enums.Route]string
	// RedirectCode defaults to 302.
	RedirectCode int
}

var DefaultPaths = map[enums.Route]string{
	enums.RouteLogin:           "/login",
	enums.RouteOnboarding:      "/onboarding",
	enums.RouteBillingCheckout: "/billing/checkout",
	enums.RouteDashboard:       "/dashboard",
}

// SessionGate runs the session bootstrap for every request and redirects to
// the page of the decided route. Requests already on that page pass
// through; entitled sessions pass through anywhere except the login,
// onboarding and checkout pages. An aborted bootstrap yields 503.
func SessionGate(cfg GateConfig) echo.MiddlewareFunc {
	if cfg.Bootstrapper == nil {
		panic("middleware: SessionGate requires a bootstrapper factory")
	}
	if cfg.Skipper == nil {
		cfg.Skipper = echomw.DefaultSkipper
	}
	if cfg.RedirectCode == 0 {
		cfg.RedirectCode = http.StatusFound
	}
	paths := make(map[enums.Route]string, len(DefaultPaths))
	for route, path := range DefaultPaths {
		paths[route] = path
	}
	for route, path := range cfg.Paths {
		paths[route] = path
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			b, err := cfg.Bootstrapper(c)
			if err != nil {
				logger.ErrorCtx(c.Request().Context(), "failed to build session bootstrapper", err)
				return echo.NewHTTPError(http.StatusInternalServerError)
			}

			result, err := b.Bootstrap(c.Request().Context())
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session check did not complete").SetInternal(err)
			}

			c.Set(SessionRouteKey, string(result.Route))
			if result.User != nil {
				c.Set(SessionUserKey, result.User)
				c.SetRequest(c.Request().WithContext(sessionctx.WithUser(c.Request().Context(), result.User)))
			}

			target := paths[result.Route]
			current := c.Request().URL.Path
			if allowed(result.Route, current, target, paths) {
				return next(c)
			}

			logger.DebugCtx(c.Request().Context(), "redirecting session",
				zap.String("from", current),
				zap.String("to", target),
				zap.String("reason", string(result.Reason)),
			)
			return c.Redirect(cfg.RedirectCode, target)
		}
	}
}

func allowed(route enums.Route, current, target string, paths map[enums.Route]string) bool {
	if onPath(current, target) {
		return true
	}
	if route != enums.RouteDashboard {
		return false
	}
	for r, path := range paths {
		if r != enums.RouteDashboard && onPath(current, path) {
			return false
		}
	}
	return true
}

func onPath(current, path string) bool {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return current == "/"
	}
	return current == path || strings.HasPrefix(current, path+"/")
}

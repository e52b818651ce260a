package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/octabyte/bm-session/otel/logger"
	"github.com/octabyte/bm-session/store"
	sessionctx "github.com/octabyte/bm-session/utils/context"
)

// StoreFactory returns the token store of the session behind a request.
type StoreFactory func(c echo.Context) (store.TokenStore, error)

// SetSessionInContext loads the stored session and exposes its cached user
// under SessionUserKey and in the request context. The cached profile may
// be stale; SessionGate replaces it with the fresh one.
func SetSessionInContext(stores StoreFactory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokens, err := stores(c)
			if err != nil {
				logger.ErrorCtx(c.Request().Context(), "failed to open session store", err)
				return next(c)
			}

			ctx := c.Request().Context()
			session, err := tokens.Get(ctx)
			if err != nil {
				logger.ErrorCtx(ctx, "failed to read session", err)
				return next(c)
			}

			if session.AccessToken != "" && sessionctx.TokenFromContext(ctx) == "" {
				ctx = sessionctx.WithToken(ctx, session.AccessToken)
			}
			if session.User != nil {
				ctx = sessionctx.WithUser(ctx, session.User)
				c.Set(SessionUserKey, session.User)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	sessionctx "github.com/octabyte/bm-session/utils/context"
)

// SetTokenInContext extracts the bearer token from the Authorization header,
// falling back to the Authorization and access_token cookies. The raw token
// is stored under TokenKey and in the request context, and its origin under
// TokenSourceKey.
func SetTokenInContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// First, look in the request header for the Authorization key
			token := c.Request().Header.Get(Authorization)
			source := TokenSourceHeader

			// If not present, look in cookies
			if stripBearer(token) == "" {
				token, source = "", TokenSourceCookie
				for _, name := range []string{Authorization, TokenCookie} {
					if cookie, err := c.Cookie(name); err == nil && cookie.Value != "" {
						token = cookie.Value
						break
					}
				}
			}

			token = stripBearer(token)
			if token == "" {
				return next(c)
			}

			c.Set(TokenKey, token)
			c.Set(TokenSourceKey, source)
			c.SetRequest(c.Request().WithContext(sessionctx.WithToken(c.Request().Context(), token)))
			return next(c)
		}
	}
}

// RequestToken returns the token SetTokenInContext extracted and where it was
// found. token is empty when the request carried none.
func RequestToken(c echo.Context) (token, source string) {
	token, _ = c.Get(TokenKey).(string)
	source, _ = c.Get(TokenSourceKey).(string)
	return token, source
}

func stripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(token[len(bearerPrefix):])
	}
	return token
}

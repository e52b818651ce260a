package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing instruments requests with otelecho and adds route, session route
// and status attributes to the server span.
func Tracing(serviceName string, skipper echomw.Skipper) echo.MiddlewareFunc {
	var opts []otelecho.Option
	if skipper != nil {
		opts = append(opts, otelecho.WithSkipper(skipper))
	}
	base := otelecho.Middleware(serviceName, opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// Attributes are set inside the otelecho span, before it ends.
		return base(func(c echo.Context) error {
			err := next(c)

			span := trace.SpanFromContext(c.Request().Context())
			if !span.IsRecording() {
				return err
			}
			span.SetAttributes(
				attribute.String("http.route", c.Path()),
				attribute.Int("http.status_code", c.Response().Status),
			)
			if token, ok := c.Get(TokenKey).(string); ok && token != "" {
				span.SetAttributes(attribute.Bool("session.token_present", true))
			}
			if route, ok := c.Get(SessionRouteKey).(string); ok && route != "" {
				span.SetAttributes(attribute.String("session.route", route))
			}
			if err != nil {
				span.SetAttributes(attribute.String("error.message", err.Error()))
			}
			return err
		})
	}
}

package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments stay nil until Init; every Record function is then a no-op.
var (
	apiRequestsTotal   metric.Int64Counter
	apiRequestDuration metric.Float64Histogram
	tokenRefreshTotal  metric.Int64Counter
	sessionRoutesTotal metric.Int64Counter
	entitlementChecks  metric.Int64Counter
	bootstrapDuration  metric.Float64Histogram
)

func Init(serviceName string) error {
	meter := otel.Meter(serviceName)

	var err error

	apiRequestsTotal, err = meter.Int64Counter(
		"session_api_requests_total",
		metric.WithDescription("Total number of backend API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_api_requests_total counter: %w", err)
	}

	apiRequestDuration, err = meter.Float64Histogram(
		"session_api_request_duration_seconds",
		metric.WithDescription("Backend API request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_api_request_duration_seconds histogram: %w", err)
	}

	tokenRefreshTotal, err = meter.Int64Counter(
		"session_token_refresh_total",
		metric.WithDescription("Access token refresh attempts by outcome"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_token_refresh_total counter: %w", err)
	}

	sessionRoutesTotal, err = meter.Int64Counter(
		"session_bootstrap_routes_total",
		metric.WithDescription("Session bootstrap decisions by route and reason"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_bootstrap_routes_total counter: %w", err)
	}

	entitlementChecks, err = meter.Int64Counter(
		"session_entitlement_checks_total",
		metric.WithDescription("Subscription entitlement checks by outcome"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_entitlement_checks_total counter: %w", err)
	}

	bootstrapDuration, err = meter.Float64Histogram(
		"session_bootstrap_duration_seconds",
		metric.WithDescription("Session bootstrap duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_bootstrap_duration_seconds histogram: %w", err)
	}

	return nil
}

func RecordAPIRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	)

	if apiRequestsTotal != nil {
		apiRequestsTotal.Add(ctx, 1, attrs)
	}
	if apiRequestDuration != nil {
		apiRequestDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

func RecordTokenRefresh(ctx context.Context, success bool) {
	if tokenRefreshTotal != nil {
		tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	}
}

func RecordRoute(ctx context.Context, route, reason string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("reason", reason),
	)
	if sessionRoutesTotal != nil {
		sessionRoutesTotal.Add(ctx, 1, attrs)
	}
	if bootstrapDuration != nil {
		bootstrapDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordEntitlementCheck counts one check; outcome is one of entitled,
// not_entitled, error or grace.
func RecordEntitlementCheck(ctx context.Context, outcome string) {
	if entitlementChecks != nil {
		entitlementChecks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/enums"
	"github.com/octabyte/bm-session/events"
	"github.com/octabyte/bm-session/models"
	otellogger "github.com/octabyte/bm-session/otel/logger"
	"github.com/octabyte/bm-session/otel/metrics"
	"github.com/octabyte/bm-session/store"
	sessionctx "github.com/octabyte/bm-session/utils/context"
)

const DefaultTimeout = 20 * time.Second

type Reason string

const (
	ReasonNoToken              Reason = "no_token"
	ReasonAuthRequired         Reason = "auth_required"
	ReasonProfileUnavailable   Reason = "profile_unavailable"
	ReasonOnboardingIncomplete Reason = "onboarding_incomplete"
	ReasonNoActiveSubscription Reason = "no_active_subscription"
	ReasonEntitled             Reason = "entitled"
)

// ProfileFetcher loads the current user from the backend and refreshes the
// cached copy, see auth.Service.Me.
type ProfileFetcher interface {
	Me(ctx context.Context) (*models.User, error)
}

// EntitlementChecker answers the billing gate, see billing.Resolver.
type EntitlementChecker interface {
	HasActiveSubscription(ctx context.Context) bool
}

type Config struct {
	// Timeout bounds one Bootstrap run. Zero means DefaultTimeout, negative
	// disables the bound.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Result is the routing decision. User is the profile the decision was
// based on; nil when routing to login.
type Result struct {
	Route  enums.Route
	Reason Reason
	User   *models.User
	// FromCache is set when the backend profile fetch failed and the cached
	// profile was used instead.
	FromCache bool
}

// Bootstrapper resolves a session to exactly one route: login, onboarding,
// billing checkout or dashboard.
type Bootstrapper struct {
	store       store.TokenStore
	profiles    ProfileFetcher
	entitlement EntitlementChecker
	publisher   events.Publisher
	timeout     time.Duration
}

type Option func(*Bootstrapper)

func WithPublisher(publisher events.Publisher) Option {
	return func(b *Bootstrapper) { b.publisher = publisher }
}

func New(cfg Config, tokens store.TokenStore, profiles ProfileFetcher, entitlement EntitlementChecker, opts ...Option) *Bootstrapper {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	b := &Bootstrapper{
		store:       tokens,
		profiles:    profiles,
		entitlement: entitlement,
		publisher:   events.Nop{},
		timeout:     timeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bootstrap runs the decision chain. It only returns an error when ctx itself
// is cancelled. The run's own timeout is treated like any other backend
// failure: a profile timeout falls back to the cached profile or login and an
// entitlement timeout routes to billing checkout.
func (b *Bootstrapper) Bootstrap(ctx context.Context) (Result, error) {
	start := time.Now()
	runCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	result := b.decide(ctx, runCtx)
	if err := ctx.Err(); err != nil {
		otellogger.WarnCtx(ctx, "session bootstrap aborted", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return Result{}, fmt.Errorf("bootstrap aborted: %w", err)
	}
	if runCtx.Err() != nil {
		otellogger.WarnCtx(ctx, "session bootstrap timed out, using degraded route",
			zap.Duration("timeout", b.timeout),
			zap.String("route", string(result.Route)),
		)
	}

	b.record(ctx, result, time.Since(start))
	return result, nil
}

// decide issues backend calls on runCtx and writes to the store on ctx, so a
// session can still be cleared after the run's deadline.
func (b *Bootstrapper) decide(ctx, runCtx context.Context) Result {
	session, err := b.store.Get(runCtx)
	if err != nil {
		otellogger.ErrorCtx(ctx, "failed to read session, routing to login", err)
		return Result{Route: enums.RouteLogin, Reason: ReasonNoToken}
	}
	if !session.HasAccessToken() {
		return Result{Route: enums.RouteLogin, Reason: ReasonNoToken}
	}

	user, fromCache, result, done := b.profile(ctx, runCtx, session)
	if done {
		return result
	}

	if !user.OnboardingCompleted {
		return Result{Route: enums.RouteOnboarding, Reason: ReasonOnboardingIncomplete, User: user, FromCache: fromCache}
	}

	// The resolver keys its grace period on the user in the context.
	if !b.entitlement.HasActiveSubscription(sessionctx.WithUser(runCtx, user)) {
		return Result{Route: enums.RouteBillingCheckout, Reason: ReasonNoActiveSubscription, User: user, FromCache: fromCache}
	}
	return Result{Route: enums.RouteDashboard, Reason: ReasonEntitled, User: user, FromCache: fromCache}
}

// profile fetches the fresh profile. done reports a terminal login result.
func (b *Bootstrapper) profile(ctx, runCtx context.Context, session *models.Session) (user *models.User, fromCache bool, result Result, done bool) {
	user, err := b.profiles.Me(runCtx)
	if err == nil && user != nil {
		return user, false, Result{}, false
	}
	if ctx.Err() != nil {
		return nil, false, Result{}, true
	}

	if api.IsUnauthorized(err) {
		if !errors.Is(err, api.ErrReauthenticationRequired) {
			if clearErr := b.store.Clear(ctx); clearErr != nil {
				otellogger.ErrorCtx(ctx, "failed to clear session", clearErr)
			}
		}
		return nil, false, Result{Route: enums.RouteLogin, Reason: ReasonAuthRequired}, true
	}

	if session.User != nil {
		otellogger.WarnCtx(ctx, "profile fetch failed, using cached profile", zap.Error(err))
		return session.User, true, Result{}, false
	}
	otellogger.WarnCtx(ctx, "profile fetch failed and no cached profile, routing to login", zap.Error(err))
	return nil, false, Result{Route: enums.RouteLogin, Reason: ReasonProfileUnavailable}, true
}

func (b *Bootstrapper) record(ctx context.Context, result Result, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("route", string(result.Route)),
		zap.String("reason", string(result.Reason)),
		zap.Bool("from_cache", result.FromCache),
		zap.Duration("elapsed", elapsed),
	}
	event := events.Event{
		Type:   events.TypeRouted,
		Route:  string(result.Route),
		Reason: string(result.Reason),
	}
	if result.User != nil {
		fields = append(fields, zap.Uint64("user_id", result.User.ID))
		event.UserID = result.User.ID
		event.TenantID = result.User.TenantID()
	}

	otellogger.InfoCtx(ctx, "session routed", fields...)
	metrics.RecordRoute(ctx, string(result.Route), string(result.Reason), elapsed)
	events.Emit(ctx, b.publisher, event)
}

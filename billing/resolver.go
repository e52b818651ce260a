package billing

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/models"
	otellogger "github.com/octabyte/bm-session/otel/logger"
	"github.com/octabyte/bm-session/otel/metrics"
	sessionctx "github.com/octabyte/bm-session/utils/context"
)

const currentSubscriptionPath = "/billing/subscriptions/me/"

const (
	outcomeEntitled    = "entitled"
	outcomeNotEntitled = "not_entitled"
	outcomeError       = "error"
	outcomeGrace       = "grace"
)

// Requester is the subset of *api.Client used by the billing package.
type Requester interface {
	DoJSON(ctx context.Context, req api.Request, out interface{}) error
	DoList(ctx context.Context, req api.Request, out interface{}) error
}

// EntitlementCache remembers the last definite entitlement answer per
// tenant. Entries expire after the ttl given to Put.
type EntitlementCache interface {
	Put(ctx context.Context, tenantID uint64, entitled bool, ttl time.Duration) error
	Get(ctx context.Context, tenantID uint64) (entitled bool, found bool, err error)
}

// Resolver answers whether the current user may use the product. It fails
// closed: anything but a definite active or trialing subscription is false.
type Resolver struct {
	client   Requester
	cache    EntitlementCache
	graceTTL time.Duration
}

type ResolverOption func(*Resolver)

// WithGracePeriod lets a transient failure reuse a positive answer recorded
// less than ttl ago for the tenant of the user in the context (see
// utils/context.WithUser). Definite answers always overwrite the record.
func WithGracePeriod(cache EntitlementCache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache
		r.graceTTL = ttl
	}
}

func NewResolver(client Requester, opts ...ResolverOption) *Resolver {
	r := &Resolver{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CurrentSubscription returns (nil, nil) when the backend has no
// subscription for the user.
func (r *Resolver) CurrentSubscription(ctx context.Context) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.client.DoJSON(ctx, api.Request{Method: http.MethodGet, Path: currentSubscriptionPath}, &sub)
	if api.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Resolver) HasActiveSubscription(ctx context.Context) bool {
	sub, err := r.CurrentSubscription(ctx)
	if err != nil {
		if r.withinGrace(ctx, err) {
			metrics.RecordEntitlementCheck(ctx, outcomeGrace)
			otellogger.WarnCtx(ctx, "entitlement check failed, using last known good answer", zap.Error(err))
			return true
		}
		metrics.RecordEntitlementCheck(ctx, outcomeError)
		otellogger.WarnCtx(ctx, "entitlement check failed, treating as not subscribed", zap.Error(err))
		return false
	}

	entitled := sub != nil && sub.Status.Entitled()
	r.remember(ctx, entitled)

	if entitled {
		metrics.RecordEntitlementCheck(ctx, outcomeEntitled)
	} else {
		metrics.RecordEntitlementCheck(ctx, outcomeNotEntitled)
	}
	if sub == nil {
		otellogger.DebugCtx(ctx, "no subscription found")
	} else {
		otellogger.DebugCtx(ctx, "subscription resolved", zap.String("status", string(sub.Status)), zap.Bool("entitled", entitled))
	}
	return entitled
}

func (r *Resolver) remember(ctx context.Context, entitled bool) {
	tenantID, ok := r.graceTenant(ctx)
	if !ok {
		return
	}
	if err := r.cache.Put(ctx, tenantID, entitled, r.graceTTL); err != nil {
		otellogger.WarnCtx(ctx, "failed to record entitlement", zap.Error(err))
	}
}

func (r *Resolver) withinGrace(ctx context.Context, err error) bool {
	if !api.IsTransient(err) || ctx.Err() != nil {
		return false
	}
	tenantID, ok := r.graceTenant(ctx)
	if !ok {
		return false
	}
	entitled, found, cacheErr := r.cache.Get(ctx, tenantID)
	if cacheErr != nil {
		otellogger.WarnCtx(ctx, "failed to read entitlement record", zap.Error(cacheErr))
		return false
	}
	return found && entitled
}

func (r *Resolver) graceTenant(ctx context.Context) (uint64, bool) {
	if r.cache == nil || r.graceTTL <= 0 {
		return 0, false
	}
	user, ok := sessionctx.UserFromContext(ctx)
	if !ok || user.TenantID() == 0 {
		return 0, false
	}
	return user.TenantID(), true
}

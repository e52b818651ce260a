package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/auth"
	"github.com/octabyte/bm-session/billing"
	"github.com/octabyte/bm-session/bootstrap"
	"github.com/octabyte/bm-session/config"
	redisdb "github.com/octabyte/bm-session/db/redis"
	"github.com/octabyte/bm-session/enums"
	"github.com/octabyte/bm-session/events"
	"github.com/octabyte/bm-session/interfaces/http/echo/middleware"
	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/onboarding"
	"github.com/octabyte/bm-session/queue"
	"github.com/octabyte/bm-session/store"
	"github.com/octabyte/bm-session/store/cookie"
	redisstore "github.com/octabyte/bm-session/store/redis"
	"github.com/octabyte/bm-session/tenants"
	"github.com/octabyte/bm-session/utils/logger"
)

const requestStoreKey = "bmsession.requestStore"

// Services is the set of session components bound to one token store.
type Services struct {
	Store       store.TokenStore
	Client      *api.Client
	Auth        *auth.Service
	Billing     *billing.Service
	Entitlement *billing.Resolver
	Onboarding  *onboarding.Service
	Tenants     *tenants.Service
	Bootstrap   *bootstrap.Bootstrapper
}

// Factory builds Services from configuration and owns the shared Redis and
// broker connections.
type Factory struct {
	cfg       *config.Config
	keys      store.Keys
	redis     *goredis.Client
	cache     billing.EntitlementCache
	publisher events.Publisher
	memory    *memorySessions
	closers   []func() error
}

func NewFactory(ctx context.Context, cfg *config.Config) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Factory{
		cfg:       cfg,
		keys:      store.NewKeys(cfg.Session.KeyPrefix),
		publisher: events.Nop{},
	}
	if cfg.Session.Store == config.StoreMemory {
		f.memory = newMemorySessions(cfg.Session.MaxMemorySessions, cfg.Session.TTL)
	}

	if cfg.UsesRedis() {
		client, err := redisdb.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		f.redis = client
		f.closers = append(f.closers, client.Close)
	}

	if cfg.Billing.GracePeriod > 0 {
		if f.redis != nil {
			f.cache = redisstore.NewEntitlementCache(f.redis)
		} else {
			f.cache = billing.NewMemoryEntitlementCache()
		}
	}

	if cfg.Events.Enabled {
		conn, err := queue.NewConnection(cfg.Events.Queue)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("connect event broker: %w", err)
		}
		publisher := queue.NewEventPublisher(conn)
		f.publisher = publisher
		f.closers = append(f.closers, publisher.Close, conn.Close)
	}

	return f, nil
}

// Services wires the session components over tokens.
func (f *Factory) Services(tokens store.TokenStore) (*Services, error) {
	client, err := api.New(f.cfg.API, tokens, api.WithPublisher(f.publisher))
	if err != nil {
		return nil, err
	}

	var resolverOpts []billing.ResolverOption
	if f.cache != nil {
		resolverOpts = append(resolverOpts, billing.WithGracePeriod(f.cache, f.cfg.Billing.GracePeriod))
	}

	authService := auth.NewService(client, tokens, auth.WithPublisher(f.publisher))
	resolver := billing.NewResolver(client, resolverOpts...)

	return &Services{
		Store:       tokens,
		Client:      client,
		Auth:        authService,
		Billing:     billing.NewService(client),
		Entitlement: resolver,
		Onboarding:  onboarding.NewService(client, authService, tokens),
		Tenants:     tenants.NewService(client, tenants.WithDomainSuffix(f.cfg.Tenants.DomainSuffix)),
		Bootstrap:   bootstrap.New(f.cfg.Bootstrap, tokens, authService, resolver, bootstrap.WithPublisher(f.publisher)),
	}, nil
}

// StoreFor returns the token store of the session behind the request. Redis
// and memory sessions are identified by the session id cookie, which is
// issued on first use.
//
// A request that authenticates itself, with an Authorization header or with a
// token cookie outside the cookie store, gets a store holding only that
// token for the lifetime of the request. Nothing is persisted and no session
// id is issued; without a refresh token a rejected token routes to login.
func (f *Factory) StoreFor(c echo.Context) (store.TokenStore, error) {
	if tokens, ok := f.requestStore(c); ok {
		return tokens, nil
	}

	switch f.cfg.Session.Store {
	case config.StoreCookie:
		return cookie.New(c, cookie.Config{
			Keys:   f.keys,
			Domain: f.cfg.Session.CookieDomain,
			Secure: f.cfg.Session.CookieSecure,
			MaxAge: f.cfg.Session.TTL,
		}), nil
	case config.StoreRedis:
		if f.redis == nil {
			return nil, errors.New("session: redis store configured without a redis client")
		}
		return redisstore.New(f.redis, f.sessionID(c), f.cfg.Session.TTL, redisstore.WithFields(f.keys)), nil
	default:
		return f.memory.get(f.sessionID(c)), nil
	}
}

func (f *Factory) requestStore(c echo.Context) (store.TokenStore, bool) {
	if tokens, ok := c.Get(requestStoreKey).(store.TokenStore); ok {
		return tokens, true
	}

	token, source := middleware.RequestToken(c)
	if token == "" {
		return nil, false
	}
	if source == middleware.TokenSourceCookie && f.cfg.Session.Store == config.StoreCookie {
		return nil, false
	}

	tokens := store.NewMemoryStoreWithSession(models.Session{AccessToken: token})
	c.Set(requestStoreKey, tokens)
	return tokens, true
}

// ServicesFor is StoreFor followed by Services.
func (f *Factory) ServicesFor(c echo.Context) (*Services, error) {
	tokens, err := f.StoreFor(c)
	if err != nil {
		return nil, err
	}
	return f.Services(tokens)
}

// Gate returns the session gate middleware bound to this factory.
func (f *Factory) Gate(paths map[enums.Route]string, skipper echomw.Skipper) echo.MiddlewareFunc {
	return middleware.SessionGate(middleware.GateConfig{
		Skipper: skipper,
		Paths:   paths,
		Bootstrapper: func(c echo.Context) (middleware.Bootstrapper, error) {
			services, err := f.ServicesFor(c)
			if err != nil {
				return nil, err
			}
			return services.Bootstrap, nil
		},
	})
}

// Middleware returns the request middlewares in order: tracing, token
// extraction, cached session, gate.
func (f *Factory) Middleware(paths map[enums.Route]string, skipper echomw.Skipper) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.Tracing(f.cfg.Otel.ServiceName, skipper),
		middleware.SetTokenInContext(),
		middleware.SetSessionInContext(f.StoreFor),
		f.Gate(paths, skipper),
	}
}

func (f *Factory) Publisher() events.Publisher {
	return f.publisher
}

func (f *Factory) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}

func (f *Factory) sessionID(c echo.Context) string {
	name := f.cfg.Session.IDCookie
	if ck, err := c.Cookie(name); err == nil && ck.Value != "" {
		return ck.Value
	}
	if id, ok := c.Get(name).(string); ok {
		return id
	}

	id := uuid.NewString()
	c.Set(name, id)
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    id,
		Path:     "/",
		Domain:   f.cfg.Session.CookieDomain,
		Secure:   f.cfg.Session.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(f.cfg.Session.TTL.Seconds()),
	})
	logger.LogDebug("issued new session id")
	return id
}

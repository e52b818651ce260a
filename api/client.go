package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/octabyte/bm-session/events"
	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/otel"
	otellogger "github.com/octabyte/bm-session/otel/logger"
	"github.com/octabyte/bm-session/otel/metrics"
	"github.com/octabyte/bm-session/store"
	"github.com/octabyte/bm-session/token"
	"github.com/octabyte/bm-session/utils"
)

const clientName = "backend"

// Request describes one backend call. Public requests carry no bearer token
// and never trigger a refresh.
type Request struct {
	Method string
	Path   string
	Body   interface{}
	Query  map[string]string
	Public bool
}

// Client sends authenticated requests to the backend. A 401 triggers at
// most one token refresh and one retransmission per request.
type Client struct {
	cfg       Config
	http      *resty.Client
	store     store.TokenStore
	publisher events.Publisher
	refreshes singleflight.Group
	now       func() time.Time
}

type Option func(*Client)

func WithPublisher(publisher events.Publisher) Option {
	return func(c *Client) { c.publisher = publisher }
}

// WithHTTPClient swaps the transport, e.g. for an otelhttp wrapped client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = resty.NewWithClient(hc) }
}

func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(cfg Config, tokens store.TokenStore, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, errors.New("api: token store is required")
	}
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:       cfg,
		http:      resty.New(),
		store:     tokens,
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http.
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", cfg.UserAgent).
		OnBeforeRequest(otel.WithTraceHeaders)

	return c, nil
}

func (c *Client) Store() store.TokenStore {
	return c.store
}

func (c *Client) Config() Config {
	return c.cfg
}

// Do sends req and returns the raw response, whatever its status. The only
// errors are transport failures and ErrReauthenticationRequired.
func (c *Client) Do(ctx context.Context, req Request) (*resty.Response, error) {
	if req.Public {
		return c.send(ctx, req, "")
	}

	session, err := c.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	access := session.AccessToken

	if c.cfg.RefreshSkew > 0 && session.RefreshToken != "" && token.IsExpired(access, c.cfg.RefreshSkew, c.now()) {
		refreshed, err := c.refresh(ctx, access)
		switch {
		case errors.Is(err, ErrReauthenticationRequired):
			return nil, err
		case err != nil:
			otellogger.WarnCtx(ctx, "preemptive token refresh failed, sending with current token", zap.Error(err))
		default:
			access = refreshed
		}
	}

	resp, err := c.send(ctx, req, access)
	if err != nil || resp.StatusCode() != http.StatusUnauthorized {
		return resp, err
	}

	refreshed, err := c.refresh(ctx, access)
	if err != nil {
		return nil, err
	}

	resp, err = c.send(ctx, req, refreshed)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		otellogger.WarnCtx(ctx, "request rejected after token refresh, clearing session",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
		)
		return nil, c.invalidate(ctx, errors.New("retried request returned 401"))
	}
	return resp, nil
}

// DoJSON sends req and decodes a 2xx body into out (when non-nil). Non-2xx
// responses become *APIError.
func (c *Client) DoJSON(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return newAPIError(resp.StatusCode(), resp.Body())
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := utils.BytesToStruct(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// DoList is DoJSON for list endpoints, see DecodeList.
func (c *Client) DoList(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return newAPIError(resp.StatusCode(), resp.Body())
	}
	return DecodeList(resp.Body(), out)
}

func (c *Client) send(ctx context.Context, req Request, access string) (*resty.Response, error) {
	ctx, finish := otel.StartHTTPSpan(ctx, c.cfg.ServiceName, clientName, req.Path, req.Method, c.cfg.BaseURL, req.Path)
	start := time.Now()

	r := c.http.R().SetContext(ctx)
	if access != "" {
		r.SetHeader("Authorization", fmt.Sprintf("Bearer %s", access))
	}
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		body, err := utils.StructToBytes(req.Body)
		if err != nil {
			finish(0, err)
			return nil, fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
		r.SetBody(body)
	}

	resp, err := r.Execute(req.Method, req.Path)
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	finish(status, err)
	metrics.RecordAPIRequest(ctx, req.Method, req.Path, status, time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	return resp, nil
}

// refresh exchanges the refresh token for a new access token. stale is the
// access token the backend rejected; when the store already holds a
// different one, a concurrent caller refreshed and that token is reused.
//
// Concurrent callers share one exchange. It runs detached from the caller
// that started it, bounded by the client timeout, so a caller going away
// does not fail the others; each caller still returns on its own ctx.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	results := c.refreshes.DoChan("refresh", func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		return c.exchange(refreshCtx, stale)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) exchange(ctx context.Context, stale string) (string, error) {
	session, err := c.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	if session.AccessToken != "" && session.AccessToken != stale {
		return session.AccessToken, nil
	}
	if session.RefreshToken == "" {
		return "", c.invalidate(ctx, errors.New("no refresh token"))
	}

	resp, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   c.cfg.RefreshPath,
		Body:   map[string]string{"refresh": session.RefreshToken},
		Public: true,
	}, "")
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", c.invalidate(ctx, err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return "", c.invalidate(ctx, newAPIError(resp.StatusCode(), resp.Body()))
	}

	access := gjson.GetBytes(resp.Body(), "access").String()
	if access == "" {
		return "", c.invalidate(ctx, errors.New("refresh response carried no access token"))
	}
	pair := models.TokenPair{
		Access:  access,
		Refresh: gjson.GetBytes(resp.Body(), "refresh").String(),
	}
	if pair.Refresh == "" {
		pair.Refresh = session.RefreshToken
	}
	if err := c.store.SetTokens(ctx, pair); err != nil {
		return "", fmt.Errorf("persist refreshed tokens: %w", err)
	}

	metrics.RecordTokenRefresh(ctx, true)
	otellogger.DebugCtx(ctx, "access token refreshed")
	return access, nil
}

// invalidate clears the session after a failed refresh and returns
// ErrReauthenticationRequired wrapping cause.
func (c *Client) invalidate(ctx context.Context, cause error) error {
	metrics.RecordTokenRefresh(ctx, false)

	event := events.Event{Type: events.TypeRefreshFailed, Reason: cause.Error()}
	if session, err := c.store.Get(ctx); err == nil && session.User != nil {
		event.UserID = session.User.ID
		event.TenantID = session.User.TenantID()
	}

	if err := c.store.Clear(ctx); err != nil {
		otellogger.ErrorCtx(ctx, "failed to clear session", err)
	}
	otellogger.WarnCtx(ctx, "session cleared, reauthentication required", zap.String("cause", cause.Error()))
	events.Emit(ctx, c.publisher, event)

	return fmt.Errorf("%w: %v", ErrReauthenticationRequired, cause)
}

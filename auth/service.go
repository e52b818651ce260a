package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/events"
	"github.com/octabyte/bm-session/models"
	otellogger "github.com/octabyte/bm-session/otel/logger"
	"github.com/octabyte/bm-session/store"
	"github.com/octabyte/bm-session/tenants"
)

const (
	loginPath        = "/auth/login/"
	registerPath     = "/auth/register/"
	logoutPath       = "/auth/logout/"
	mePath           = "/auth/me/"
	resetRequestPath = "/password-reset/request/"
	resetConfirmPath = "/password-reset/confirm/"
	checkSlugPath    = "/tenants/check-slug/"
)

var (
	ErrIncompleteAuthResponse = errors.New("auth response is missing tokens")
	ErrEmptySlug              = errors.New("workspace name has no usable slug characters")
)

// Requester is the subset of *api.Client used by the auth service.
type Requester interface {
	DoJSON(ctx context.Context, req api.Request, out interface{}) error
}

// Service wraps the auth endpoints and keeps the token store in sync with
// their results.
type Service struct {
	client    Requester
	store     store.TokenStore
	publisher events.Publisher
	validate  *validator.Validate
}

type Option func(*Service)

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func NewService(client Requester, tokens store.TokenStore, opts ...Option) *Service {
	s := &Service{
		client:    client,
		store:     tokens,
		publisher: events.Nop{},
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*models.AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid login request: %w", err)
	}
	return s.authenticate(ctx, loginPath, req)
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid register request: %w", err)
	}
	return s.authenticate(ctx, registerPath, req)
}

func (s *Service) authenticate(ctx context.Context, path string, body interface{}) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodPost, Path: path, Body: body, Public: true}, &resp); err != nil {
		return nil, err
	}
	if resp.Tokens.Access == "" {
		return nil, ErrIncompleteAuthResponse
	}

	if err := s.store.SetTokens(ctx, resp.Tokens); err != nil {
		return nil, fmt.Errorf("persist tokens: %w", err)
	}
	if err := s.store.SetUser(ctx, &resp.User); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}

	otellogger.InfoCtx(ctx, "user authenticated", zap.Uint64("user_id", resp.User.ID), zap.String("path", path))
	events.Emit(ctx, s.publisher, events.Event{
		Type:     events.TypeLogin,
		UserID:   resp.User.ID,
		TenantID: resp.User.TenantID(),
	})
	return &resp, nil
}

// Logout asks the backend to blacklist the refresh token when a full pair
// is stored, then always clears the local session.
func (s *Service) Logout(ctx context.Context) error {
	session, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	if session.AccessToken != "" && session.RefreshToken != "" {
		req := api.Request{Method: http.MethodPost, Path: logoutPath, Body: map[string]string{"refresh": session.RefreshToken}}
		if err := s.client.DoJSON(ctx, req, nil); err != nil && !errors.Is(err, api.ErrReauthenticationRequired) {
			otellogger.WarnCtx(ctx, "backend logout failed", zap.Error(err))
		}
	}

	event := events.Event{Type: events.TypeLogout}
	if session.User != nil {
		event.UserID = session.User.ID
		event.TenantID = session.User.TenantID()
	}

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	events.Emit(ctx, s.publisher, event)
	return nil
}

// Me fetches the profile and overwrites the cached copy.
func (s *Service) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodGet, Path: mePath}, &user); err != nil {
		return nil, err
	}
	if err := s.store.SetUser(ctx, &user); err != nil {
		otellogger.WarnCtx(ctx, "failed to cache user profile", zap.Error(err))
	}
	return &user, nil
}

// CurrentUser returns the cached profile, or nil.
func (s *Service) CurrentUser(ctx context.Context) (*models.User, error) {
	session, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	return session.User, nil
}

func (s *Service) IsAuthenticated(ctx context.Context) bool {
	session, err := s.store.Get(ctx)
	return err == nil && session.HasAccessToken()
}

func (s *Service) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid password reset request: %w", err)
	}
	return s.client.DoJSON(ctx, api.Request{Method: http.MethodPost, Path: resetRequestPath, Body: req, Public: true}, nil)
}

func (s *Service) ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirm) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid password reset confirmation: %w", err)
	}
	return s.client.DoJSON(ctx, api.Request{Method: http.MethodPost, Path: resetConfirmPath, Body: req, Public: true}, nil)
}

// SlugAvailability is the answer to a workspace slug check.
type SlugAvailability struct {
	Slug      string `json:"slug"`
	Available bool   `json:"available"`
}

// CheckSlug normalizes a workspace name the same way registration does and
// asks the backend whether the resulting slug is free. It needs no session.
func (s *Service) CheckSlug(ctx context.Context, workspace string) (*SlugAvailability, error) {
	slug := tenants.Slugify(workspace)
	if slug == "" {
		return nil, ErrEmptySlug
	}

	var resp struct {
		Available bool `json:"available"`
	}
	req := api.Request{
		Method: http.MethodGet,
		Path:   checkSlugPath,
		Query:  map[string]string{"slug": slug},
		Public: true,
	}
	if err := s.client.DoJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &SlugAvailability{Slug: slug, Available: resp.Available}, nil
}

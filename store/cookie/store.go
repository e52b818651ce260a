package cookie

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/store"
	"github.com/octabyte/bm-session/utils"
	"github.com/octabyte/bm-session/utils/logger"
)

var _ store.TokenStore = (*Store)(nil)

type Config struct {
	Keys   store.Keys
	Path   string
	Domain string
	Secure bool
	MaxAge time.Duration
}

// Store reads the session from request cookies and writes changes as
// response cookies. Writes are visible to later reads within the same
// request.
type Store struct {
	c   echo.Context
	cfg Config

	mu      sync.Mutex
	session *models.Session
}

func New(c echo.Context, cfg Config) *Store {
	if cfg.Keys == (store.Keys{}) {
		cfg.Keys = store.DefaultKeys()
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &Store{c: c, cfg: cfg}
}

func (s *Store) Get(_ context.Context) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	out := *s.session
	if s.session.User != nil {
		user := *s.session.User
		out.User = &user
	}
	return &out, nil
}

func (s *Store) SetTokens(_ context.Context, tokens models.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	s.session.AccessToken = tokens.Access
	s.session.RefreshToken = tokens.Refresh
	s.write(s.cfg.Keys.AccessToken, tokens.Access)
	s.write(s.cfg.Keys.RefreshToken, tokens.Refresh)
	return nil
}

func (s *Store) SetUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	if user == nil {
		s.session.User = nil
		s.write(s.cfg.Keys.User, "")
		return nil
	}
	data, err := utils.StructToBytes(user)
	if err != nil {
		return err
	}
	copied := *user
	s.session.User = &copied
	s.write(s.cfg.Keys.User, base64.RawURLEncoding.EncodeToString(data))
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = &models.Session{}
	s.write(s.cfg.Keys.AccessToken, "")
	s.write(s.cfg.Keys.RefreshToken, "")
	s.write(s.cfg.Keys.User, "")
	return nil
}

func (s *Store) load() {
	if s.session != nil {
		return
	}
	s.session = &models.Session{
		AccessToken:  s.read(s.cfg.Keys.AccessToken),
		RefreshToken: s.read(s.cfg.Keys.RefreshToken),
	}
	raw := s.read(s.cfg.Keys.User)
	if raw == "" {
		return
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		logger.LogWarnf("discarding undecodable %s cookie: %v", s.cfg.Keys.User, err)
		return
	}
	var user models.User
	if err := utils.BytesToStruct(data, &user); err != nil {
		logger.LogWarnf("discarding unreadable %s cookie: %v", s.cfg.Keys.User, err)
		return
	}
	s.session.User = &user
}

func (s *Store) read(name string) string {
	ck, err := s.c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// write sets the cookie, or expires it when value is empty.
func (s *Store) write(name, value string) {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cfg.Path,
		Domain:   s.cfg.Domain,
		Secure:   s.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	} else if s.cfg.MaxAge > 0 {
		ck.MaxAge = int(s.cfg.MaxAge.Seconds())
	}
	s.c.SetCookie(ck)
}

package store

import (
	"context"
	"sync"

	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/utils"
)

var _ TokenStore = (*MemoryStore)(nil)

// MemoryStore keeps the session in process memory. Users are deep-copied on
// the way in and out so callers cannot mutate the stored profile.
type MemoryStore struct {
	mu      sync.RWMutex
	session models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWithSession seeds the store, mostly for tests.
func NewMemoryStoreWithSession(session models.Session) *MemoryStore {
	s := &MemoryStore{}
	s.session.AccessToken = session.AccessToken
	s.session.RefreshToken = session.RefreshToken
	s.session.User = copyUser(session.User)
	return s
}

func (s *MemoryStore) Get(_ context.Context) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &models.Session{
		AccessToken:  s.session.AccessToken,
		RefreshToken: s.session.RefreshToken,
		User:         copyUser(s.session.User),
	}, nil
}

func (s *MemoryStore) SetTokens(_ context.Context, tokens models.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.AccessToken = tokens.Access
	s.session.RefreshToken = tokens.Refresh
	return nil
}

func (s *MemoryStore) SetUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.User = copyUser(user)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = models.Session{}
	return nil
}

func copyUser(user *models.User) *models.User {
	if user == nil {
		return nil
	}
	var clone models.User
	if err := utils.CloneJSON(user, &clone); err != nil {
		shallow := *user
		return &shallow
	}
	return &clone
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/store"
)

const (
	DefaultMaxMemorySessions = 10000
	defaultMemorySessionTTL  = 24 * time.Hour
)

// memorySessions holds in-process sessions by session id. Entries expire
// after ttl without use and the least recently used entry is dropped once
// size is reached.
type memorySessions struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *memorySession]
}

func newMemorySessions(size int, ttl time.Duration) *memorySessions {
	if size <= 0 {
		size = DefaultMaxMemorySessions
	}
	if ttl <= 0 {
		ttl = defaultMemorySessionTTL
	}
	return &memorySessions{cache: expirable.NewLRU[string, *memorySession](size, nil, ttl)}
}

// get returns the session for id, creating it when missing, and restarts its
// expiry.
func (m *memorySessions) get(id string) *memorySession {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.cache.Get(id)
	if !ok {
		s = &memorySession{MemoryStore: store.NewMemoryStore(), id: id, owner: m}
	}
	m.cache.Add(id, s)
	return s
}

func (m *memorySessions) keep(s *memorySession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(s.id, s)
}

func (m *memorySessions) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(id)
}

func (m *memorySessions) len() int {
	return m.cache.Len()
}

// memorySession leaves the registry when cleared and rejoins it on the next
// token write.
type memorySession struct {
	*store.MemoryStore
	id    string
	owner *memorySessions
}

func (s *memorySession) SetTokens(ctx context.Context, tokens models.TokenPair) error {
	if err := s.MemoryStore.SetTokens(ctx, tokens); err != nil {
		return err
	}
	s.owner.keep(s)
	return nil
}

func (s *memorySession) Clear(ctx context.Context) error {
	err := s.MemoryStore.Clear(ctx)
	s.owner.remove(s.id)
	return err
}

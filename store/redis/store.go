package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	redisdb "github.com/octabyte/bm-session/db/redis"
	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/store"
	"github.com/octabyte/bm-session/utils"
	"github.com/octabyte/bm-session/utils/logger"
)

const DefaultKeyPrefix = "bmsession:"

var _ store.TokenStore = (*Store)(nil)

// Store keeps one session in a Redis hash named <prefix><sessionID>. Every
// write slides the key expiry forward by ttl.
type Store struct {
	client redis.Cmdable
	prefix string
	key    string
	fields store.Keys
	ttl    time.Duration
}

type Option func(*Store)

func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithFields overrides the hash field names, e.g. store.NewKeys("admin_").
func WithFields(keys store.Keys) Option {
	return func(s *Store) { s.fields = keys }
}

func New(client redis.Cmdable, sessionID string, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		fields: store.DefaultKeys(),
		ttl:    ttl,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.key = s.prefix + sessionID
	return s
}

func (s *Store) Key() string {
	return s.key
}

func (s *Store) Get(ctx context.Context) (*models.Session, error) {
	values, err := redisdb.HGetAll(ctx, s.client, s.key)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", s.key, err)
	}

	session := &models.Session{
		AccessToken:  values[s.fields.AccessToken],
		RefreshToken: values[s.fields.RefreshToken],
	}
	if raw := values[s.fields.User]; raw != "" {
		var user models.User
		if err := utils.BytesToStruct([]byte(raw), &user); err != nil {
			// A corrupt profile is treated as absent; it is refetched on bootstrap.
			logger.LogWarnf("discarding unreadable cached user in %s: %v", s.key, err)
		} else {
			session.User = &user
		}
	}
	return session, nil
}

func (s *Store) SetTokens(ctx context.Context, tokens models.TokenPair) error {
	if tokens.Refresh == "" {
		if err := redisdb.HDel(ctx, s.client, s.key, s.fields.RefreshToken); err != nil {
			return fmt.Errorf("write tokens %s: %w", s.key, err)
		}
	}
	values := map[string]interface{}{s.fields.AccessToken: tokens.Access}
	if tokens.Refresh != "" {
		values[s.fields.RefreshToken] = tokens.Refresh
	}
	if err := redisdb.HSetWithTTL(ctx, s.client, s.key, s.ttl, values); err != nil {
		return fmt.Errorf("write tokens %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) SetUser(ctx context.Context, user *models.User) error {
	if user == nil {
		if err := redisdb.HDel(ctx, s.client, s.key, s.fields.User); err != nil {
			return fmt.Errorf("clear user %s: %w", s.key, err)
		}
		return nil
	}
	data, err := utils.StructToBytes(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	values := map[string]interface{}{s.fields.User: string(data)}
	if err := redisdb.HSetWithTTL(ctx, s.client, s.key, s.ttl, values); err != nil {
		return fmt.Errorf("write user %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := redisdb.Del(ctx, s.client, s.key); err != nil {
		return fmt.Errorf("clear session %s: %w", s.key, err)
	}
	return nil
}

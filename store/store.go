package store

import (
	"context"

	"github.com/octabyte/bm-session/models"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	UserKey         = "user"
)

// TokenStore persists one client session: the token pair and the cached
// user profile.
type TokenStore interface {
	// Get returns the stored session. Missing values are left empty; Get
	// never returns a nil session without an error.
	Get(ctx context.Context) (*models.Session, error)
	SetTokens(ctx context.Context, tokens models.TokenPair) error
	SetUser(ctx context.Context, user *models.User) error
	Clear(ctx context.Context) error
}

// Keys are the storage names of the three session values. The admin console
// stores its session under an "admin_" prefix.
type Keys struct {
	AccessToken  string
	RefreshToken string
	User         string
}

func NewKeys(prefix string) Keys {
	return Keys{
		AccessToken:  prefix + AccessTokenKey,
		RefreshToken: prefix + RefreshTokenKey,
		User:         prefix + UserKey,
	}
}

func DefaultKeys() Keys {
	return NewKeys("")
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/store"
)

type StoreTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	ctx    context.Context
}

func (s *StoreTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.ctx = context.Background()
}

func (s *StoreTestSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *StoreTestSuite) TestEmptySession() {
	st := New(s.client, "abc", time.Hour)

	session, err := st.Get(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(session)
	s.False(session.HasAccessToken())
	s.Nil(session.User)
}

func (s *StoreTestSuite) TestRoundTrip() {
	st := New(s.client, "abc", time.Hour)

	s.Require().NoError(st.SetTokens(s.ctx, models.TokenPair{Access: "a1", Refresh: "r1"}))
	s.Require().NoError(st.SetUser(s.ctx, &models.User{ID: 9, Email: "x@example.com", OnboardingCompleted: true}))

	session, err := st.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal("a1", session.AccessToken)
	s.Equal("r1", session.RefreshToken)
	s.Require().NotNil(session.User)
	s.Equal(uint64(9), session.User.ID)
	s.True(session.User.OnboardingCompleted)

	s.Equal("bmsession:abc", st.Key())
	s.Equal(time.Hour, s.mr.TTL(st.Key()))
}

func (s *StoreTestSuite) TestSetTokensWithoutRefreshDropsOldRefresh() {
	st := New(s.client, "abc", time.Hour)

	s.Require().NoError(st.SetTokens(s.ctx, models.TokenPair{Access: "a1", Refresh: "r1"}))
	s.Require().NoError(st.SetTokens(s.ctx, models.TokenPair{Access: "a2"}))

	session, err := st.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal("a2", session.AccessToken)
	s.Empty(session.RefreshToken)
}

func (s *StoreTestSuite) TestClear() {
	st := New(s.client, "abc", time.Hour)
	s.Require().NoError(st.SetTokens(s.ctx, models.TokenPair{Access: "a1", Refresh: "r1"}))

	s.Require().NoError(st.Clear(s.ctx))
	s.False(s.mr.Exists(st.Key()))

	session, err := st.Get(s.ctx)
	s.Require().NoError(err)
	s.Empty(session.AccessToken)
}

func (s *StoreTestSuite) TestCorruptUserIsIgnored() {
	st := New(s.client, "abc", time.Hour)
	s.mr.HSet(st.Key(), "access_token", "a1", "user", "{not json")

	session, err := st.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal("a1", session.AccessToken)
	s.Nil(session.User)
}

func (s *StoreTestSuite) TestCustomPrefixAndFields() {
	st := New(s.client, "abc", 0, WithKeyPrefix("admin:"), WithFields(store.NewKeys("admin_")))
	s.Require().NoError(st.SetTokens(s.ctx, models.TokenPair{Access: "a1"}))

	s.Equal("admin:abc", st.Key())
	s.Equal("a1", s.mr.HGet("admin:abc", "admin_access_token"))
	s.Equal(time.Duration(0), s.mr.TTL("admin:abc"))
}

func (s *StoreTestSuite) TestSessionsAreIsolated() {
	first := New(s.client, "one", time.Hour)
	second := New(s.client, "two", time.Hour)
	s.Require().NoError(first.SetTokens(s.ctx, models.TokenPair{Access: "a1"}))

	session, err := second.Get(s.ctx)
	s.Require().NoError(err)
	s.Empty(session.AccessToken)
}

func (s *StoreTestSuite) TestEntitlementCache() {
	cache := NewEntitlementCache(s.client)

	_, found, err := cache.Get(s.ctx, 3)
	s.Require().NoError(err)
	s.False(found)

	s.Require().NoError(cache.Put(s.ctx, 3, true, time.Minute))
	entitled, found, err := cache.Get(s.ctx, 3)
	s.Require().NoError(err)
	s.True(found)
	s.True(entitled)

	s.mr.FastForward(2 * time.Minute)
	_, found, err = cache.Get(s.ctx, 3)
	s.Require().NoError(err)
	s.False(found)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

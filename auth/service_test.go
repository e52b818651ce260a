package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/events"
	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/store"
)

const authResponse = `{
	"user": {"id": 3, "email": "ana@example.com", "first_name": "Ana", "last_name": "Souza", "role": "admin",
	         "onboarding_completed": false, "onboarding_step": 1, "tenant": {"id": 8, "name": "Acme"}},
	"tokens": {"access": "access-1", "refresh": "refresh-1"}
}`

type call struct {
	path string
	auth string
	body string
}

type ServiceTestSuite struct {
	suite.Suite
	mu       sync.Mutex
	calls    []call
	logout   int
	server   *httptest.Server
	store    *store.MemoryStore
	recorder *events.Recorder
	service  *Service
	ctx      context.Context
}

func (s *ServiceTestSuite) SetupTest() {
	s.calls = nil
	s.logout = http.StatusOK
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	s.store = store.NewMemoryStore()
	s.recorder = &events.Recorder{}
	s.ctx = context.Background()

	client, err := api.New(api.Config{BaseURL: s.server.URL}, s.store)
	s.Require().NoError(err)
	s.service = NewService(client, s.store, WithPublisher(s.recorder))
}

func (s *ServiceTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *ServiceTestSuite) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.calls = append(s.calls, call{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: string(body)})
	logoutStatus := s.logout
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case loginPath, registerPath:
		if gjson.GetBytes(body, "password").String() == "wrong-password" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(authResponse))
	case mePath:
		_, _ = w.Write([]byte(`{"id":3,"email":"ana@example.com","onboarding_completed":true}`))
	case logoutPath:
		w.WriteHeader(logoutStatus)
		_, _ = w.Write([]byte(`{}`))
	case resetRequestPath, resetConfirmPath:
		_, _ = w.Write([]byte(`{"detail":"ok"}`))
	case checkSlugPath:
		if r.URL.Query().Get("slug") == "acme" {
			_, _ = w.Write([]byte(`{"available":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"available":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *ServiceTestSuite) TestLoginPersistsSession() {
	resp, err := s.service.Login(s.ctx, LoginRequest{Email: "ana@example.com", Password: "secret"})
	s.Require().NoError(err)
	s.Equal("access-1", resp.Tokens.Access)

	session, _ := s.store.Get(s.ctx)
	s.Equal("access-1", session.AccessToken)
	s.Equal("refresh-1", session.RefreshToken)
	s.Require().NotNil(session.User)
	s.Equal("Ana Souza", session.User.Name())
	s.True(s.service.IsAuthenticated(s.ctx))

	s.Require().Len(s.calls, 1)
	s.Empty(s.calls[0].auth)

	logins := s.recorder.OfType(events.TypeLogin)
	s.Require().Len(logins, 1)
	s.Equal(uint64(3), logins[0].UserID)
	s.Equal(uint64(8), logins[0].TenantID)
}

func (s *ServiceTestSuite) TestLoginWrongPasswordDoesNotRefresh() {
	_, err := s.service.Login(s.ctx, LoginRequest{Email: "ana@example.com", Password: "wrong-password"})

	var apiErr *api.APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusUnauthorized, apiErr.StatusCode)
	s.Equal("No active account found with the given credentials", apiErr.Message)
	s.Len(s.calls, 1)
	s.False(s.service.IsAuthenticated(s.ctx))
}

func (s *ServiceTestSuite) TestLoginValidation() {
	_, err := s.service.Login(s.ctx, LoginRequest{Email: "not-an-email", Password: "x"})
	s.Error(err)
	s.Empty(s.calls)
}

func (s *ServiceTestSuite) TestRegisterRequiresMatchingPasswords() {
	_, err := s.service.Register(s.ctx, RegisterRequest{
		Email: "ana@example.com", Password: "longenough", PasswordConfirm: "different1",
		FirstName: "Ana", LastName: "Souza",
	})
	s.Error(err)
	s.Empty(s.calls)

	_, err = s.service.Register(s.ctx, RegisterRequest{
		Email: "ana@example.com", Password: "longenough", PasswordConfirm: "longenough",
		FirstName: "Ana", LastName: "Souza", CompanyName: "Acme",
	})
	s.Require().NoError(err)
	s.Equal("Acme", gjson.Get(s.calls[0].body, "company_name").String())
}

func (s *ServiceTestSuite) TestLogoutClearsEvenWhenBackendFails() {
	s.logout = http.StatusInternalServerError
	s.Require().NoError(s.store.SetTokens(s.ctx, models.TokenPair{Access: "a", Refresh: "r"}))
	s.Require().NoError(s.store.SetUser(s.ctx, &models.User{ID: 3}))

	s.Require().NoError(s.service.Logout(s.ctx))

	s.Require().Len(s.calls, 1)
	s.Equal(logoutPath, s.calls[0].path)
	s.Equal("Bearer a", s.calls[0].auth)
	s.Equal("r", gjson.Get(s.calls[0].body, "refresh").String())
	s.False(s.service.IsAuthenticated(s.ctx))

	logouts := s.recorder.OfType(events.TypeLogout)
	s.Require().Len(logouts, 1)
	s.Equal(uint64(3), logouts[0].UserID)
}

func (s *ServiceTestSuite) TestLogoutSkipsBackendWithoutRefreshToken() {
	s.Require().NoError(s.store.SetTokens(s.ctx, models.TokenPair{Access: "a"}))

	s.Require().NoError(s.service.Logout(s.ctx))
	s.Empty(s.calls)
	s.False(s.service.IsAuthenticated(s.ctx))
}

func (s *ServiceTestSuite) TestMeRefreshesCachedUser() {
	s.Require().NoError(s.store.SetTokens(s.ctx, models.TokenPair{Access: "a", Refresh: "r"}))
	s.Require().NoError(s.store.SetUser(s.ctx, &models.User{ID: 3, OnboardingCompleted: false}))

	user, err := s.service.Me(s.ctx)
	s.Require().NoError(err)
	s.True(user.OnboardingCompleted)

	cached, err := s.service.CurrentUser(s.ctx)
	s.Require().NoError(err)
	s.True(cached.OnboardingCompleted)
}

func (s *ServiceTestSuite) TestPasswordReset() {
	s.Require().NoError(s.service.RequestPasswordReset(s.ctx, PasswordResetRequest{Email: "ana@example.com"}))
	s.Require().NoError(s.service.ConfirmPasswordReset(s.ctx, PasswordResetConfirm{
		Token: "t", NewPassword: "newpassword", NewPasswordConfirm: "newpassword",
	}))
	s.Require().Len(s.calls, 2)
	s.Equal(resetRequestPath, s.calls[0].path)
	s.Equal("newpassword", gjson.Get(s.calls[1].body, "new_password_confirm").String())

	err := s.service.ConfirmPasswordReset(s.ctx, PasswordResetConfirm{Token: "t", NewPassword: "newpassword", NewPasswordConfirm: "other-password"})
	s.Error(err)
	s.Len(s.calls, 2)
}

func (s *ServiceTestSuite) TestCheckSlug() {
	taken, err := s.service.CheckSlug(s.ctx, "  ACME ")
	s.Require().NoError(err)
	s.Equal("acme", taken.Slug)
	s.False(taken.Available)

	free, err := s.service.CheckSlug(s.ctx, "Padaria São João")
	s.Require().NoError(err)
	s.Equal("padaria-sao-joao", free.Slug)
	s.True(free.Available)

	s.Require().Len(s.calls, 2)
	s.Equal(checkSlugPath, s.calls[0].path)
	s.Empty(s.calls[0].auth)

	_, err = s.service.CheckSlug(s.ctx, "!!!")
	s.ErrorIs(err, ErrEmptySlug)
	s.Len(s.calls, 2)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

package billing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/store"
)

func newTestClient(t *testing.T, handler http.Handler) (*api.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := store.NewMemoryStoreWithSession(models.Session{AccessToken: "access", RefreshToken: "refresh"})
	client, err := api.New(api.Config{BaseURL: server.URL}, tokens)
	require.NoError(t, err)
	return client, server
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonar-music/sonar/internal/config"
	"github.com/sonar-music/sonar/internal/engine"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{
		DataDir:              t.TempDir(),
		DBMaxConns:           4,
		DefaultAdminUsername: "admin",
		DefaultAdminPassword: "hunter2hunter2",
	}
	e, err := engine.New(ctx, cfg, nil, engine.Options{})
	require.NoError(t, err)
	t.Cleanup(e.Close)

	s := New(e)

	rec := doRequest(t, s, http.MethodPost, "/rpc/UserLogin", `{"username":"admin","password":"hunter2hunter2"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var loginResp struct {
		Result struct {
			Token string `json:"token"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp.Result.Token)

	return s, loginResp.Result.Token
}

func doRequest(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestArtistCreateAndGetRoundTrip(t *testing.T) {
	s, token := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/rpc/ArtistCreate", `{"name":"Aphex Twin"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Result struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Aphex Twin", created.Result.Name)
	assert.NotEmpty(t, created.Result.ID)

	rec = doRequest(t, s, http.MethodPost, "/rpc/ArtistGet", `{"id":"`+created.Result.ID+`"}`, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestArtistGetNotFound(t *testing.T) {
	s, token := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/rpc/ArtistGet", `{"id":"artist_zzzzzz"}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArtistGetRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/rpc/ArtistGet", `{"id":"artist_1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserCreateRequiresAdmin(t *testing.T) {
	s, token := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/rpc/UserCreate", `{"username":"listener","password":"listener1234","is_admin":false}`, token)
	require.Equal(t, http.StatusOK, rec.Code, "the bootstrap admin token must satisfy adminRequired")

	rec = doRequest(t, s, http.MethodPost, "/rpc/UserLogin", `{"username":"listener","password":"listener1234"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listenerLogin struct {
		Result struct {
			Token string `json:"token"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listenerLogin))
	require.NotEmpty(t, listenerLogin.Result.Token)

	rec = doRequest(t, s, http.MethodPost, "/rpc/UserCreate", `{"username":"another","password":"another12345","is_admin":false}`, listenerLogin.Result.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code, "a non-admin token must be rejected by adminRequired")
}

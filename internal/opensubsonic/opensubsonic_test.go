package opensubsonic

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonar-music/sonar/internal/config"
	"github.com/sonar-music/sonar/internal/engine"
	"github.com/sonar-music/sonar/internal/id"
)

const (
	testUsername = "listener"
	testPassword = "listener12345"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{
		DataDir:              t.TempDir(),
		DBMaxConns:           4,
		DefaultAdminUsername: testUsername,
		DefaultAdminPassword: testPassword,
	}
	e, err := engine.New(ctx, cfg, nil, engine.Options{})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return New(e)
}

func doAuthed(s *Server, path string, values url.Values) *httptest.ResponseRecorder {
	values.Set("u", testUsername)
	values.Set("p", testPassword)
	req := httptest.NewRequest(http.MethodGet, "/rest/"+path+"?"+values.Encode(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPingSucceedsWithValidCredentials(t *testing.T) {
	s := newTestServer(t)

	rec := doAuthed(s, "ping", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestPingFailsWithWrongPassword(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/rest/ping?u="+testUsername+"&p=wrong", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "Subsonic errors are 200 with a failed envelope, not an HTTP error status")
	var resp Response
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrorWrongCredentials, resp.Error.Code)
}

func TestPingRespectsJSONFormat(t *testing.T) {
	s := newTestServer(t)

	rec := doAuthed(s, "ping", url.Values{"f": []string{"json"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope map[string]Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "ok", envelope["subsonic-response"].Status)
}

func TestGetArtistsGroupsByFirstLetter(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.engine.Catalog.ArtistCreate(ctx, nil, "Aphex Twin")
	require.NoError(t, err)
	_, err = s.engine.Catalog.ArtistCreate(ctx, nil, "Boards of Canada")
	require.NoError(t, err)

	rec := doAuthed(s, "getArtists", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Artists)
	assert.Len(t, resp.Artists.Index, 2)
	assert.Equal(t, "A", resp.Artists.Index[0].Name)
	assert.Equal(t, "B", resp.Artists.Index[1].Name)
}

func TestStarAndGetStarredRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	artist, err := s.engine.Catalog.ArtistCreate(ctx, nil, "Boards of Canada")
	require.NoError(t, err)
	artistWireID := id.New(id.NamespaceArtist, artist.ID).String()

	rec := doAuthed(s, "star", url.Values{"artistId": []string{artistWireID}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doAuthed(s, "getStarred", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Starred)
	require.Len(t, resp.Starred.Artist, 1)
	assert.Equal(t, "Boards of Canada", resp.Starred.Artist[0].Name)
}

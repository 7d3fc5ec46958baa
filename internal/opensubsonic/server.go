package opensubsonic

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/engine"
	"github.com/sonar-music/sonar/internal/id"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

// Server is the OpenSubsonic collaborator, holding only a reference to
// the engine, mirroring internal/server.Server's "no ambient globals"
// shape.
type Server struct {
	engine *engine.Engine
	log    *zap.Logger
	router *mux.Router
}

// New builds the OpenSubsonic router over an already-running Engine.
func New(e *engine.Engine) *Server {
	s := &Server{engine: e, log: e.Log, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving the OpenSubsonic API on addr until ctx is
// canceled, then shuts down gracefully. Grounded on internal/server's
// ListenAndServe, same fixed timeouts.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// routes registers every endpoint under the "/rest/" prefix, both bare
// ("/rest/ping") and with the legacy ".view" suffix ("/rest/ping.view");
// real clients use either.
func (s *Server) routes() {
	endpoints := map[string]http.HandlerFunc{
		"ping":         s.withAuth(s.handlePing),
		"getLicense":   s.withAuth(s.handleGetLicense),
		"getMusicFolders": s.withAuth(s.handleGetMusicFolders),
		"getArtists":   s.withAuth(s.handleGetArtists),
		"getArtist":    s.withAuth(s.handleGetArtist),
		"getAlbum":     s.withAuth(s.handleGetAlbum),
		"getSong":      s.withAuth(s.handleGetSong),
		"stream":       s.withAuth(s.handleStream),
		"getCoverArt":  s.withAuth(s.handleGetCoverArt),
		"search3":      s.withAuth(s.handleSearch3),
		"getPlaylists": s.withAuth(s.handleGetPlaylists),
		"getPlaylist":  s.withAuth(s.handleGetPlaylist),
		"scrobble":     s.withAuth(s.handleScrobble),
		"star":         s.withAuth(s.handleStar),
		"unstar":       s.withAuth(s.handleUnstar),
		"getStarred":   s.withAuth(s.handleGetStarred),
	}
	for name, handler := range endpoints {
		s.router.HandleFunc("/rest/"+name, handler).Methods(http.MethodGet, http.MethodPost)
		s.router.HandleFunc("/rest/"+name+".view", handler).Methods(http.MethodGet, http.MethodPost)
	}
}

// userIDKey is the context key withAuth stashes the authenticated user's
// internal id under, for handlers to read without re-verifying.
type userIDKeyType struct{}

var userIDKey = userIDKeyType{}

// withAuth implements the Subsonic legacy credential scheme: a plaintext
// "p" password (optionally hex-encoded with an "enc:" prefix) alongside
// "u" the username. Token-based auth (t/s params) is not implemented;
// every client this adapter targets supports the plaintext fallback.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, r, ErrorGeneric, "malformed request")
			return
		}
		username := r.Form.Get("u")
		password := decodePassword(r.Form.Get("p"))
		if username == "" || password == "" {
			writeError(w, r, ErrorWrongCredentials, "missing credentials")
			return
		}
		_, user, err := s.engine.Auth.Login(r.Context(), username, password)
		if err != nil {
			writeError(w, r, ErrorWrongCredentials, "wrong username or password")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next(w, r.WithContext(ctx))
	}
}

func userFromRequest(r *http.Request) int64 {
	uid, _ := r.Context().Value(userIDKey).(int64)
	return uid
}

// decodePassword strips Subsonic's optional "enc:<hex>" password
// obfuscation, a transport-layer nuisance from clients that don't trust
// plain HTTP with a real password.
func decodePassword(p string) string {
	if !strings.HasPrefix(p, "enc:") {
		return p
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(p, "enc:"))
	if err != nil {
		return p
	}
	return string(decoded)
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp *Response) {
	resp.Status = "ok"
	resp.Version = apiVersion
	writeEnvelope(w, r, resp)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	writeEnvelope(w, r, &Response{Status: "failed", Version: apiVersion, Error: &Error{Code: code, Message: message}})
}

// errorCodeFor maps a sonarerr.Kind to the nearest Subsonic error code,
// the OpenSubsonic-adapter analogue of internal/server/response.go's
// statusFor.
func errorCodeFor(err error) int {
	switch {
	case sonarerr.Is(err, sonarerr.KindNotFound):
		return ErrorNotFound
	case sonarerr.Is(err, sonarerr.KindUnauthenticated):
		return ErrorWrongCredentials
	case sonarerr.Is(err, sonarerr.KindPermissionDenied):
		return ErrorNotAuthorized
	default:
		return ErrorGeneric
	}
}

func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, errorCodeFor(err), err.Error())
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, resp *Response) {
	if r.URL.Query().Get("f") == "json" || r.Form.Get("f") == "json" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]*Response{"subsonic-response": resp})
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	_ = enc.Encode(resp)
}

// idParam decodes a query parameter holding a sonar opaque id, enforcing
// its namespace.
func idParam(r *http.Request, param, ns string) (int64, error) {
	s := r.Form.Get(param)
	if s == "" {
		return 0, sonarerr.InvalidArgument(param, "must not be empty")
	}
	parsed, err := id.ParseAs(s, id.Namespace(ns))
	if err != nil {
		return 0, err
	}
	return parsed.Key, nil
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

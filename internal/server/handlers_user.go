package server

import (
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	token, user, err := s.engine.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"token": token, "user": toWireUser(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Auth.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

type userCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req userCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	user, err := s.engine.Auth.CreateUser(r.Context(), req.Username, req.Password, req.IsAdmin)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireUser(user))
}

type idRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	parsed, err := parseIDAs(req.ID, "user")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Catalog.UserDelete(r.Context(), nil, parsed); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	parsed, err := parseIDAs(req.ID, "user")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	user, err := s.engine.Catalog.UserGet(r.Context(), nil, parsed)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireUser(user))
}

// parseIDAs is the handler-layer name for internal/id.ParseAs, kept local
// so every handler file reads "parseIDAs" rather than mixing in the
// lower-level package name.
func parseIDAs(s, ns string) (int64, error) {
	return idParseAs(s, ns)
}

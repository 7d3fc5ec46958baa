package server

import (
	"net/http"

	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/id"
)

// parsePropertyTarget decodes an opaque item_id into the (namespace,
// identifier) pair the property package's raw catalog calls take.
func parsePropertyTarget(s string) (string, int64, error) {
	parsed, err := id.Parse(s)
	if err != nil {
		return "", 0, err
	}
	return string(parsed.Namespace), parsed.Key, nil
}

type propertyListRequest struct {
	ItemID string `json:"item_id"`
}

func (s *Server) handlePropertyList(w http.ResponseWriter, r *http.Request) {
	var req propertyListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	ns, identifier, err := parsePropertyTarget(req.ItemID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	props, err := s.engine.Property.List(r.Context(), nil, ns, identifier)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]wireProperty, len(props))
	for i, p := range props {
		out[i] = toWireProperty(p)
	}
	writeResult(w, out)
}

type wireProperty struct {
	Key    string  `json:"key"`
	Value  string  `json:"value"`
	UserID *string `json:"user_id,omitempty"`
}

func toWireProperty(p catalog.Property) wireProperty {
	w := wireProperty{Key: p.Key, Value: p.Value}
	if p.UserID != nil {
		s := id.New(id.NamespaceUser, *p.UserID).String()
		w.UserID = &s
	}
	return w
}

type propertySetRequest struct {
	ItemID  string `json:"item_id"`
	Key     string `json:"key"`
	Value   string `json:"value"`
	PerUser bool   `json:"per_user,omitempty"`
}

func (s *Server) handlePropertySet(w http.ResponseWriter, r *http.Request) {
	var req propertySetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	ns, identifier, err := parsePropertyTarget(req.ItemID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var userID *int64
	if req.PerUser {
		uid := userFromContext(r.Context())
		userID = &uid
	}
	if err := s.engine.Property.Set(r.Context(), nil, ns, identifier, req.Key, userID, req.Value, false); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

type propertyUnsetRequest struct {
	ItemID  string `json:"item_id"`
	Key     string `json:"key"`
	PerUser bool   `json:"per_user,omitempty"`
}

func (s *Server) handlePropertyUnset(w http.ResponseWriter, r *http.Request) {
	var req propertyUnsetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	ns, identifier, err := parsePropertyTarget(req.ItemID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var userID *int64
	if req.PerUser {
		uid := userFromContext(r.Context())
		userID = &uid
	}
	if err := s.engine.Property.Unset(r.Context(), nil, ns, identifier, req.Key, userID, false); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

type genreAddRequest struct {
	ItemID string `json:"item_id"`
	Genre  string `json:"genre"`
}

func (s *Server) handleGenreAdd(w http.ResponseWriter, r *http.Request) {
	var req genreAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	ns, identifier, err := parsePropertyTarget(req.ItemID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Property.AddGenre(r.Context(), nil, ns, identifier, req.Genre); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handleGenreRemove(w http.ResponseWriter, r *http.Request) {
	var req genreAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	ns, identifier, err := parsePropertyTarget(req.ItemID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Property.RemoveGenre(r.Context(), nil, ns, identifier, req.Genre); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handleGenreList(w http.ResponseWriter, r *http.Request) {
	var req propertyListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	ns, identifier, err := parsePropertyTarget(req.ItemID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	genres, err := s.engine.Property.Genres(r.Context(), nil, ns, identifier)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, genres)
}

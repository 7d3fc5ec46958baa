package server

import (
	"net/http"

	"github.com/sonar-music/sonar/internal/catalog"
)

type playlistCreateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handlePlaylistCreate(w http.ResponseWriter, r *http.Request) {
	var req playlistCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.engine.Playlist.Create(r.Context(), nil, userFromContext(r.Context()), req.Name)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWirePlaylist(p))
}

func (s *Server) handlePlaylistGet(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	pid, err := parseIDAs(req.ID, "playlist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.engine.Playlist.Get(r.Context(), nil, pid)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWirePlaylist(p))
}

type playlistUpdateRequest struct {
	ID      string  `json:"id"`
	Name    *string `json:"name,omitempty"`
	CoverID *string `json:"cover_id,omitempty"`
}

func (s *Server) handlePlaylistUpdate(w http.ResponseWriter, r *http.Request) {
	var req playlistUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	pid, err := parseIDAs(req.ID, "playlist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	nameUpdate := catalog.Unchanged[string]()
	if req.Name != nil {
		nameUpdate = catalog.SetValue(*req.Name)
	}
	coverUpdate, err := coverUpdateFromWire(req.CoverID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.engine.Playlist.Update(r.Context(), nil, userFromContext(r.Context()), pid, nameUpdate, coverUpdate)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWirePlaylist(p))
}

func (s *Server) handlePlaylistDelete(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	pid, err := parseIDAs(req.ID, "playlist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Playlist.Delete(r.Context(), nil, userFromContext(r.Context()), pid); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

type playlistDuplicateRequest struct {
	SourceID string `json:"source_id"`
	NewName  string `json:"new_name"`
}

func (s *Server) handlePlaylistDuplicate(w http.ResponseWriter, r *http.Request) {
	var req playlistDuplicateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	sourceID, err := parseIDAs(req.SourceID, "playlist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.engine.Playlist.Duplicate(r.Context(), nil, userFromContext(r.Context()), sourceID, req.NewName)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWirePlaylist(p))
}

type playlistTrackListRequest struct {
	PlaylistID string `json:"playlist_id"`
	wireListParams
}

func (s *Server) handlePlaylistTrackList(w http.ResponseWriter, r *http.Request) {
	var req playlistTrackListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	pid, err := parseIDAs(req.PlaylistID, "playlist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	rows, err := s.engine.Playlist.TrackList(r.Context(), nil, pid, req.toParams())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]string, len(rows))
	for i, pt := range rows {
		out[i] = wireIDTrack(pt.TrackID)
	}
	writeResult(w, out)
}

type playlistTrackIDsRequest struct {
	PlaylistID string   `json:"playlist_id"`
	TrackIDs   []string `json:"track_ids"`
}

func (s *Server) handlePlaylistTrackInsert(w http.ResponseWriter, r *http.Request) {
	var req playlistTrackIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	pid, trackIDs, err := resolvePlaylistTrackIDs(req.PlaylistID, req.TrackIDs)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Playlist.TrackInsert(r.Context(), nil, userFromContext(r.Context()), pid, trackIDs); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handlePlaylistTrackRemove(w http.ResponseWriter, r *http.Request) {
	var req playlistTrackIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	pid, trackIDs, err := resolvePlaylistTrackIDs(req.PlaylistID, req.TrackIDs)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Playlist.TrackRemove(r.Context(), nil, userFromContext(r.Context()), pid, trackIDs); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handlePlaylistTrackClear(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	pid, err := parseIDAs(req.ID, "playlist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Playlist.TrackClear(r.Context(), nil, userFromContext(r.Context()), pid); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func resolvePlaylistTrackIDs(playlistID string, trackIDs []string) (int64, []int64, error) {
	pid, err := parseIDAs(playlistID, "playlist")
	if err != nil {
		return 0, nil, err
	}
	ids := make([]int64, len(trackIDs))
	for i, t := range trackIDs {
		tid, err := parseIDAs(t, "track")
		if err != nil {
			return 0, nil, err
		}
		ids[i] = tid
	}
	return pid, ids, nil
}

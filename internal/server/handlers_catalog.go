package server

import (
	"net/http"

	"github.com/sonar-music/sonar/internal/catalog"
)

// wireListParams is the JSON rendition of catalog.ListParams; Count is a
// pointer so an absent field defaults per spec.md §4.2 rather than
// clamping to an explicit zero.
type wireListParams struct {
	Offset int  `json:"offset"`
	Count  *int `json:"count,omitempty"`
}

func (p wireListParams) toParams() catalog.ListParams {
	return catalog.ListParams{Offset: p.Offset, Count: p.Count}
}

// --- Artist ---

func (s *Server) handleArtistGet(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	aid, err := parseIDAs(req.ID, "artist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	artist, err := s.engine.Catalog.ArtistGet(r.Context(), nil, aid)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireArtist(artist))
}

func (s *Server) handleArtistList(w http.ResponseWriter, r *http.Request) {
	var req wireListParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	artists, err := s.engine.Catalog.ArtistList(r.Context(), nil, req.toParams())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]wireArtist, len(artists))
	for i, a := range artists {
		out[i] = toWireArtist(a)
	}
	writeResult(w, out)
}

type artistCreateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleArtistCreate(w http.ResponseWriter, r *http.Request) {
	var req artistCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	artist, err := s.engine.Catalog.ArtistCreate(r.Context(), nil, req.Name)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireArtist(artist))
}

type artistUpdateRequest struct {
	ID      string  `json:"id"`
	Name    *string `json:"name,omitempty"`
	CoverID *string `json:"cover_id,omitempty"`
}

func (s *Server) handleArtistUpdate(w http.ResponseWriter, r *http.Request) {
	var req artistUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	aid, err := parseIDAs(req.ID, "artist")
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
	artist, err := s.engine.Catalog.ArtistUpdate(r.Context(), nil, aid, nameUpdate, coverUpdate)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireArtist(artist))
}

func (s *Server) handleArtistDelete(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	aid, err := parseIDAs(req.ID, "artist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Catalog.ArtistDelete(r.Context(), nil, aid); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

// coverUpdateFromWire turns an optional cover-id string into a
// catalog.Update[*int64]: nil means unchanged, "" means clear the cover,
// any other value parses as an image id to set.
func coverUpdateFromWire(coverID *string) (catalog.Update[*int64], error) {
	if coverID == nil {
		return catalog.Unchanged[*int64](), nil
	}
	if *coverID == "" {
		return catalog.SetValue[*int64](nil), nil
	}
	imgID, err := parseIDAs(*coverID, "image")
	if err != nil {
		return catalog.Update[*int64]{}, err
	}
	return catalog.SetValue(&imgID), nil
}

// --- Album ---

func (s *Server) handleAlbumGet(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	aid, err := parseIDAs(req.ID, "album")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	album, err := s.engine.Catalog.AlbumGet(r.Context(), nil, aid)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireAlbum(album))
}

type albumListRequest struct {
	ArtistID string `json:"artist_id"`
	wireListParams
}

func (s *Server) handleAlbumListByArtist(w http.ResponseWriter, r *http.Request) {
	var req albumListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	artistID, err := parseIDAs(req.ArtistID, "artist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	albums, err := s.engine.Catalog.AlbumListByArtist(r.Context(), nil, artistID, req.toParams())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]wireAlbum, len(albums))
	for i, a := range albums {
		out[i] = toWireAlbum(a)
	}
	writeResult(w, out)
}

type albumCreateRequest struct {
	ArtistID string `json:"artist_id"`
	Name     string `json:"name"`
}

func (s *Server) handleAlbumCreate(w http.ResponseWriter, r *http.Request) {
	var req albumCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	artistID, err := parseIDAs(req.ArtistID, "artist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	album, err := s.engine.Catalog.AlbumCreate(r.Context(), nil, artistID, req.Name)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireAlbum(album))
}

type albumUpdateRequest struct {
	ID      string  `json:"id"`
	Name    *string `json:"name,omitempty"`
	CoverID *string `json:"cover_id,omitempty"`
}

func (s *Server) handleAlbumUpdate(w http.ResponseWriter, r *http.Request) {
	var req albumUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	aid, err := parseIDAs(req.ID, "album")
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
	album, err := s.engine.Catalog.AlbumUpdate(r.Context(), nil, aid, nameUpdate, coverUpdate)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireAlbum(album))
}

func (s *Server) handleAlbumDelete(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	aid, err := parseIDAs(req.ID, "album")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Catalog.AlbumDelete(r.Context(), nil, aid); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

// --- Track ---

func (s *Server) handleTrackGet(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	tid, err := parseIDAs(req.ID, "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	track, err := s.engine.Catalog.TrackGet(r.Context(), nil, tid)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireTrack(track))
}

type trackListRequest struct {
	AlbumID string `json:"album_id"`
	wireListParams
}

func (s *Server) handleTrackListByAlbum(w http.ResponseWriter, r *http.Request) {
	var req trackListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	albumID, err := parseIDAs(req.AlbumID, "album")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	tracks, err := s.engine.Catalog.TrackListByAlbum(r.Context(), nil, albumID, req.toParams())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]wireTrack, len(tracks))
	for i, t := range tracks {
		out[i] = toWireTrack(t)
	}
	writeResult(w, out)
}

type trackUpdateRequest struct {
	ID      string  `json:"id"`
	Name    *string `json:"name,omitempty"`
	CoverID *string `json:"cover_id,omitempty"`
}

func (s *Server) handleTrackUpdate(w http.ResponseWriter, r *http.Request) {
	var req trackUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	tid, err := parseIDAs(req.ID, "track")
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
	track, err := s.engine.Catalog.TrackUpdate(r.Context(), nil, tid, nameUpdate, coverUpdate)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireTrack(track))
}

func (s *Server) handleTrackDelete(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	tid, err := parseIDAs(req.ID, "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Catalog.TrackDelete(r.Context(), nil, tid); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

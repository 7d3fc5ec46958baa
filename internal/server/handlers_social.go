package server

import (
	"net/http"
	"time"

	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/id"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

type namespacedIDRequest struct {
	ItemID string `json:"item_id"`
}

// favoriteNamespaces is spec.md §4.9's "item_id's namespace must be one
// of {artist, album, track, playlist}" constraint, enforced here before
// the social package ever sees the identifier.
var favoriteNamespaces = map[id.Namespace]bool{
	id.NamespaceArtist: true, id.NamespaceAlbum: true, id.NamespaceTrack: true, id.NamespacePlaylist: true,
}

func parseFavoritable(s string) (string, int64, error) {
	parsed, err := id.Parse(s)
	if err != nil {
		return "", 0, err
	}
	if !favoriteNamespaces[parsed.Namespace] {
		return "", 0, sonarerr.InvalidArgument("item_id", "must be an artist, album, track, or playlist id")
	}
	return string(parsed.Namespace), parsed.Key, nil
}

func (s *Server) handleFavoriteAdd(w http.ResponseWriter, r *http.Request) {
	var req namespacedIDRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	ns, key, err := parseFavoritable(req.ItemID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Social.FavoriteAdd(r.Context(), nil, userFromContext(r.Context()), ns, key); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handleFavoriteRemove(w http.ResponseWriter, r *http.Request) {
	var req namespacedIDRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	ns, key, err := parseFavoritable(req.ItemID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Social.FavoriteRemove(r.Context(), nil, userFromContext(r.Context()), ns, key); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handleFavoriteList(w http.ResponseWriter, r *http.Request) {
	var req wireListParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	favs, err := s.engine.Social.FavoriteList(r.Context(), nil, userFromContext(r.Context()), req.toParams())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]string, len(favs))
	for i, f := range favs {
		out[i] = id.New(id.Namespace(f.Namespace), f.Identifier).String()
	}
	writeResult(w, out)
}

type pinBatchRequest struct {
	ItemIDs []string `json:"item_ids"`
}

func (s *Server) handlePinSet(w http.ResponseWriter, r *http.Request) {
	var req pinBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	userID := userFromContext(r.Context())
	for _, item := range req.ItemIDs {
		parsed, err := id.Parse(item)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		if err := s.engine.Social.PinAdd(r.Context(), nil, userID, string(parsed.Namespace), parsed.Key); err != nil {
			writeError(w, s.log, err)
			return
		}
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handlePinUnset(w http.ResponseWriter, r *http.Request) {
	var req pinBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	userID := userFromContext(r.Context())
	for _, item := range req.ItemIDs {
		parsed, err := id.Parse(item)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		if err := s.engine.Social.PinRemove(r.Context(), nil, userID, string(parsed.Namespace), parsed.Key); err != nil {
			writeError(w, s.log, err)
			return
		}
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handlePinList(w http.ResponseWriter, r *http.Request) {
	var req wireListParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	pins, err := s.engine.Social.PinList(r.Context(), nil, userFromContext(r.Context()), req.toParams())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]string, len(pins))
	for i, p := range pins {
		out[i] = id.New(id.Namespace(p.Namespace), p.Identifier).String()
	}
	writeResult(w, out)
}

type scrobbleCreateRequest struct {
	TrackID          string `json:"track_id"`
	ListenAt         *int64 `json:"listen_at,omitempty"` // unix seconds; defaults to now
	ListenDurationMs int64  `json:"listen_duration_ms"`
	Device           string `json:"device"`
}

func (s *Server) handleScrobbleCreate(w http.ResponseWriter, r *http.Request) {
	var req scrobbleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	trackID, err := parseIDAs(req.TrackID, "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	listenAt := time.Now()
	if req.ListenAt != nil {
		listenAt = time.Unix(*req.ListenAt, 0)
	}
	sc, err := s.engine.Social.ScrobbleSubmit(r.Context(), nil, userFromContext(r.Context()), trackID, listenAt, req.ListenDurationMs, req.Device)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireScrobble(sc))
}

func (s *Server) handleScrobbleDelete(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	scrobbleID, err := parseIDAs(req.ID, "scrobble")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Social.ScrobbleDelete(r.Context(), nil, scrobbleID); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handleScrobbleList(w http.ResponseWriter, r *http.Request) {
	var req wireListParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	scrobbles, err := s.engine.Social.ScrobbleList(r.Context(), nil, userFromContext(r.Context()), req.toParams())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]wireScrobble, len(scrobbles))
	for i, sc := range scrobbles {
		out[i] = toWireScrobble(sc)
	}
	writeResult(w, out)
}

type subscriptionAddRequest struct {
	MediaType       string  `json:"media_type"`
	ArtistID        *string `json:"artist_id,omitempty"`
	AlbumID         *string `json:"album_id,omitempty"`
	TrackID         *string `json:"track_id,omitempty"`
	PlaylistID      *string `json:"playlist_id,omitempty"`
	ExternalID      *string `json:"external_id,omitempty"`
	IntervalSeconds int64   `json:"interval_seconds"`
	Description     string  `json:"description"`
}

func (s *Server) handleSubscriptionAdd(w http.ResponseWriter, r *http.Request) {
	var req subscriptionAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	artistID, err := optionalRef(req.ArtistID, "artist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	albumID, err := optionalRef(req.AlbumID, "album")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	trackID, err := optionalRef(req.TrackID, "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	playlistID, err := optionalRef(req.PlaylistID, "playlist")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if artistID == nil && albumID == nil && trackID == nil && playlistID == nil && req.ExternalID == nil {
		writeError(w, s.log, sonarerr.InvalidArgument("selector", "at least one of artist_id/album_id/track_id/playlist_id/external_id must be set"))
		return
	}
	sub, err := s.engine.Social.SubscriptionAdd(r.Context(), nil, userFromContext(r.Context()),
		catalog.MediaType(req.MediaType), artistID, albumID, trackID, playlistID, req.ExternalID,
		time.Duration(req.IntervalSeconds)*time.Second, req.Description)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, toWireSubscription(sub))
}

func optionalRef(s *string, ns string) (*int64, error) {
	if s == nil {
		return nil, nil
	}
	v, err := parseIDAs(*s, ns)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Server) handleSubscriptionRemove(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	subID, err := parseIDAs(req.ID, "subscription")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Social.SubscriptionRemove(r.Context(), nil, subID); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

func (s *Server) handleSubscriptionList(w http.ResponseWriter, r *http.Request) {
	var req wireListParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	subs, err := s.engine.Social.SubscriptionList(r.Context(), nil, userFromContext(r.Context()), req.toParams())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]wireSubscription, len(subs))
	for i, sub := range subs {
		out[i] = toWireSubscription(sub)
	}
	writeResult(w, out)
}

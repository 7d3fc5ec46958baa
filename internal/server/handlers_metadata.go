package server

import (
	"context"
	"net/http"

	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/id"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

// buildItemView assembles the ItemView a MetadataProvider sees: the
// entity's current name plus its attached properties, per spec.md §4.11.
func (s *Server) buildItemView(ctx context.Context, kind capability.EntityKind, itemID int64) (capability.ItemView, error) {
	var ns id.Namespace
	var name string
	switch kind {
	case capability.EntityArtist:
		ns = id.NamespaceArtist
		a, err := s.engine.Catalog.ArtistGet(ctx, nil, itemID)
		if err != nil {
			return capability.ItemView{}, err
		}
		name = a.Name
	case capability.EntityAlbum:
		ns = id.NamespaceAlbum
		a, err := s.engine.Catalog.AlbumGet(ctx, nil, itemID)
		if err != nil {
			return capability.ItemView{}, err
		}
		name = a.Name
	case capability.EntityTrack:
		ns = id.NamespaceTrack
		t, err := s.engine.Catalog.TrackGet(ctx, nil, itemID)
		if err != nil {
			return capability.ItemView{}, err
		}
		name = t.Name
	case capability.EntityPlaylist:
		ns = id.NamespacePlaylist
		p, err := s.engine.Playlist.Get(ctx, nil, itemID)
		if err != nil {
			return capability.ItemView{}, err
		}
		name = p.Name
	default:
		return capability.ItemView{}, sonarerr.InvalidArgument("kind", "unknown entity kind")
	}
	props, err := s.engine.Property.List(ctx, nil, string(ns), itemID)
	if err != nil {
		return capability.ItemView{}, err
	}
	propMap := make(map[string]string, len(props))
	for _, p := range props {
		propMap[p.Key] = p.Value
	}
	return capability.ItemView{ID: id.New(ns, itemID).String(), Name: name, Properties: propMap}, nil
}

type metadataFetchRequest struct {
	Kind      string   `json:"kind"`
	ItemID    string   `json:"item_id"`
	Fields    []string `json:"fields,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

func (s *Server) handleMetadataFetch(w http.ResponseWriter, r *http.Request) {
	var req metadataFetchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	kind := capability.EntityKind(req.Kind)
	itemID, err := parseIDAs(req.ItemID, req.Kind)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	view, err := s.buildItemView(r.Context(), kind, itemID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	patch, err := s.engine.Metadata.Fetch(r.Context(), kind, itemID, view, req.Fields, req.Providers)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, patch)
}

type metadataAlbumTracksRequest struct {
	AlbumID   string   `json:"album_id"`
	Fields    []string `json:"fields,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

func (s *Server) handleMetadataAlbumTracks(w http.ResponseWriter, r *http.Request) {
	var req metadataAlbumTracksRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	albumID, err := parseIDAs(req.AlbumID, "album")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	view, err := s.buildItemView(r.Context(), capability.EntityAlbum, albumID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	patches, err := s.engine.Metadata.AlbumTracks(r.Context(), albumID, view, req.Fields, req.Providers)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make(map[string]capability.Patch, len(patches))
	for trackID, patch := range patches {
		out[id.New(id.NamespaceTrack, trackID).String()] = patch
	}
	writeResult(w, out)
}

package server

import (
	"net/http"

	"github.com/sonar-music/sonar/internal/id"
	"github.com/sonar-music/sonar/internal/search"
)

type searchRequest struct {
	Query string   `json:"query"`
	Kinds []string `json:"kinds,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

type wireSearchResult struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

var searchNamespaceByKind = map[search.Kind]id.Namespace{
	search.KindArtist:   id.NamespaceArtist,
	search.KindAlbum:    id.NamespaceAlbum,
	search.KindTrack:    id.NamespaceTrack,
	search.KindPlaylist: id.NamespacePlaylist,
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	kinds := []search.Kind{search.KindArtist, search.KindAlbum, search.KindTrack, search.KindPlaylist}
	if len(req.Kinds) > 0 {
		kinds = make([]search.Kind, len(req.Kinds))
		for i, k := range req.Kinds {
			kinds[i] = search.Kind(k)
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	results, err := s.engine.Search.Search(r.Context(), req.Query, kinds, limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]wireSearchResult, len(results))
	for i, res := range results {
		out[i] = wireSearchResult{Kind: string(res.Kind), ID: id.New(searchNamespaceByKind[res.Kind], res.ID).String(), Name: res.Name}
	}
	writeResult(w, out)
}

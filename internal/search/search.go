// Package search implements spec.md §4.12: a case-insensitive substring
// search over artists, albums, tracks, and playlists, ranked
// exact > prefix > substring and interleaved round-robin across kinds.
// The catalog's *Search methods already return every substring match;
// this package's job is purely the ranking and interleaving spec.md
// describes, layered over those candidate sets.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/sonar-music/sonar/internal/catalog"
)

// Kind is an entity kind selectable in a search request's flags.
type Kind string

const (
	KindArtist   Kind = "artist"
	KindAlbum    Kind = "album"
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
)

// Result is one ranked hit, tagged with its kind so callers can render a
// mixed result list without a type switch on the ID's namespace alone.
type Result struct {
	Kind Kind
	ID   int64
	Name string
}

// Service is the Search service of spec.md §4.12.
type Service struct {
	catalog *catalog.Store
}

// New constructs a Service over an already-open catalog Store.
func New(catalogStore *catalog.Store) *Service {
	return &Service{catalog: catalogStore}
}

// candidateLimit bounds how many substring matches are fetched per kind
// before ranking; large enough that an exact or prefix hit further down
// the alphabet is never starved out by LIMIT before it can be ranked up.
const candidateLimit = 200

// Search lowercases and trims query and matches it as one string (it is
// not split into tokens), ranks matches per selected kind
// by (exact, prefix, substring, then name), and returns up to limit
// results interleaved round-robin across kinds.
func (s *Service) Search(ctx context.Context, query string, kinds []Kind, limit int) ([]Result, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || len(kinds) == 0 || limit <= 0 {
		return nil, nil
	}

	perKind := make(map[Kind][]Result, len(kinds))
	for _, k := range kinds {
		ranked, err := s.rankKind(ctx, k, needle)
		if err != nil {
			return nil, err
		}
		perKind[k] = ranked
	}

	return interleave(kinds, perKind, limit), nil
}

func (s *Service) rankKind(ctx context.Context, kind Kind, needle string) ([]Result, error) {
	names, err := s.fetchCandidates(ctx, kind, needle)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := rank(names[i].Name, needle), rank(names[j].Name, needle)
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(names[i].Name) < strings.ToLower(names[j].Name)
	})
	return names, nil
}

func (s *Service) fetchCandidates(ctx context.Context, kind Kind, needle string) ([]Result, error) {
	params := catalog.ListParams{Count: intPtr(candidateLimit)}
	switch kind {
	case KindArtist:
		rows, err := s.catalog.ArtistSearch(ctx, nil, needle, params)
		if err != nil {
			return nil, err
		}
		out := make([]Result, len(rows))
		for i, r := range rows {
			out[i] = Result{Kind: KindArtist, ID: r.ID, Name: r.Name}
		}
		return out, nil
	case KindAlbum:
		rows, err := s.catalog.AlbumSearch(ctx, nil, needle, params)
		if err != nil {
			return nil, err
		}
		out := make([]Result, len(rows))
		for i, r := range rows {
			out[i] = Result{Kind: KindAlbum, ID: r.ID, Name: r.Name}
		}
		return out, nil
	case KindTrack:
		rows, err := s.catalog.TrackSearch(ctx, nil, needle, params)
		if err != nil {
			return nil, err
		}
		out := make([]Result, len(rows))
		for i, r := range rows {
			out[i] = Result{Kind: KindTrack, ID: r.ID, Name: r.Name}
		}
		return out, nil
	case KindPlaylist:
		rows, err := s.catalog.PlaylistSearch(ctx, nil, needle, params)
		if err != nil {
			return nil, err
		}
		out := make([]Result, len(rows))
		for i, r := range rows {
			out[i] = Result{Kind: KindPlaylist, ID: r.ID, Name: r.Name}
		}
		return out, nil
	default:
		return nil, nil
	}
}

// rank scores name against needle: 0 exact, 1 prefix, 2 substring (the
// only three tiers fetchCandidates's substring query can ever produce).
func rank(name, needle string) int {
	lower := strings.ToLower(name)
	switch {
	case lower == needle:
		return 0
	case strings.HasPrefix(lower, needle):
		return 1
	default:
		return 2
	}
}

// interleave walks kinds round-robin, taking the next-best-ranked result
// from each in turn, until limit results are collected or every kind is
// exhausted.
func interleave(kinds []Kind, perKind map[Kind][]Result, limit int) []Result {
	cursor := make(map[Kind]int, len(kinds))
	out := make([]Result, 0, limit)
	for len(out) < limit {
		progressed := false
		for _, k := range kinds {
			i := cursor[k]
			if i >= len(perKind[k]) {
				continue
			}
			out = append(out, perKind[k][i])
			cursor[k] = i + 1
			progressed = true
			if len(out) == limit {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

func intPtr(n int) *int { return &n }

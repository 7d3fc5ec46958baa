package opensubsonic

import (
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/id"
	"github.com/sonar-music/sonar/internal/search"
)

// pageSize/maxPages bound allArtists's "fetch everything" loop: OpenSubsonic
// clients expect getArtists to return the whole library in one call, but
// internal/catalog only exposes bounded pages. maxPages caps worst-case
// memory on a pathologically large library rather than looping forever.
// The other list handlers (getPlaylists, getStarred, album and playlist
// track lists) read a single page of pageSize rows.
const (
	pageSize = 500
	maxPages = 40
)

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, &Response{})
}

func (s *Server) handleGetLicense(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, &Response{})
}

func (s *Server) handleGetMusicFolders(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, &Response{MusicFolders: &MusicFolders{MusicFolder: []MusicFolder{{ID: 1, Name: "Library"}}}})
}

func allArtists(s *Server, r *http.Request) ([]catalog.Artist, error) {
	var out []catalog.Artist
	for page := 0; page < maxPages; page++ {
		count := pageSize
		batch, err := s.engine.Catalog.ArtistList(r.Context(), nil, catalog.ListParams{Offset: page * pageSize, Count: &count})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < pageSize {
			break
		}
	}
	return out, nil
}

func toSubsonicArtist(a catalog.Artist) Artist {
	out := Artist{ID: id.New(id.NamespaceArtist, a.ID).String(), Name: a.Name, AlbumCount: a.AlbumCount}
	if a.CoverImageID != nil {
		out.CoverArt = id.New(id.NamespaceImage, *a.CoverImageID).String()
	}
	return out
}

func (s *Server) handleGetArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := allArtists(s, r)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	byLetter := map[string][]Artist{}
	for _, a := range artists {
		letter := "#"
		if a.Name != "" {
			letter = strings.ToUpper(string([]rune(a.Name)[0]))
		}
		byLetter[letter] = append(byLetter[letter], toSubsonicArtist(a))
	}
	letters := make([]string, 0, len(byLetter))
	for letter := range byLetter {
		letters = append(letters, letter)
	}
	sort.Strings(letters)
	indexes := make([]ArtistIndex, 0, len(letters))
	for _, letter := range letters {
		indexes = append(indexes, ArtistIndex{Name: letter, Artist: byLetter[letter]})
	}
	writeResponse(w, r, &Response{Artists: &Artists{Index: indexes}})
}

func toSubsonicAlbum(a catalog.Album, artistName string) Album {
	out := Album{
		ID:        id.New(id.NamespaceAlbum, a.ID).String(),
		Name:      a.Name,
		Artist:    artistName,
		ArtistID:  id.New(id.NamespaceArtist, a.ArtistID).String(),
		SongCount: a.TrackCount,
		Duration:  a.TotalDurationMs / 1000,
	}
	if a.CoverImageID != nil {
		out.CoverArt = id.New(id.NamespaceImage, *a.CoverImageID).String()
	}
	return out
}

func (s *Server) handleGetArtist(w http.ResponseWriter, r *http.Request) {
	artistID, err := idParam(r, "id", "artist")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	artist, err := s.engine.Catalog.ArtistGet(r.Context(), nil, artistID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	count := pageSize
	albums, err := s.engine.Catalog.AlbumListByArtist(r.Context(), nil, artistID, catalog.ListParams{Count: &count})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	wireAlbums := make([]Album, len(albums))
	for i, a := range albums {
		wireAlbums[i] = toSubsonicAlbum(a, artist.Name)
	}
	writeResponse(w, r, &Response{Artist: &ArtistDetail{Artist: toSubsonicArtist(artist), Album: wireAlbums}})
}

func toSubsonicSong(t catalog.Track, albumName, artistName string) Song {
	out := Song{
		ID:          id.New(id.NamespaceTrack, t.ID).String(),
		Title:       t.Name,
		Album:       albumName,
		Artist:      artistName,
		AlbumID:     id.New(id.NamespaceAlbum, t.AlbumID).String(),
		Duration:    t.DurationMs / 1000,
		ContentType: "audio/mpeg",
		IsDir:       false,
		Type:        "music",
	}
	if t.CoverImageID != nil {
		out.CoverArt = id.New(id.NamespaceImage, *t.CoverImageID).String()
	}
	return out
}

func (s *Server) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, err := idParam(r, "id", "album")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	album, err := s.engine.Catalog.AlbumGet(r.Context(), nil, albumID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	artist, err := s.engine.Catalog.ArtistGet(r.Context(), nil, album.ArtistID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	count := pageSize
	tracks, err := s.engine.Catalog.TrackListByAlbum(r.Context(), nil, albumID, catalog.ListParams{Count: &count})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	songs := make([]Song, len(tracks))
	for i, t := range tracks {
		songs[i] = toSubsonicSong(t, album.Name, artist.Name)
	}
	wireAlbum := toSubsonicAlbum(album, artist.Name)
	wireAlbum.Song = songs
	writeResponse(w, r, &Response{Album: &wireAlbum})
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	trackID, err := idParam(r, "id", "track")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	track, err := s.engine.Catalog.TrackGet(r.Context(), nil, trackID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	album, err := s.engine.Catalog.AlbumGet(r.Context(), nil, track.AlbumID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	artist, err := s.engine.Catalog.ArtistGet(r.Context(), nil, album.ArtistID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	song := toSubsonicSong(track, album.Name, artist.Name)
	writeResponse(w, r, &Response{Song: &song})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	trackID, err := idParam(r, "id", "track")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	rc, audioRow, err := s.engine.Audio.Stream(r.Context(), nil, trackID, nil)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", audioRow.Mime)
	w.Header().Set("Accept-Ranges", "bytes")
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleGetCoverArt(w http.ResponseWriter, r *http.Request) {
	imageID, err := idParam(r, "id", "image")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	rc, mime, err := s.engine.Image.Download(r.Context(), nil, imageID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", mime)
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleSearch3(w http.ResponseWriter, r *http.Request) {
	query := r.Form.Get("query")
	limit := atoiOr(r.Form.Get("songCount"), 20)
	results, err := s.engine.Search.Search(r.Context(), query, []search.Kind{search.KindArtist, search.KindAlbum, search.KindTrack}, limit)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	out := SearchResult3{}
	for _, res := range results {
		switch res.Kind {
		case search.KindArtist:
			a, err := s.engine.Catalog.ArtistGet(r.Context(), nil, res.ID)
			if err == nil {
				out.Artist = append(out.Artist, toSubsonicArtist(a))
			}
		case search.KindAlbum:
			a, err := s.engine.Catalog.AlbumGet(r.Context(), nil, res.ID)
			if err == nil {
				artist, err := s.engine.Catalog.ArtistGet(r.Context(), nil, a.ArtistID)
				if err == nil {
					out.Album = append(out.Album, toSubsonicAlbum(a, artist.Name))
				}
			}
		case search.KindTrack:
			t, err := s.engine.Catalog.TrackGet(r.Context(), nil, res.ID)
			if err == nil {
				album, err := s.engine.Catalog.AlbumGet(r.Context(), nil, t.AlbumID)
				if err == nil {
					artist, err := s.engine.Catalog.ArtistGet(r.Context(), nil, album.ArtistID)
					if err == nil {
						out.Song = append(out.Song, toSubsonicSong(t, album.Name, artist.Name))
					}
				}
			}
		}
	}
	writeResponse(w, r, &Response{SearchResult3: &out})
}

func (s *Server) playlistSongs(r *http.Request, playlistID int64) ([]Song, error) {
	count := pageSize
	rows, err := s.engine.Playlist.TrackList(r.Context(), nil, playlistID, catalog.ListParams{Count: &count})
	if err != nil {
		return nil, err
	}
	songs := make([]Song, 0, len(rows))
	for _, pt := range rows {
		track, err := s.engine.Catalog.TrackGet(r.Context(), nil, pt.TrackID)
		if err != nil {
			continue
		}
		album, err := s.engine.Catalog.AlbumGet(r.Context(), nil, track.AlbumID)
		if err != nil {
			continue
		}
		artist, err := s.engine.Catalog.ArtistGet(r.Context(), nil, album.ArtistID)
		if err != nil {
			continue
		}
		songs = append(songs, toSubsonicSong(track, album.Name, artist.Name))
	}
	return songs, nil
}

func toSubsonicPlaylist(p catalog.Playlist) Playlist {
	return Playlist{
		ID:        id.New(id.NamespacePlaylist, p.ID).String(),
		Name:      p.Name,
		SongCount: p.TrackCount,
		Duration:  p.TotalDurationMs / 1000,
	}
}

func (s *Server) handleGetPlaylists(w http.ResponseWriter, r *http.Request) {
	userID := userFromRequest(r)
	count := pageSize
	playlists, err := s.engine.Catalog.PlaylistListByOwner(r.Context(), nil, userID, catalog.ListParams{Count: &count})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	out := make([]Playlist, len(playlists))
	for i, p := range playlists {
		out[i] = toSubsonicPlaylist(p)
	}
	writeResponse(w, r, &Response{Playlists: &Playlists{Playlist: out}})
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID, err := idParam(r, "id", "playlist")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	playlist, err := s.engine.Playlist.Get(r.Context(), nil, playlistID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	songs, err := s.playlistSongs(r, playlistID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	out := toSubsonicPlaylist(playlist)
	out.Entry = songs
	writeResponse(w, r, &Response{Playlist: &out})
}

func (s *Server) handleScrobble(w http.ResponseWriter, r *http.Request) {
	trackID, err := idParam(r, "id", "track")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	listenAt := time.Now()
	if ms := r.Form.Get("time"); ms != "" {
		if n := atoiOr(ms, 0); n > 0 {
			listenAt = time.UnixMilli(int64(n))
		}
	}
	userID := userFromRequest(r)
	if _, err := s.engine.Social.ScrobbleSubmit(r.Context(), nil, userID, trackID, listenAt, 0, "opensubsonic"); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeResponse(w, r, &Response{})
}

func (s *Server) handleStar(w http.ResponseWriter, r *http.Request) {
	s.starIDs(w, r, true)
}

func (s *Server) handleUnstar(w http.ResponseWriter, r *http.Request) {
	s.starIDs(w, r, false)
}

func (s *Server) starIDs(w http.ResponseWriter, r *http.Request, star bool) {
	userID := userFromRequest(r)
	ids := append(append(r.Form["id"], r.Form["albumId"]...), r.Form["artistId"]...)
	for _, raw := range ids {
		parsed, err := id.Parse(raw)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		var opErr error
		if star {
			opErr = s.engine.Social.FavoriteAdd(r.Context(), nil, userID, string(parsed.Namespace), parsed.Key)
		} else {
			opErr = s.engine.Social.FavoriteRemove(r.Context(), nil, userID, string(parsed.Namespace), parsed.Key)
		}
		if opErr != nil {
			writeEngineError(w, r, opErr)
			return
		}
	}
	writeResponse(w, r, &Response{})
}

func (s *Server) handleGetStarred(w http.ResponseWriter, r *http.Request) {
	userID := userFromRequest(r)
	count := pageSize
	favs, err := s.engine.Social.FavoriteList(r.Context(), nil, userID, catalog.ListParams{Count: &count})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	out := Starred{}
	for _, f := range favs {
		switch id.Namespace(f.Namespace) {
		case id.NamespaceArtist:
			a, err := s.engine.Catalog.ArtistGet(r.Context(), nil, f.Identifier)
			if err == nil {
				out.Artist = append(out.Artist, toSubsonicArtist(a))
			}
		case id.NamespaceAlbum:
			a, err := s.engine.Catalog.AlbumGet(r.Context(), nil, f.Identifier)
			if err == nil {
				artist, err := s.engine.Catalog.ArtistGet(r.Context(), nil, a.ArtistID)
				if err == nil {
					out.Album = append(out.Album, toSubsonicAlbum(a, artist.Name))
				}
			}
		case id.NamespaceTrack:
			t, err := s.engine.Catalog.TrackGet(r.Context(), nil, f.Identifier)
			if err == nil {
				album, err := s.engine.Catalog.AlbumGet(r.Context(), nil, t.AlbumID)
				if err == nil {
					artist, err := s.engine.Catalog.ArtistGet(r.Context(), nil, album.ArtistID)
					if err == nil {
						out.Song = append(out.Song, toSubsonicSong(t, album.Name, artist.Name))
					}
				}
			}
		}
	}
	writeResponse(w, r, &Response{Starred: &out})
}

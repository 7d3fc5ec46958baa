package server

import (
	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/id"
)

func wireIDTrack(key int64) string { return id.New(id.NamespaceTrack, key).String() }

// idParseAs decodes an opaque external id string, validating its
// namespace, and returns just the internal integer key every catalog
// method actually takes.
func idParseAs(s string, ns string) (int64, error) {
	parsed, err := id.ParseAs(s, id.Namespace(ns))
	if err != nil {
		return 0, err
	}
	return parsed.Key, nil
}

// The wire* types below are the RPC surface's JSON rendition of the
// catalog's internal-integer rows, substituting spec.md §4.3's opaque
// external ids for every foreign key and primary key a client could see.

type wireUser struct {
	ID      string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	AvatarID *string `json:"avatar_id,omitempty"`
}

func toWireUser(u catalog.User) wireUser {
	w := wireUser{ID: id.New(id.NamespaceUser, u.ID).String(), Username: u.Username, IsAdmin: u.IsAdmin}
	if u.AvatarImageID != nil {
		s := id.New(id.NamespaceImage, *u.AvatarImageID).String()
		w.AvatarID = &s
	}
	return w
}

type wireArtist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ListenCount int64   `json:"listen_count"`
	AlbumCount  int64   `json:"album_count"`
	CoverID     *string `json:"cover_id,omitempty"`
}

func toWireArtist(a catalog.Artist) wireArtist {
	w := wireArtist{
		ID:          id.New(id.NamespaceArtist, a.ID).String(),
		Name:        a.Name,
		ListenCount: a.ListenCount,
		AlbumCount:  a.AlbumCount,
	}
	if a.CoverImageID != nil {
		s := id.New(id.NamespaceImage, *a.CoverImageID).String()
		w.CoverID = &s
	}
	return w
}

type wireAlbum struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ArtistID        string  `json:"artist_id"`
	ListenCount     int64   `json:"listen_count"`
	TrackCount      int64   `json:"track_count"`
	TotalDurationMs int64   `json:"total_duration_ms"`
	CoverID         *string `json:"cover_id,omitempty"`
}

func toWireAlbum(a catalog.Album) wireAlbum {
	w := wireAlbum{
		ID:              id.New(id.NamespaceAlbum, a.ID).String(),
		Name:            a.Name,
		ArtistID:        id.New(id.NamespaceArtist, a.ArtistID).String(),
		ListenCount:     a.ListenCount,
		TrackCount:      a.TrackCount,
		TotalDurationMs: a.TotalDurationMs,
	}
	if a.CoverImageID != nil {
		s := id.New(id.NamespaceImage, *a.CoverImageID).String()
		w.CoverID = &s
	}
	return w
}

type wireTrack struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	AlbumID          string  `json:"album_id"`
	ListenCount      int64   `json:"listen_count"`
	DurationMs       int64   `json:"duration_ms"`
	CoverID          *string `json:"cover_id,omitempty"`
	PreferredAudioID *string `json:"preferred_audio_id,omitempty"`
	LyricsKind       *string `json:"lyrics_kind,omitempty"`
}

func toWireTrack(t catalog.Track) wireTrack {
	w := wireTrack{
		ID:          id.New(id.NamespaceTrack, t.ID).String(),
		Name:        t.Name,
		AlbumID:     id.New(id.NamespaceAlbum, t.AlbumID).String(),
		ListenCount: t.ListenCount,
		DurationMs:  t.DurationMs,
	}
	if t.CoverImageID != nil {
		s := id.New(id.NamespaceImage, *t.CoverImageID).String()
		w.CoverID = &s
	}
	if t.PreferredAudioID != nil {
		s := id.New(id.NamespaceAudio, *t.PreferredAudioID).String()
		w.PreferredAudioID = &s
	}
	if t.LyricsKind != nil {
		s := string(*t.LyricsKind)
		w.LyricsKind = &s
	}
	return w
}

type wirePlaylist struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	Name            string  `json:"name"`
	TrackCount      int64   `json:"track_count"`
	TotalDurationMs int64   `json:"total_duration_ms"`
	CoverID         *string `json:"cover_id,omitempty"`
}

func toWirePlaylist(p catalog.Playlist) wirePlaylist {
	w := wirePlaylist{
		ID:              id.New(id.NamespacePlaylist, p.ID).String(),
		OwnerID:         id.New(id.NamespaceUser, p.OwnerID).String(),
		Name:            p.Name,
		TrackCount:      p.TrackCount,
		TotalDurationMs: p.TotalDurationMs,
	}
	if p.CoverImageID != nil {
		s := id.New(id.NamespaceImage, *p.CoverImageID).String()
		w.CoverID = &s
	}
	return w
}

type wireScrobble struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	TrackID          string `json:"track_id"`
	ListenAt         string `json:"listen_at"`
	ListenDurationMs int64  `json:"listen_duration_ms"`
	Device           string `json:"device"`
}

func toWireScrobble(sc catalog.Scrobble) wireScrobble {
	return wireScrobble{
		ID:               id.New(id.NamespaceScrobble, sc.ID).String(),
		UserID:           id.New(id.NamespaceUser, sc.UserID).String(),
		TrackID:          id.New(id.NamespaceTrack, sc.TrackID).String(),
		ListenAt:         sc.ListenAt.Format("2006-01-02T15:04:05Z07:00"),
		ListenDurationMs: sc.ListenDurationMs,
		Device:           sc.Device,
	}
}

type wireSubscription struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	MediaType       string `json:"media_type"`
	IntervalSeconds int64  `json:"interval_seconds"`
	Description     string `json:"description"`
}

func toWireSubscription(sub catalog.Subscription) wireSubscription {
	return wireSubscription{
		ID:              id.New(id.NamespaceSubscription, sub.ID).String(),
		UserID:          id.New(id.NamespaceUser, sub.UserID).String(),
		MediaType:       string(sub.MediaType),
		IntervalSeconds: sub.IntervalSeconds,
		Description:     sub.Description,
	}
}

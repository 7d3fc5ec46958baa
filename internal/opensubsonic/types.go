// Package opensubsonic is the OpenSubsonic HTTP adapter spec.md §6 calls
// out as a collaborator the core's operations must be "sufficient to
// answer": getArtists, getArtist, getAlbum, getSong, stream, getCoverArt,
// search3, getPlaylists/getPlaylist, scrobble, star/unstar, getStarred.
// It never touches the catalog or blob store directly — every handler
// goes through an *engine.Engine the same way internal/server does,
// translating OpenSubsonic's request shape into engine calls and engine
// results back into the Subsonic response envelope.
package opensubsonic

import "encoding/xml"

// apiVersion is the Subsonic protocol version this adapter claims
// compatibility with; OpenSubsonic clients use it only for feature
// gating, not strict validation.
const apiVersion = "1.16.1"

// Response is the "subsonic-response" envelope every endpoint returns,
// in XML by default or JSON when the request's f=json parameter is set.
type Response struct {
	XMLName xml.Name `xml:"subsonic-response" json:"-"`
	Status  string   `xml:"status,attr" json:"status"`
	Version string   `xml:"version,attr" json:"version"`

	Error *Error `xml:"error,omitempty" json:"error,omitempty"`

	MusicFolders  *MusicFolders  `xml:"musicFolders,omitempty" json:"musicFolders,omitempty"`
	Artists       *Artists       `xml:"artists,omitempty" json:"artists,omitempty"`
	Artist        *ArtistDetail  `xml:"artist,omitempty" json:"artist,omitempty"`
	Album         *Album         `xml:"album,omitempty" json:"album,omitempty"`
	Song          *Song          `xml:"song,omitempty" json:"song,omitempty"`
	Playlists     *Playlists     `xml:"playlists,omitempty" json:"playlists,omitempty"`
	Playlist      *Playlist      `xml:"playlist,omitempty" json:"playlist,omitempty"`
	SearchResult3 *SearchResult3 `xml:"searchResult3,omitempty" json:"searchResult3,omitempty"`
	Starred       *Starred       `xml:"starred,omitempty" json:"starred,omitempty"`
}

// Error is a failed call's code/message pair, per the Subsonic error
// code table (0 generic, 40 wrong credentials, 50 not authorized, 70 not
// found).
type Error struct {
	Code    int    `xml:"code,attr" json:"code"`
	Message string `xml:"message,attr" json:"message"`
}

const (
	ErrorGeneric            = 0
	ErrorWrongCredentials   = 40
	ErrorNotAuthorized      = 50
	ErrorNotFound           = 70
)

// MusicFolders is a single-folder stub: sonar has no concept of separate
// media folders, so every client query returns the one implicit library.
type MusicFolders struct {
	MusicFolder []MusicFolder `xml:"musicFolder" json:"musicFolder"`
}

type MusicFolder struct {
	ID   int    `xml:"id,attr" json:"id"`
	Name string `xml:"name,attr" json:"name"`
}

type Artist struct {
	ID         string `xml:"id,attr" json:"id"`
	Name       string `xml:"name,attr" json:"name"`
	AlbumCount int64  `xml:"albumCount,attr" json:"albumCount"`
	CoverArt   string `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
}

type ArtistDetail struct {
	Artist
	Album []Album `xml:"album,omitempty" json:"album,omitempty"`
}

type ArtistIndex struct {
	Name   string   `xml:"name,attr" json:"name"`
	Artist []Artist `xml:"artist" json:"artist"`
}

type Artists struct {
	IgnoredArticles string        `xml:"ignoredArticles,attr" json:"ignoredArticles"`
	Index           []ArtistIndex `xml:"index" json:"index"`
}

type Album struct {
	ID        string `xml:"id,attr" json:"id"`
	Name      string `xml:"name,attr" json:"name"`
	Artist    string `xml:"artist,attr,omitempty" json:"artist,omitempty"`
	ArtistID  string `xml:"artistId,attr,omitempty" json:"artistId,omitempty"`
	CoverArt  string `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	SongCount int64  `xml:"songCount,attr" json:"songCount"`
	Duration  int64  `xml:"duration,attr" json:"duration"`
	Song      []Song `xml:"song,omitempty" json:"song,omitempty"`
}

type Song struct {
	ID          string `xml:"id,attr" json:"id"`
	Title       string `xml:"title,attr" json:"title"`
	Album       string `xml:"album,attr,omitempty" json:"album,omitempty"`
	Artist      string `xml:"artist,attr,omitempty" json:"artist,omitempty"`
	AlbumID     string `xml:"albumId,attr,omitempty" json:"albumId,omitempty"`
	ArtistID    string `xml:"artistId,attr,omitempty" json:"artistId,omitempty"`
	CoverArt    string `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	Duration    int64  `xml:"duration,attr" json:"duration"`
	ContentType string `xml:"contentType,attr,omitempty" json:"contentType,omitempty"`
	IsDir       bool   `xml:"isDir,attr" json:"isDir"`
	Type        string `xml:"type,attr" json:"type"`
	Starred     string `xml:"starred,attr,omitempty" json:"starred,omitempty"`
}

type Playlist struct {
	ID        string `xml:"id,attr" json:"id"`
	Name      string `xml:"name,attr" json:"name"`
	Owner     string `xml:"owner,attr,omitempty" json:"owner,omitempty"`
	SongCount int64  `xml:"songCount,attr" json:"songCount"`
	Duration  int64  `xml:"duration,attr" json:"duration"`
	Entry     []Song `xml:"entry,omitempty" json:"entry,omitempty"`
}

type Playlists struct {
	Playlist []Playlist `xml:"playlist" json:"playlist"`
}

type SearchResult3 struct {
	Artist []Artist `xml:"artist,omitempty" json:"artist,omitempty"`
	Album  []Album  `xml:"album,omitempty" json:"album,omitempty"`
	Song   []Song   `xml:"song,omitempty" json:"song,omitempty"`
}

type Starred struct {
	Artist []Artist `xml:"artist,omitempty" json:"artist,omitempty"`
	Album  []Album  `xml:"album,omitempty" json:"album,omitempty"`
	Song   []Song   `xml:"song,omitempty" json:"song,omitempty"`
}

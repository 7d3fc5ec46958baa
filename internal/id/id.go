// Package id implements sonar's opaque external identifiers: a namespace
// tag plus a base36-encoded internal integer key, e.g. "artist_1a". The
// encoding is grounded on original_source/sonar/src/id.rs's namespace-tagged
// integer scheme, rendered as the string form spec.md §3/§4.3 describes
// instead of Rust's packed-u32 form.
package id

import (
	"strconv"
	"strings"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

// Namespace identifies which entity kind an ID belongs to.
type Namespace string

const (
	NamespaceUser         Namespace = "user"
	NamespaceImage        Namespace = "image"
	NamespaceAudio        Namespace = "audio"
	NamespaceArtist       Namespace = "artist"
	NamespaceAlbum        Namespace = "album"
	NamespaceTrack        Namespace = "track"
	NamespacePlaylist     Namespace = "playlist"
	NamespaceScrobble     Namespace = "scrobble"
	NamespaceSubscription Namespace = "subscription"
)

var validNamespaces = map[Namespace]bool{
	NamespaceUser:         true,
	NamespaceImage:        true,
	NamespaceAudio:        true,
	NamespaceArtist:       true,
	NamespaceAlbum:        true,
	NamespaceTrack:        true,
	NamespacePlaylist:     true,
	NamespaceScrobble:     true,
	NamespaceSubscription: true,
}

// ID is an opaque external identifier: a namespace plus an internal key.
// The zero value is not a valid ID.
type ID struct {
	Namespace Namespace
	Key       int64
}

// New builds an ID for the given namespace and internal key.
func New(ns Namespace, key int64) ID {
	return ID{Namespace: ns, Key: key}
}

// String renders the opaque external form, e.g. "artist_1a".
func (i ID) String() string {
	return string(i.Namespace) + "_" + strconv.FormatInt(i.Key, 36)
}

// IsZero reports whether i is the zero value.
func (i ID) IsZero() bool { return i.Namespace == "" && i.Key == 0 }

// Parse decodes an opaque external ID string with no namespace constraint.
func Parse(s string) (ID, error) {
	idx := strings.LastIndexByte(s, '_')
	if idx <= 0 || idx == len(s)-1 {
		return ID{}, sonarerr.New(sonarerr.KindInvalidID, "malformed id "+strconv.Quote(s))
	}
	ns := Namespace(s[:idx])
	if !validNamespaces[ns] {
		return ID{}, sonarerr.New(sonarerr.KindInvalidID, "unknown id namespace "+strconv.Quote(string(ns)))
	}
	key, err := strconv.ParseInt(s[idx+1:], 36, 64)
	if err != nil {
		return ID{}, sonarerr.New(sonarerr.KindInvalidID, "malformed id key in "+strconv.Quote(s))
	}
	return ID{Namespace: ns, Key: key}, nil
}

// ParseAs decodes an opaque ID and validates it belongs to want, returning
// sonarerr.InvalidID(want) when the namespace does not match. This is the
// entry point typed operations (ArtistGet, AlbumGet, ...) use so that an ID
// from the wrong namespace is rejected before it is ever used in a query.
func ParseAs(s string, want Namespace) (ID, error) {
	got, err := Parse(s)
	if err != nil {
		return ID{}, sonarerr.InvalidID(string(want))
	}
	if got.Namespace != want {
		return ID{}, sonarerr.InvalidID(string(want))
	}
	return got, nil
}

// MetadataProvider and Scrobbler are the two network-facing capabilities
// of spec.md §6, shaped after sphildreth-tunez's internal/provider.Provider
// and internal/scrobble.Scrobbler interfaces but narrowed to exactly the
// method set spec.md names — sonar's core dispatches to these, it never
// implements a provider itself.
package capability

import "context"

// ItemView is what a MetadataProvider sees of the entity it is asked to
// enrich: its current name and properties, so a provider can decide what
// it still needs to contribute (spec.md §4.11: "item_view gives the
// provider the entity's current name and properties").
type ItemView struct {
	ID         string
	Name       string
	Properties map[string]string
}

// EntityKind is the catalog entity kind a metadata fetch or subscription
// targets, spec.md §3's Subscription.media_type set reused for providers.
type EntityKind string

const (
	EntityArtist   EntityKind = "artist"
	EntityAlbum    EntityKind = "album"
	EntityTrack    EntityKind = "track"
	EntityPlaylist EntityKind = "playlist"
)

// Patch is the partial metadata a MetadataProvider contributes. Nil fields
// mean "this provider has nothing to say about this field"; an empty
// non-nil map/slice still counts as "nothing" for the field-by-field merge
// spec.md §4.11 describes.
type Patch struct {
	Name       *string
	Properties map[string]string
	Cover      []byte
	// TrackPatches keys per-track patches by track id, for
	// MetadataAlbumTracks's "per-track metadata keyed by track id" result.
	TrackPatches map[string]Patch
}

// MetadataProvider is an external collaborator answering "what do you
// know about this entity" queries, spec.md §6's MetadataProvider
// capability.
type MetadataProvider interface {
	Name() string
	Supports(kind EntityKind) bool
	Fetch(ctx context.Context, kind EntityKind, item ItemView, fields []string) (Patch, error)
}

// SubmitResult is a Scrobbler's verdict on one submission attempt.
type SubmitResult int

const (
	SubmitOK SubmitResult = iota
	SubmitRetryable
	SubmitFatal
)

// ScrobbleView is what a Scrobbler needs to submit a listen event
// externally: enough to identify the track without exposing sonar's
// internal row shape.
type ScrobbleView struct {
	TrackName   string
	ArtistName  string
	AlbumName   string
	ListenAt    int64 // unix seconds
	DurationSec int64
}

// Scrobbler is an external collaborator that records listens on sonar's
// behalf (Last.fm, ListenBrainz, ...), spec.md §6's Scrobbler capability.
type Scrobbler interface {
	Name() string
	Submit(ctx context.Context, scrobble ScrobbleView) (SubmitResult, error)
}

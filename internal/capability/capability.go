// Package capability defines the pluggable interfaces spec.md §6 calls
// out as capabilities the engine invokes rather than implements directly:
// tag extraction, audio technical-attribute extraction, external metadata
// providers, and scrobblers. Concrete implementations live in sibling
// packages (tagext, audioext) or are supplied by internal/metadata and
// internal/social. The shapes are grounded on
// sphildreth-tunez/internal/provider/provider.go and
// internal/scrobble/scrobbler.go.
package capability

import (
	"context"
	"io"
)

// Tags is what the TagExtractor capability recovers from an audio file,
// spec.md §4.10 step 2.
type Tags struct {
	Title              string
	ArtistName         string
	AlbumName          string
	TrackNumber        int
	DiscNumber         int
	DurationMs         int64
	CoverBytes         []byte
	AdditionalProperties map[string]string
	Genres             []string
}

// TagExtractor recovers embedded metadata from an audio stream.
type TagExtractor interface {
	ExtractTags(ctx context.Context, r io.Reader) (Tags, error)
}

// AudioAttributes is what the AudioExtractor capability recovers from an
// audio file's bytes, spec.md §4.6.
type AudioAttributes struct {
	Mime       string
	Bitrate    int
	DurationMs int64
	Channels   int
	SampleFreq int
}

// AudioExtractor inspects an audio file on disk and returns its technical
// attributes.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, path string) (AudioAttributes, error)
}

// Package tagext is the default TagExtractor capability (spec.md §6),
// built on github.com/dhowden/tag the way
// MattHbrook-Crescendo/services/downloader.go's ExtractAudioMetadata does:
// tag.ReadFrom over the file's bytes, mapped into capability.Tags.
// tag.ReadFrom needs io.ReadSeeker, so the importer hands this extractor
// the staged blob file rather than the original streaming reader.
package tagext

import (
	"context"
	"io"
	"strconv"

	"github.com/dhowden/tag"

	"github.com/sonar-music/sonar/internal/capability"
)

// Extractor implements capability.TagExtractor via dhowden/tag.
type Extractor struct{}

// New constructs a tag Extractor. It holds no state.
func New() *Extractor { return &Extractor{} }

// ExtractTags reads embedded tag metadata from r, which must also satisfy
// io.Seeker (dhowden/tag requires random access to locate frames). Per
// spec.md §6's TagExtractor contract, a parse failure never propagates as
// an error — it yields an empty Tags so the importer falls back to
// filename-derived hints.
func (e *Extractor) ExtractTags(ctx context.Context, r io.Reader) (capability.Tags, error) {
	seeker, ok := r.(io.ReadSeeker)
	if !ok {
		return capability.Tags{}, nil
	}
	meta, err := tag.ReadFrom(seeker)
	if err != nil {
		return capability.Tags{}, nil
	}

	track, _ := meta.Track()
	disc, _ := meta.Disc()

	out := capability.Tags{
		Title:                meta.Title(),
		ArtistName:           meta.Artist(),
		AlbumName:            meta.Album(),
		TrackNumber:          track,
		DiscNumber:           disc,
		AdditionalProperties: map[string]string{},
	}
	if genre := meta.Genre(); genre != "" {
		out.Genres = []string{genre}
	}
	if pic := meta.Picture(); pic != nil {
		out.CoverBytes = pic.Data
	}
	if year := meta.Year(); year != 0 {
		out.AdditionalProperties["sonar.io/release-date"] = strconv.Itoa(year)
	}
	return out, nil
}

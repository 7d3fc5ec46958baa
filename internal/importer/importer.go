// Package importer implements spec.md §4.10's Import Pipeline: materialize
// a blob, extract embedded tags, resolve or create the artist/album/track
// chain, attach the new audio, and record extracted cover art and
// properties — all transactional at the catalog level, with the blob
// itself written before the transaction begins so a mid-import failure
// never loses already-durable bytes (spec.md: "orphan blobs are
// acceptable and garbage-collected").
package importer

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/audio"
	"github.com/sonar-music/sonar/internal/blob"
	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/image"
	"github.com/sonar-music/sonar/internal/property"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

// Service is the Import Pipeline of spec.md §4.10. A caller feeding a
// multi-chunk upload wraps its chunks in an io.MultiReader (or an
// io.Pipe fed as chunks arrive) before calling Import — Go's io.Reader is
// already a chunked stream, so the pipeline needs no separate chunk type.
type Service struct {
	blob       *blob.Store
	catalog    *catalog.Store
	audio      *audio.Service
	image      *image.Service
	property   *property.Service
	tagExtract capability.TagExtractor
	ffprobe    string
	log        *zap.Logger
}

// New constructs a Service wiring together the blob store, catalog,
// Audio/Image/Property services, and a TagExtractor capability.
// ffprobePath is kept on the Service but not read by Import: probing runs
// through audioSvc's AudioExtractor, and Import passes it an empty
// probePath so the Audio Service stages its own temp file.
func New(blobStore *blob.Store, catalogStore *catalog.Store, audioSvc *audio.Service, imageSvc *image.Service, propertySvc *property.Service, tagExtractor capability.TagExtractor, ffprobePath string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		blob:       blobStore,
		catalog:    catalogStore,
		audio:      audioSvc,
		image:      imageSvc,
		property:   propertySvc,
		tagExtract: tagExtractor,
		ffprobe:    ffprobePath,
		log:        log,
	}
}

// Hints are caller-supplied trailing metadata that short-circuits the
// resolve steps below, per spec.md §4.10's "optional trailing hints
// {filepath, artist_id, album_id}".
type Hints struct {
	Filepath string
	ArtistID *int64
	AlbumID  *int64
}

// Result reports what Import resolved or created.
type Result struct {
	ArtistID     int64
	AlbumID      int64
	TrackID      int64
	AudioID      int64
	TrackCreated bool
}

// Import runs the full pipeline over r, an already-assembled stream of
// the file's bytes.
func (s *Service) Import(ctx context.Context, r io.Reader, hints Hints) (Result, error) {
	desc, err := s.blob.Put(r)
	if err != nil {
		return Result{}, err
	}

	tagsReader, err := s.blob.Get(desc.Key)
	if err != nil {
		return Result{}, err
	}
	defer tagsReader.Close()
	tags, err := s.tagExtract.ExtractTags(ctx, tagsReader)
	if err != nil {
		s.log.Warn("tag extraction failed, importing with filename-only metadata", zap.Error(err))
		tags = capability.Tags{}
	}

	var result Result
	err = s.catalog.WithTx(ctx, func(tx *sql.Tx) error {
		artist, err := s.resolveArtist(ctx, tx, hints, tags)
		if err != nil {
			return err
		}
		album, err := s.resolveAlbum(ctx, tx, hints, tags, artist.ID)
		if err != nil {
			return err
		}
		track, created, err := s.resolveTrack(ctx, tx, album.ID, tags, hints.Filepath)
		if err != nil {
			return err
		}

		audioReader, err := s.blob.Get(desc.Key)
		if err != nil {
			return err
		}
		defer audioReader.Close()
		audioRow, _, err := s.audio.Attach(ctx, tx, track.ID, audioReader, hints.Filepath, "")
		if err != nil {
			return err
		}

		if album.CoverImageID == nil && len(tags.CoverBytes) > 0 {
			if err := s.attachCover(ctx, tx, album.ID, tags.CoverBytes); err != nil {
				return err
			}
		}

		if err := s.writeProperties(ctx, tx, track.ID, tags); err != nil {
			return err
		}

		result = Result{ArtistID: artist.ID, AlbumID: album.ID, TrackID: track.ID, AudioID: audioRow.ID, TrackCreated: created}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (s *Service) resolveArtist(ctx context.Context, tx *sql.Tx, hints Hints, tags capability.Tags) (catalog.Artist, error) {
	if hints.ArtistID != nil {
		return s.catalog.ArtistGet(ctx, tx, *hints.ArtistID)
	}
	name := tags.ArtistName
	if name == "" {
		name = "Unknown Artist"
	}
	artist, err := s.catalog.ArtistFindByName(ctx, tx, name)
	if err == nil {
		return artist, nil
	}
	if !sonarerr.Is(err, sonarerr.KindNotFound) {
		return catalog.Artist{}, err
	}
	return s.catalog.ArtistCreate(ctx, tx, name)
}

func (s *Service) resolveAlbum(ctx context.Context, tx *sql.Tx, hints Hints, tags capability.Tags, artistID int64) (catalog.Album, error) {
	if hints.AlbumID != nil {
		return s.catalog.AlbumGet(ctx, tx, *hints.AlbumID)
	}
	name := tags.AlbumName
	if name == "" {
		name = "Unknown Album"
	}
	album, err := s.catalog.AlbumFindByArtistAndName(ctx, tx, artistID, name)
	if err == nil {
		return album, nil
	}
	if !sonarerr.Is(err, sonarerr.KindNotFound) {
		return catalog.Album{}, err
	}
	return s.catalog.AlbumCreate(ctx, tx, artistID, name)
}

// resolveTrack finds an existing track by (album, title) or creates a new
// one, reporting whether it was newly created so the caller knows whether
// the audio just attached became preferred (spec.md §4.10 step 5).
func (s *Service) resolveTrack(ctx context.Context, tx *sql.Tx, albumID int64, tags capability.Tags, filepath string) (catalog.Track, bool, error) {
	title := tags.Title
	if title == "" {
		title = filepath
	}
	if title == "" {
		title = "Untitled"
	}
	track, err := s.catalog.TrackFindByAlbumAndName(ctx, tx, albumID, title)
	if err == nil {
		return track, false, nil
	}
	if !sonarerr.Is(err, sonarerr.KindNotFound) {
		return catalog.Track{}, false, err
	}
	track, err = s.catalog.TrackCreate(ctx, tx, albumID, title)
	if err != nil {
		return catalog.Track{}, false, err
	}
	return track, true, nil
}

func (s *Service) attachCover(ctx context.Context, tx *sql.Tx, albumID int64, coverBytes []byte) error {
	img, err := s.image.Create(ctx, tx, bytes.NewReader(coverBytes))
	if err != nil {
		s.log.Warn("failed to materialize embedded cover art", zap.Error(err))
		return nil
	}
	_, err = s.catalog.AlbumUpdate(ctx, tx, albumID, catalog.Unchanged[string](), catalog.SetValue(&img.ID))
	return err
}

func (s *Service) writeProperties(ctx context.Context, tx *sql.Tx, trackID int64, tags capability.Tags) error {
	set := func(key, value string) error {
		if value == "" {
			return nil
		}
		return s.property.Set(ctx, tx, "track", trackID, key, nil, value, true)
	}
	if err := set(property.KeyTrackNumber, itoaNonZero(tags.TrackNumber)); err != nil {
		return err
	}
	if err := set(property.KeyDiscNumber, itoaNonZero(tags.DiscNumber)); err != nil {
		return err
	}
	for key, value := range tags.AdditionalProperties {
		if err := set(key, value); err != nil {
			return err
		}
	}
	for _, genre := range tags.Genres {
		if err := s.property.AddGenre(ctx, tx, "track", trackID, genre); err != nil {
			return err
		}
	}
	return nil
}

func itoaNonZero(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

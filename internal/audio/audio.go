// Package audio implements spec.md §4.6: storing audio blobs with
// extracted technical attributes and streaming a track's preferred audio
// back out, honoring HTTP range requests via internal/blob's bounded
// reader. Grounded on the same Service-over-blob-plus-catalog shape as
// internal/image.
package audio

import (
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/sonar-music/sonar/internal/blob"
	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

// Service is the Audio Service of spec.md §4.6.
type Service struct {
	blob      *blob.Store
	catalog   *catalog.Store
	extractor capability.AudioExtractor
}

// New constructs a Service over an already-open blob store, catalog, and
// AudioExtractor capability.
func New(blobStore *blob.Store, catalogStore *catalog.Store, extractor capability.AudioExtractor) *Service {
	return &Service{blob: blobStore, catalog: catalogStore, extractor: extractor}
}

// Attach stores r as a new Audio blob, probes its technical attributes via
// the AudioExtractor capability, and links it to trackID. If the track has
// no preferred audio yet the new one is marked preferred automatically
// (spec.md §4.6); a track with an existing preferred audio keeps it and
// the new audio joins as a non-preferred alternative.
//
// probePath, if non-empty, is a filesystem path the AudioExtractor may
// read directly (ffprobe needs a seekable file, not an io.Reader); when
// empty the payload is first staged to a temp file. The RPC upload handler
// passes the temp file it already wrote, avoiding a redundant copy; the
// importer passes an empty path.
func (s *Service) Attach(ctx context.Context, tx *sql.Tx, trackID int64, r io.Reader, filename, probePath string) (catalog.Audio, catalog.TrackAudio, error) {
	desc, err := s.blob.Put(r)
	if err != nil {
		return catalog.Audio{}, catalog.TrackAudio{}, err
	}

	path := probePath
	cleanup := func() {}
	if path == "" {
		rc, err := s.blob.Get(desc.Key)
		if err != nil {
			return catalog.Audio{}, catalog.TrackAudio{}, err
		}
		defer rc.Close()
		tmp, err := os.CreateTemp("", "sonar-probe-*")
		if err != nil {
			return catalog.Audio{}, catalog.TrackAudio{}, sonarerr.IO("failed to create probe temp file", err)
		}
		if _, err := io.Copy(tmp, rc); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return catalog.Audio{}, catalog.TrackAudio{}, sonarerr.IO("failed to stage audio for probing", err)
		}
		tmp.Close()
		path = tmp.Name()
		cleanup = func() { os.Remove(path) }
	}
	defer cleanup()

	attrs, err := s.extractor.ExtractAudio(ctx, path)
	if err != nil {
		return catalog.Audio{}, catalog.TrackAudio{}, err
	}

	b, err := s.catalog.BlobGetOrCreate(ctx, tx, desc.Key, desc.Size, desc.SHA256)
	if err != nil {
		return catalog.Audio{}, catalog.TrackAudio{}, err
	}
	audioRow, err := s.catalog.AudioCreate(ctx, tx, b.ID, attrs.Mime, attrs.Bitrate, attrs.DurationMs, attrs.Channels, attrs.SampleFreq, filename)
	if err != nil {
		return catalog.Audio{}, catalog.TrackAudio{}, err
	}
	trackAudio, err := s.catalog.TrackAudioAttach(ctx, tx, trackID, audioRow.ID)
	if err != nil {
		return catalog.Audio{}, catalog.TrackAudio{}, err
	}
	return audioRow, trackAudio, nil
}

// SetPreferred marks trackAudioID as trackID's preferred audio.
func (s *Service) SetPreferred(ctx context.Context, tx *sql.Tx, trackID, trackAudioID int64) error {
	return s.catalog.TrackAudioSetPreferred(ctx, tx, trackID, trackAudioID)
}

// Detach removes an audio from a track, promoting a replacement preferred
// audio if the removed one was preferred and others remain.
func (s *Service) Detach(ctx context.Context, tx *sql.Tx, trackID, trackAudioID int64) error {
	return s.catalog.TrackAudioDetach(ctx, tx, trackID, trackAudioID)
}

// List returns every audio variant attached to a track, preferred first.
func (s *Service) List(ctx context.Context, tx *sql.Tx, trackID int64) ([]catalog.TrackAudio, error) {
	return s.catalog.TrackAudioList(ctx, tx, trackID)
}

// Range is an HTTP byte range: Length <= 0 means "to EOF".
type Range struct {
	Offset int64
	Length int64
}

// Stream opens trackID's preferred audio for reading, honoring an
// optional byte range, with constant memory footprint (spec.md §4.6: "the
// implementation must use bounded-buffer streaming").
func (s *Service) Stream(ctx context.Context, tx *sql.Tx, trackID int64, rng *Range) (io.ReadCloser, catalog.Audio, error) {
	track, err := s.catalog.TrackGet(ctx, tx, trackID)
	if err != nil {
		return nil, catalog.Audio{}, err
	}
	if track.PreferredAudioID == nil {
		return nil, catalog.Audio{}, sonarerr.NotFound("audio", "track has no preferred audio")
	}
	return s.streamAudio(ctx, tx, *track.PreferredAudioID, rng)
}

// StreamAudio opens a specific audio id for reading (not necessarily a
// track's preferred variant), for clients that want an explicit alternate
// audio rather than the default.
func (s *Service) StreamAudio(ctx context.Context, tx *sql.Tx, audioID int64, rng *Range) (io.ReadCloser, catalog.Audio, error) {
	return s.streamAudio(ctx, tx, audioID, rng)
}

func (s *Service) streamAudio(ctx context.Context, tx *sql.Tx, audioID int64, rng *Range) (io.ReadCloser, catalog.Audio, error) {
	audioRow, err := s.catalog.AudioGet(ctx, tx, audioID)
	if err != nil {
		return nil, catalog.Audio{}, err
	}
	b, err := s.catalog.BlobGet(ctx, tx, audioRow.BlobID)
	if err != nil {
		return nil, catalog.Audio{}, err
	}
	if rng != nil {
		r, err := s.blob.GetRange(b.SHA256, rng.Offset, rng.Length)
		if err != nil {
			return nil, catalog.Audio{}, err
		}
		return r, audioRow, nil
	}
	r, err := s.blob.Get(b.SHA256)
	if err != nil {
		return nil, catalog.Audio{}, err
	}
	return r, audioRow, nil
}

package importer

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sonar-music/sonar/internal/audio"
	"github.com/sonar-music/sonar/internal/blob"
	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/image"
	"github.com/sonar-music/sonar/internal/property"
)

type stubTagExtractor struct {
	tags capability.Tags
	err  error
}

func (s stubTagExtractor) ExtractTags(ctx context.Context, r io.Reader) (capability.Tags, error) {
	return s.tags, s.err
}

type stubAudioExtractor struct{}

func (stubAudioExtractor) ExtractAudio(ctx context.Context, path string) (capability.AudioAttributes, error) {
	return capability.AudioAttributes{Mime: "audio/mpeg", Bitrate: 320000, DurationMs: 210000, Channels: 2, SampleFreq: 44100}, nil
}

func newTestService(t *testing.T, tags capability.Tags) (*Service, *catalog.Store) {
	t.Helper()
	ctx := context.Background()
	blobStore, err := blob.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("blob.New: %v", err)
	}
	catalogStore, err := catalog.Open(ctx, filepath.Join(t.TempDir(), "test.db"), 4, nil, nil)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { catalogStore.Close() })

	audioSvc := audio.New(blobStore, catalogStore, stubAudioExtractor{})
	imageSvc := image.New(blobStore, catalogStore)
	propertySvc := property.New(catalogStore)

	svc := New(blobStore, catalogStore, audioSvc, imageSvc, propertySvc, stubTagExtractor{tags: tags}, "", nil)
	return svc, catalogStore
}

func TestImportCreatesArtistAlbumTrack(t *testing.T) {
	ctx := context.Background()
	tags := capability.Tags{
		Title:       "Song One",
		ArtistName:  "New Artist",
		AlbumName:   "New Album",
		TrackNumber: 3,
	}
	svc, store := newTestService(t, tags)

	result, err := svc.Import(ctx, bytes.NewReader([]byte("fake audio payload")), Hints{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !result.TrackCreated {
		t.Fatal("expected a new track to be created")
	}

	track, err := store.TrackGet(ctx, nil, result.TrackID)
	if err != nil {
		t.Fatalf("TrackGet: %v", err)
	}
	if track.Name != "Song One" {
		t.Fatalf("track name = %q, want %q", track.Name, "Song One")
	}

	trackNumber, err := store.PropertyGet(ctx, nil, "track", result.TrackID, property.KeyTrackNumber, nil)
	if err != nil {
		t.Fatalf("PropertyGet: %v", err)
	}
	if trackNumber != "3" {
		t.Fatalf("track-number property = %q, want %q", trackNumber, "3")
	}
}

func TestImportReusesExistingTrackAsNonPreferredAudio(t *testing.T) {
	ctx := context.Background()
	tags := capability.Tags{Title: "Repeat", ArtistName: "Artist", AlbumName: "Album"}
	svc, store := newTestService(t, tags)

	first, err := svc.Import(ctx, bytes.NewReader([]byte("first bytes")), Hints{})
	if err != nil {
		t.Fatalf("Import #1: %v", err)
	}
	second, err := svc.Import(ctx, bytes.NewReader([]byte("second bytes, different content")), Hints{})
	if err != nil {
		t.Fatalf("Import #2: %v", err)
	}
	if first.TrackID != second.TrackID {
		t.Fatalf("expected the same track to be reused, got %d and %d", first.TrackID, second.TrackID)
	}

	variants, err := store.TrackAudioList(ctx, nil, first.TrackID)
	if err != nil {
		t.Fatalf("TrackAudioList: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 audio variants after reimport, got %d", len(variants))
	}

	track, err := store.TrackGet(ctx, nil, first.TrackID)
	if err != nil {
		t.Fatalf("TrackGet: %v", err)
	}
	if track.PreferredAudioID == nil || *track.PreferredAudioID != first.AudioID {
		t.Fatalf("expected first import's audio to remain preferred")
	}
}

func TestImportHonorsArtistAndAlbumHints(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, capability.Tags{Title: "Hinted Track"})

	artist, err := store.ArtistCreate(ctx, nil, "Existing Artist")
	if err != nil {
		t.Fatalf("ArtistCreate: %v", err)
	}
	album, err := store.AlbumCreate(ctx, nil, artist.ID, "Existing Album")
	if err != nil {
		t.Fatalf("AlbumCreate: %v", err)
	}

	result, err := svc.Import(ctx, bytes.NewReader([]byte("payload")), Hints{ArtistID: &artist.ID, AlbumID: &album.ID})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.ArtistID != artist.ID || result.AlbumID != album.ID {
		t.Fatalf("expected import to honor hints, got artist=%d album=%d", result.ArtistID, result.AlbumID)
	}
}

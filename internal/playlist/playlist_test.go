package playlist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sonar-music/sonar/internal/catalog"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := catalog.Open(ctx, dbPath, 4, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustUser(t *testing.T, store *catalog.Store) catalog.User {
	t.Helper()
	u, err := store.UserCreate(context.Background(), nil, "owner", "hash", false)
	if err != nil {
		t.Fatalf("UserCreate: %v", err)
	}
	return u
}

func mustTrack(t *testing.T, store *catalog.Store, name string) catalog.Track {
	t.Helper()
	ctx := context.Background()
	artist, err := store.ArtistCreate(ctx, nil, "Artist")
	if err != nil {
		t.Fatalf("ArtistCreate: %v", err)
	}
	album, err := store.AlbumCreate(ctx, nil, artist.ID, "Album")
	if err != nil {
		t.Fatalf("AlbumCreate: %v", err)
	}
	track, err := store.TrackCreate(ctx, nil, album.ID, name)
	if err != nil {
		t.Fatalf("TrackCreate: %v", err)
	}
	return track
}

func TestCreateRejectsEmptyName(t *testing.T) {
	store := newTestStore(t)
	svc := New(store, nil, nil)
	user := mustUser(t, store)

	_, err := svc.Create(context.Background(), nil, user.ID, "  ")
	if err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestUpdateRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil, nil)

	owner := mustUser(t, store)
	intruder, err := store.UserCreate(ctx, nil, "intruder", "hash", false)
	if err != nil {
		t.Fatalf("UserCreate: %v", err)
	}

	pl, err := svc.Create(ctx, nil, owner.ID, "My Playlist")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newName := catalog.SetValue("Renamed")
	if _, err := svc.Update(ctx, nil, intruder.ID, pl.ID, newName, catalog.Unchanged[*int64]()); err == nil {
		t.Fatal("expected PermissionDenied for non-owner update")
	}

	if _, err := svc.Update(ctx, nil, owner.ID, pl.ID, newName, catalog.Unchanged[*int64]()); err != nil {
		t.Fatalf("Update as owner: %v", err)
	}
}

func TestTrackInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil, nil)

	owner := mustUser(t, store)
	pl, err := svc.Create(ctx, nil, owner.ID, "Queue")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	track := mustTrack(t, store, "Song")

	if err := svc.TrackInsert(ctx, nil, owner.ID, pl.ID, []int64{track.ID}); err != nil {
		t.Fatalf("TrackInsert #1: %v", err)
	}
	if err := svc.TrackInsert(ctx, nil, owner.ID, pl.ID, []int64{track.ID}); err != nil {
		t.Fatalf("TrackInsert #2: %v", err)
	}

	tracks, err := svc.TrackList(ctx, nil, pl.ID, catalog.ListParams{})
	if err != nil {
		t.Fatalf("TrackList: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track after duplicate insert, got %d", len(tracks))
	}
}

func TestTrackRemoveIsNoOpWhenAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil, nil)

	owner := mustUser(t, store)
	pl, err := svc.Create(ctx, nil, owner.ID, "Queue")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	track := mustTrack(t, store, "Song")

	if err := svc.TrackRemove(ctx, nil, owner.ID, pl.ID, []int64{track.ID}); err != nil {
		t.Fatalf("expected no-op remove to succeed, got: %v", err)
	}
}

func TestDuplicateCopiesTrackOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil, nil)

	owner := mustUser(t, store)
	pl, err := svc.Create(ctx, nil, owner.ID, "Original")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	first := mustTrack(t, store, "First")
	second := mustTrack(t, store, "Second")
	if err := svc.TrackInsert(ctx, nil, owner.ID, pl.ID, []int64{first.ID, second.ID}); err != nil {
		t.Fatalf("TrackInsert: %v", err)
	}

	dup, err := svc.Duplicate(ctx, nil, owner.ID, pl.ID, "Copy")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}

	tracks, err := svc.TrackList(ctx, nil, dup.ID, catalog.ListParams{})
	if err != nil {
		t.Fatalf("TrackList: %v", err)
	}
	if len(tracks) != 2 || tracks[0].TrackID != first.ID || tracks[1].TrackID != second.ID {
		t.Fatalf("unexpected copied track order: %+v", tracks)
	}
}

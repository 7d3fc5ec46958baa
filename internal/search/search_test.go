package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sonar-music/sonar/internal/catalog"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	ctx := context.Background()
	store, err := catalog.Open(ctx, filepath.Join(t.TempDir(), "test.db"), 4, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSearchRanksExactBeforePrefixBeforeSubstring(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store)

	names := []string{"The Beatles Tribute Band", "Beat", "Beatles"}
	for _, n := range names {
		if _, err := store.ArtistCreate(ctx, nil, n); err != nil {
			t.Fatalf("ArtistCreate(%q): %v", n, err)
		}
	}

	results, err := svc.Search(ctx, "beat", []Kind{KindArtist}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Name != "Beat" {
		t.Fatalf("rank 0 = %q, want exact match %q", results[0].Name, "Beat")
	}
	if results[1].Name != "Beatles" {
		t.Fatalf("rank 1 = %q, want prefix match %q", results[1].Name, "Beatles")
	}
	if results[2].Name != "The Beatles Tribute Band" {
		t.Fatalf("rank 2 = %q, want substring match %q", results[2].Name, "The Beatles Tribute Band")
	}
}

func TestSearchInterleavesKindsRoundRobin(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store)

	artist, err := store.ArtistCreate(ctx, nil, "Echo Artist")
	if err != nil {
		t.Fatalf("ArtistCreate: %v", err)
	}
	if _, err := store.AlbumCreate(ctx, nil, artist.ID, "Echo Album"); err != nil {
		t.Fatalf("AlbumCreate: %v", err)
	}

	results, err := svc.Search(ctx, "echo", []Kind{KindArtist, KindAlbum}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Kind != KindArtist || results[1].Kind != KindAlbum {
		t.Fatalf("expected round-robin artist-then-album order, got %+v", results)
	}
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store)

	results, err := svc.Search(ctx, "   ", []Kind{KindArtist}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for blank query, got %d", len(results))
	}
}

package metadata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sonar-music/sonar/internal/blob"
	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/image"
	"github.com/sonar-music/sonar/internal/property"
)

type stubProvider struct {
	name    string
	kind    capability.EntityKind
	patch   capability.Patch
	err     error
	callLog *[]string
}

func (p stubProvider) Name() string { return p.name }
func (p stubProvider) Supports(kind capability.EntityKind) bool { return kind == p.kind }
func (p stubProvider) Fetch(ctx context.Context, kind capability.EntityKind, item capability.ItemView, fields []string) (capability.Patch, error) {
	if p.callLog != nil {
		*p.callLog = append(*p.callLog, p.name)
	}
	return p.patch, p.err
}

func newTestService(t *testing.T) (*Service, *catalog.Store) {
	t.Helper()
	ctx := context.Background()
	blobStore, err := blob.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("blob.New: %v", err)
	}
	store, err := catalog.Open(ctx, filepath.Join(t.TempDir(), "test.db"), 4, nil, nil)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := New(store, image.New(blobStore, store), property.New(store), time.Second, nil)
	return svc, store
}

func TestFetchFirstProviderWinsPerField(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	artist, err := store.ArtistCreate(ctx, nil, "Original Name")
	if err != nil {
		t.Fatalf("ArtistCreate: %v", err)
	}

	firstName := "From First Provider"
	secondName := "From Second Provider"
	svc.Register(stubProvider{name: "first", kind: capability.EntityArtist, patch: capability.Patch{Name: &firstName}})
	svc.Register(stubProvider{name: "second", kind: capability.EntityArtist, patch: capability.Patch{Name: &secondName}})

	_, err = svc.Fetch(ctx, capability.EntityArtist, artist.ID, capability.ItemView{}, nil, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	updated, err := store.ArtistGet(ctx, nil, artist.ID)
	if err != nil {
		t.Fatalf("ArtistGet: %v", err)
	}
	if updated.Name != firstName {
		t.Fatalf("artist name = %q, want first provider's %q", updated.Name, firstName)
	}
}

func TestFetchIsolatesProviderFailure(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	artist, err := store.ArtistCreate(ctx, nil, "Original Name")
	if err != nil {
		t.Fatalf("ArtistCreate: %v", err)
	}

	goodName := "Survives Failing Provider"
	svc.Register(stubProvider{name: "flaky", kind: capability.EntityArtist, err: context.DeadlineExceeded})
	svc.Register(stubProvider{name: "reliable", kind: capability.EntityArtist, patch: capability.Patch{Name: &goodName}})

	_, err = svc.Fetch(ctx, capability.EntityArtist, artist.ID, capability.ItemView{}, nil, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	updated, err := store.ArtistGet(ctx, nil, artist.ID)
	if err != nil {
		t.Fatalf("ArtistGet: %v", err)
	}
	if updated.Name != goodName {
		t.Fatalf("artist name = %q, want %q despite one provider failing", updated.Name, goodName)
	}
}

func TestFetchNoSupportingProviderFails(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	album, err := store.AlbumCreate(ctx, nil, mustArtist(t, store), "Album")
	if err != nil {
		t.Fatalf("AlbumCreate: %v", err)
	}

	name := "Artist Only"
	svc.Register(stubProvider{name: "artist-only", kind: capability.EntityArtist, patch: capability.Patch{Name: &name}})

	if _, err := svc.Fetch(ctx, capability.EntityAlbum, album.ID, capability.ItemView{}, nil, nil); err == nil {
		t.Fatal("expected an error when no registered provider supports the requested kind")
	}
}

func mustArtist(t *testing.T, store *catalog.Store) int64 {
	t.Helper()
	artist, err := store.ArtistCreate(context.Background(), nil, "Artist")
	if err != nil {
		t.Fatalf("ArtistCreate: %v", err)
	}
	return artist.ID
}
